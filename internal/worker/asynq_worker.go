package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/procure-next/internal/logger"
	"github.com/procure-next/internal/provider"
	"github.com/procure-next/internal/queue"
	"github.com/procure-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNotificationDispatch, c.handleNotificationDispatch)
	mux.HandleFunc(queue.TaskReconcileOrder, c.handleReconcileOrder)
}

func (c *Consumer) handleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notification_dispatch_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_dispatch_unmarshal_failed", "error", err)
		return err
	}
	if payload.Event == "" {
		logger.Debugw("worker_notification_dispatch_skip_empty_event")
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_notification_dispatch_skip_service_nil", "event", payload.Event)
		return nil
	}
	if err := c.NotificationService.Dispatch(ctx, payload); err != nil {
		logger.Warnw("worker_notification_dispatch_failed", "event", payload.Event, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleReconcileOrder(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_reconcile_order_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReconcileOrderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reconcile_order_unmarshal_failed", "error", err)
		return err
	}
	if payload.PurchaseOrderID == 0 {
		logger.Debugw("worker_reconcile_order_skip_invalid_payload", "purchase_order_id", payload.PurchaseOrderID)
		return nil
	}
	if c.DeliveryService == nil {
		logger.Warnw("worker_reconcile_order_skip_service_nil", "purchase_order_id", payload.PurchaseOrderID)
		return nil
	}
	status, err := c.DeliveryService.ReconcileOrder(payload.PurchaseOrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPurchaseOrderNotFound):
			logger.Debugw("worker_reconcile_order_skip_not_found", "purchase_order_id", payload.PurchaseOrderID)
			return nil
		default:
			logger.Warnw("worker_reconcile_order_failed", "purchase_order_id", payload.PurchaseOrderID, "error", err)
			return err
		}
	}
	logger.Debugw("worker_reconcile_order_done", "purchase_order_id", payload.PurchaseOrderID, "order_status", status)
	return nil
}
