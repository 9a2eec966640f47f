package queue

import (
	"encoding/json"

	"github.com/procure-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotificationDispatch 业务通知分发任务
	TaskNotificationDispatch = constants.TaskNotificationDispatch
	// TaskReconcileOrder 争议采购单延迟复核任务
	TaskReconcileOrder = constants.TaskReconcileOrder
)

// NotificationDispatchPayload 通知分发任务载荷
type NotificationDispatchPayload struct {
	Event     string `json:"event"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Link      string `json:"link"`
	DedupeKey string `json:"dedupe_key"`
}

// ReconcileOrderPayload 采购单复核任务载荷
type ReconcileOrderPayload struct {
	PurchaseOrderID uint `json:"purchase_order_id"`
}

// NewNotificationDispatchTask 创建通知分发任务
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDispatch, body), nil
}

// NewReconcileOrderTask 创建采购单复核任务
func NewReconcileOrderTask(payload ReconcileOrderPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileOrder, body), nil
}
