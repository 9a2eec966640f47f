package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/logger"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/queue"
	"github.com/procure-next/internal/repository"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// disputeRecheckDelay 争议采购单延迟复核的间隔
const disputeRecheckDelay = 30 * time.Minute

// DeliveryService 收货对账服务：记录收货批次并重算采购项/采购单状态
type DeliveryService struct {
	purchaseRepo repository.PurchaseOrderRepository
	receiptRepo  repository.DeliveryReceiptRepository
	issueRepo    repository.IssueRepository
	notifier     *NotificationService
	queueClient  *queue.Client
	clock        Clock
}

// NewDeliveryService 创建收货对账服务
func NewDeliveryService(purchaseRepo repository.PurchaseOrderRepository, receiptRepo repository.DeliveryReceiptRepository, issueRepo repository.IssueRepository, notifier *NotificationService, queueClient *queue.Client, clock Clock) *DeliveryService {
	return &DeliveryService{
		purchaseRepo: purchaseRepo,
		receiptRepo:  receiptRepo,
		issueRepo:    issueRepo,
		notifier:     notifier,
		queueClient:  queueClient,
		clock:        clock,
	}
}

// RecordBatchInput 收货批次输入
type RecordBatchInput struct {
	PurchaseOrderID uint
	ProcessedBy     string
	ReceivedAt      *time.Time
	Entries         []ReceiptEntry
}

// ReceiptEntry 单条收货输入。普通收货允许完好数量为 0
// （整批全损时仍需落一条收货记录供上报问题），补发必须为正。
type ReceiptEntry struct {
	PurchaseOrderItemID uint
	GoodQuantity        int
	IsRedelivery        bool
	IssueID             *uint
}

// BatchResult 收货批次结果
type BatchResult struct {
	BatchRef    string                   `json:"batch_ref"`
	Receipts    []models.DeliveryReceipt `json:"receipts"`
	OrderStatus string                   `json:"order_status"`
}

// RecordBatch 记录一个收货批次并在同一事务内完成对账。
// 补发收货必须指向已决定补发且尚未兑现的问题单，否则整批失败。
func (s *DeliveryService) RecordBatch(input RecordBatchInput) (*BatchResult, error) {
	po, err := s.purchaseRepo.GetByID(input.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, ErrPurchaseOrderNotFound
	}
	if len(input.Entries) == 0 {
		return nil, fmt.Errorf("%w: delivery batch has no entries", ErrValidation)
	}

	poItems := make(map[uint]models.PurchaseOrderItem, len(po.Items))
	for _, item := range po.Items {
		poItems[item.ID] = item
	}

	receivedAt := s.clock.now()
	if input.ReceivedAt != nil {
		receivedAt = *input.ReceivedAt
	}
	batchRef := uuid.NewString()

	var receipts []models.DeliveryReceipt
	var orderStatus string
	var disputed bool
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		receiptTx := s.receiptRepo.WithTx(tx)
		issueTx := s.issueRepo.WithTx(tx)

		for i, entry := range input.Entries {
			item, ok := poItems[entry.PurchaseOrderItemID]
			if !ok {
				return fmt.Errorf("%w: item %d does not belong to purchase order %d", ErrPurchaseItemNotFound, entry.PurchaseOrderItemID, po.ID)
			}
			if entry.GoodQuantity < 0 {
				return fmt.Errorf("%w: entry %d for item %d got %d", ErrReceiptQuantityInvalid, i+1, item.ID, entry.GoodQuantity)
			}
			if entry.IsRedelivery {
				if entry.GoodQuantity == 0 {
					return fmt.Errorf("%w: entry %d redelivery for item %d must be positive", ErrReceiptQuantityInvalid, i+1, item.ID)
				}
				if err := s.validateRedelivery(receiptTx, issueTx, item.ID, entry.IssueID); err != nil {
					return err
				}
			} else if entry.IssueID != nil {
				return fmt.Errorf("%w: entry %d links issue %d but is not flagged as redelivery", ErrValidation, i+1, *entry.IssueID)
			}

			receipt := models.DeliveryReceipt{
				ReceiptNo:           generateReceiptNo(),
				BatchRef:            batchRef,
				PurchaseOrderItemID: item.ID,
				GoodQuantity:        entry.GoodQuantity,
				IsRedelivery:        entry.IsRedelivery,
				IssueID:             entry.IssueID,
				ProcessedBy:         strings.TrimSpace(input.ProcessedBy),
				ReceivedAt:          receivedAt,
			}
			if err := receiptTx.Create(&receipt); err != nil {
				return err
			}
			receipts = append(receipts, receipt)
		}

		status, hasDispute, err := s.reconcileOrderTx(tx, po.ID)
		if err != nil {
			return err
		}
		orderStatus = status
		disputed = hasDispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterReconcile(po.ID, disputed)

	logger.Infow("delivery_batch_recorded",
		"purchase_order_id", po.ID,
		"batch_ref", batchRef,
		"receipts", len(receipts),
		"order_status", orderStatus,
	)
	return &BatchResult{BatchRef: batchRef, Receipts: receipts, OrderStatus: orderStatus}, nil
}

// ListBatchReceipts 按批次号取回该批次落下的全部收货记录
func (s *DeliveryService) ListBatchReceipts(batchRef string) ([]models.DeliveryReceipt, error) {
	ref := strings.TrimSpace(batchRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: batch ref is empty", ErrValidation)
	}
	receipts, err := s.receiptRepo.ListByBatchRef(ref)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, fmt.Errorf("%w: batch %s", ErrReceiptNotFound, ref)
	}
	return receipts, nil
}

// validateRedelivery 校验补发收货的前置条件（与写入同事务，关闭先检查后写入的竞态）
func (s *DeliveryService) validateRedelivery(receiptTx *repository.GormDeliveryReceiptRepository, issueTx *repository.GormIssueRepository, itemID uint, issueID *uint) error {
	if issueID == nil {
		return fmt.Errorf("%w: redelivery receipt requires an issue reference", ErrValidation)
	}
	issue, err := issueTx.GetByID(*issueID)
	if err != nil {
		return err
	}
	if issue == nil {
		return fmt.Errorf("%w: issue %d", ErrIssueNotFound, *issueID)
	}
	if issue.PurchaseOrderItemID != itemID {
		return fmt.Errorf("%w: issue %d belongs to item %d, not %d", ErrIssueReceiptMismatch, issue.ID, issue.PurchaseOrderItemID, itemID)
	}
	if issue.Status != constants.IssueStatusResolved || issue.ResolutionType != constants.ResolutionTypeRedelivery {
		return fmt.Errorf("%w: issue %d has status %s resolution %q", ErrRedeliveryNotEligible, issue.ID, issue.Status, issue.ResolutionType)
	}
	fulfilled, err := receiptTx.CountByIssue(issue.ID)
	if err != nil {
		return err
	}
	if fulfilled > 0 {
		return fmt.Errorf("%w: issue %d", ErrRedeliveryAlreadyDone, issue.ID)
	}
	return nil
}

// ReconcileItem 重算单个采购项及其所属采购单的状态
func (s *DeliveryService) ReconcileItem(itemID uint) (string, error) {
	item, err := s.purchaseRepo.GetItemByID(itemID)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", fmt.Errorf("%w: item %d", ErrPurchaseItemNotFound, itemID)
	}
	return s.ReconcileOrder(item.PurchaseOrderID)
}

// ReconcileOrder 重算整张采购单的推导状态
func (s *DeliveryService) ReconcileOrder(poID uint) (string, error) {
	po, err := s.purchaseRepo.GetByID(poID)
	if err != nil {
		return "", err
	}
	if po == nil {
		return "", fmt.Errorf("%w: purchase order %d", ErrPurchaseOrderNotFound, poID)
	}

	var orderStatus string
	var disputed bool
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		status, hasDispute, err := s.reconcileOrderTx(tx, po.ID)
		if err != nil {
			return err
		}
		orderStatus = status
		disputed = hasDispute
		return nil
	})
	if err != nil {
		return "", err
	}
	s.afterReconcile(po.ID, disputed)
	return orderStatus, nil
}

// reconcileOrderTx 在事务内重算整张采购单：逐项推导状态后汇总。
// 只做写入，通知与排程放在事务提交之后。
func (s *DeliveryService) reconcileOrderTx(tx *gorm.DB, poID uint) (string, bool, error) {
	purchaseTx := s.purchaseRepo.WithTx(tx)
	items, err := purchaseTx.ListItemsByPO(poID)
	if err != nil {
		return "", false, err
	}

	statuses := make([]string, 0, len(items))
	disputed := false
	for _, item := range items {
		status := deriveItemStatus(item.Quantity, item.Receipts, item.Issues)
		statuses = append(statuses, status)
		if status != item.Status {
			if err := purchaseTx.UpdateItemStatus(item.ID, status); err != nil {
				return "", false, err
			}
		}
		if status == constants.PurchaseStatusDisputed {
			disputed = true
		}
	}

	orderStatus := deriveOrderStatus(statuses)
	if err := purchaseTx.UpdateStatus(poID, orderStatus); err != nil {
		return "", false, err
	}
	return orderStatus, disputed, nil
}

// afterReconcile 对账提交后的尽力而为动作：争议通知与延迟复核排程。
// 失败只记日志，不影响已提交的对账结果。
func (s *DeliveryService) afterReconcile(poID uint, disputed bool) {
	if !disputed {
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(NotificationInput{
			Event:     constants.NotificationEventDeliveryDisputed,
			Title:     "采购单存在收货争议",
			Message:   fmt.Sprintf("采购单 %d 有未解决的收货问题", poID),
			Severity:  constants.NotifySeverityWarning,
			Link:      fmt.Sprintf("/admin/purchase-orders/%d", poID),
			DedupeKey: fmt.Sprintf("po:%d:disputed", poID),
		})
	}
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueReconcileOrder(
			queue.ReconcileOrderPayload{PurchaseOrderID: poID},
			asynq.ProcessIn(disputeRecheckDelay),
			asynq.MaxRetry(3),
		)
		if err != nil {
			logger.Warnw("reconcile_order_enqueue_failed",
				"purchase_order_id", poID,
				"error", err,
			)
		}
	}
}
