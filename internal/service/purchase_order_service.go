package service

import (
	"fmt"
	"strings"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrderService 采购单服务：锁定报价项并生成采购单
type PurchaseOrderService struct {
	purchaseRepo repository.PurchaseOrderRepository
	offerRepo    repository.OfferRepository
	timelineRepo repository.TimelineRepository
	notifier     *NotificationService
	clock        Clock
}

// NewPurchaseOrderService 创建采购单服务
func NewPurchaseOrderService(purchaseRepo repository.PurchaseOrderRepository, offerRepo repository.OfferRepository, timelineRepo repository.TimelineRepository, notifier *NotificationService, clock Clock) *PurchaseOrderService {
	return &PurchaseOrderService{
		purchaseRepo: purchaseRepo,
		offerRepo:    offerRepo,
		timelineRepo: timelineRepo,
		notifier:     notifier,
		clock:        clock,
	}
}

// FinalizeItems 锁定财务已核准的报价项。重复锁定是幂等空操作。
// 首次锁定时报价单进入 finalizing 并写时间线。
func (s *PurchaseOrderService) FinalizeItems(offerID uint, itemIDs []uint, actor string) (*models.Offer, error) {
	offer, err := s.offerRepo.GetByID(offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	switch offer.Status {
	case constants.OfferStatusFinanceAccepted, constants.OfferStatusFinancePartialAccepted, constants.OfferStatusFinalizing:
	default:
		return nil, fmt.Errorf("%w: offer %d has status %s", ErrOfferNotFinalizing, offer.ID, offer.Status)
	}

	items := make(map[uint]models.OfferLineItem, len(offer.Items))
	for _, item := range offer.Items {
		items[item.ID] = item
	}
	toFinalize := make([]uint, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, ok := items[id]
		if !ok {
			return nil, fmt.Errorf("%w: offer item %d does not belong to offer %d", ErrOfferItemNotFound, id, offer.ID)
		}
		if item.FinanceStatus != constants.FinanceStatusAccepted {
			return nil, fmt.Errorf("%w: offer item %d is not finance accepted", ErrValidation, id)
		}
		if item.Finalized {
			continue
		}
		toFinalize = append(toFinalize, id)
	}

	previous := offer.Status
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		offerTx := s.offerRepo.WithTx(tx)
		for _, id := range toFinalize {
			if err := offerTx.UpdateItem(id, map[string]interface{}{"finalized": true}); err != nil {
				return err
			}
		}
		if previous == constants.OfferStatusFinalizing {
			return nil
		}
		if err := offerTx.Update(offer.ID, map[string]interface{}{"status": constants.OfferStatusFinalizing}); err != nil {
			return err
		}
		return s.timelineRepo.WithTx(tx).Create(&models.OfferTimelineEvent{
			OfferID:        offer.ID,
			EventType:      constants.TimelineEventOfferFinalizing,
			AttemptNumber:  offer.AttemptNumber,
			Actor:          strings.TrimSpace(actor),
			PreviousStatus: previous,
			NewStatus:      constants.OfferStatusFinalizing,
			EventTime:      s.clock.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.offerRepo.GetByID(offer.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrOfferNotFound
	}
	return updated, nil
}

// GeneratePurchaseOrder 由 finalizing 报价单生成采购单。
// 每张报价单只生成一次；全部报价项必须已核准并锁定。
func (s *PurchaseOrderService) GeneratePurchaseOrder(offerID uint, actor string) (*PurchaseOrderDetail, error) {
	offer, err := s.offerRepo.GetByID(offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	if offer.Status != constants.OfferStatusFinalizing {
		return nil, fmt.Errorf("%w: offer %d has status %s", ErrOfferNotFinalizing, offer.ID, offer.Status)
	}
	if len(offer.Items) == 0 {
		return nil, fmt.Errorf("%w: offer %d", ErrNoFinalizedItems, offer.ID)
	}
	for _, item := range offer.Items {
		if item.FinanceStatus != constants.FinanceStatusAccepted || !item.Finalized {
			return nil, fmt.Errorf("%w: offer item %d is not finalized and accepted", ErrValidation, item.ID)
		}
	}

	total := decimal.Zero
	items := make([]models.PurchaseOrderItem, 0, len(offer.Items))
	for _, item := range offer.Items {
		items = append(items, models.PurchaseOrderItem{
			OfferItemID: item.ID,
			ItemType:    item.ItemType,
			Merchant:    item.Merchant,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Status:      constants.PurchaseStatusPending,
		})
		total = total.Add(item.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	po := &models.PurchaseOrder{
		PONo:        generatePONo(),
		OfferID:     offer.ID,
		Status:      constants.PurchaseStatusPending,
		TotalAmount: models.NewMoneyFromDecimal(total),
		CreatedBy:   strings.TrimSpace(actor),
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		purchaseTx := s.purchaseRepo.WithTx(tx)

		// 同一报价单只允许一张采购单，存在性检查与写入同事务
		existing, err := purchaseTx.GetByOfferID(offer.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: offer %d already has purchase order %s", ErrPurchaseOrderExists, offer.ID, existing.PONo)
		}
		if err := purchaseTx.Create(po, items); err != nil {
			return err
		}

		offerTx := s.offerRepo.WithTx(tx)
		if err := offerTx.Update(offer.ID, map[string]interface{}{"status": constants.OfferStatusCompleted}); err != nil {
			return err
		}
		return s.timelineRepo.WithTx(tx).Create(&models.OfferTimelineEvent{
			OfferID:        offer.ID,
			EventType:      constants.TimelineEventOfferCompleted,
			AttemptNumber:  offer.AttemptNumber,
			Actor:          strings.TrimSpace(actor),
			PreviousStatus: constants.OfferStatusFinalizing,
			NewStatus:      constants.OfferStatusCompleted,
			Notes:          fmt.Sprintf("生成采购单 %s", po.PONo),
			EventTime:      s.clock.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(NotificationInput{
			Event:     constants.NotificationEventPurchaseOrderCreated,
			Title:     "采购单已生成",
			Message:   fmt.Sprintf("报价单 %s 生成采购单 %s，总金额 %s", offer.OfferNo, po.PONo, po.TotalAmount.String()),
			Severity:  constants.NotifySeverityInfo,
			Link:      fmt.Sprintf("/admin/purchase-orders/%d", po.ID),
			DedupeKey: fmt.Sprintf("po:%d:created", po.ID),
		})
	}

	return s.GetPurchaseOrder(po.ID)
}

// PurchaseOrderDetail 采购单详情（含对账推导数量）
type PurchaseOrderDetail struct {
	*models.PurchaseOrder
	ItemSummaries []PurchaseItemSummary `json:"item_summaries"`
}

// PurchaseItemSummary 采购项对账摘要
type PurchaseItemSummary struct {
	ItemID            uint   `json:"item_id"`
	Status            string `json:"status"`
	OrderedQuantity   int    `json:"ordered_quantity"`
	GoodReceived      int    `json:"good_received"`
	ClosedIssueQty    int    `json:"closed_issue_qty"`
	UnresolvedQty     int    `json:"unresolved_qty"`
	PendingRedelivery int    `json:"pending_redelivery"`
}

// GetPurchaseOrder 获取采购单详情，附每个采购项的台账摘要
func (s *PurchaseOrderService) GetPurchaseOrder(id uint) (*PurchaseOrderDetail, error) {
	if id == 0 {
		return nil, ErrPurchaseOrderNotFound
	}
	po, err := s.purchaseRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, ErrPurchaseOrderNotFound
	}
	return buildPurchaseOrderDetail(po), nil
}

// ListPurchaseOrders 分页查询采购单
func (s *PurchaseOrderService) ListPurchaseOrders(filter repository.PurchaseOrderListFilter) ([]PurchaseOrderDetail, int64, error) {
	orders, total, err := s.purchaseRepo.List(filter)
	if err != nil {
		return nil, 0, err
	}
	details := make([]PurchaseOrderDetail, 0, len(orders))
	for i := range orders {
		details = append(details, *buildPurchaseOrderDetail(&orders[i]))
	}
	return details, total, nil
}

func buildPurchaseOrderDetail(po *models.PurchaseOrder) *PurchaseOrderDetail {
	summaries := make([]PurchaseItemSummary, 0, len(po.Items))
	for _, item := range po.Items {
		summaries = append(summaries, PurchaseItemSummary{
			ItemID:            item.ID,
			Status:            item.Status,
			OrderedQuantity:   item.Quantity,
			GoodReceived:      goodReceivedQty(item.Receipts),
			ClosedIssueQty:    closedIssueQty(item.Issues),
			UnresolvedQty:     unresolvedIssueQty(item.Issues),
			PendingRedelivery: pendingRedeliveryQty(item.Receipts, item.Issues),
		})
	}
	return &PurchaseOrderDetail{PurchaseOrder: po, ItemSummaries: summaries}
}
