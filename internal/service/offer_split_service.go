package service

import (
	"fmt"
	"strings"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/repository"

	"gorm.io/gorm"
)

// OfferSplitService 报价单拆分服务：部分核准后把未满足的需求
// 剥离成新的需求单与后续报价单，数量守恒由事务内校验保证。
type OfferSplitService struct {
	offerRepo    repository.OfferRepository
	requestRepo  repository.RequestOrderRepository
	timelineRepo repository.TimelineRepository
	notifier     *NotificationService
	clock        Clock
}

// NewOfferSplitService 创建报价单拆分服务
func NewOfferSplitService(offerRepo repository.OfferRepository, requestRepo repository.RequestOrderRepository, timelineRepo repository.TimelineRepository, notifier *NotificationService, clock Clock) *OfferSplitService {
	return &OfferSplitService{
		offerRepo:    offerRepo,
		requestRepo:  requestRepo,
		timelineRepo: timelineRepo,
		notifier:     notifier,
		clock:        clock,
	}
}

// SplitResult 拆分结果
type SplitResult struct {
	Offer        *models.Offer        `json:"offer"`
	NewRequest   *models.RequestOrder `json:"new_request"`
	Continuation *models.Offer        `json:"continuation"`
}

// splitItemPlan 单个报价项的拆分计划
type splitItemPlan struct {
	offerItem   models.OfferLineItem
	requestItem models.RequestOrderLineItem
	residual    int
}

// SplitOffer 执行拆分。原报价单只保留核准的数量继续走采购，
// 剩余需求生成新需求单和 in_progress 后续报价单。
func (s *OfferSplitService) SplitOffer(offerID uint, actor string) (*SplitResult, error) {
	offer, err := s.offerRepo.GetByID(offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	if offer.Status != constants.OfferStatusFinancePartialAccepted {
		return nil, fmt.Errorf("%w: offer %d has status %s", ErrSplitNotPartial, offer.ID, offer.Status)
	}

	request, err := s.requestRepo.GetByID(offer.RequestOrderID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestOrderNotFound
	}
	requestItems := make(map[uint]models.RequestOrderLineItem, len(request.Items))
	for _, item := range request.Items {
		requestItems[item.ID] = item
	}

	plans := make([]splitItemPlan, 0, len(offer.Items))
	acceptedCount := 0
	for _, item := range offer.Items {
		source, ok := requestItems[item.RequestItemID]
		if !ok {
			return nil, fmt.Errorf("%w: offer item %d references missing request item %d", ErrIntegrity, item.ID, item.RequestItemID)
		}
		accepted := 0
		if item.FinanceStatus == constants.FinanceStatusAccepted {
			accepted = item.AcceptedQuantity
			acceptedCount++
		}
		// 剩余 = 需求量 − 本次核准 − 历史已拆分
		residual := source.RequestedQuantity - accepted - source.SplitAllocatedQty
		if residual < 0 {
			return nil, fmt.Errorf("%w: request item %d requested %d, accepted %d, already split %d",
				ErrSplitQuantity, source.ID, source.RequestedQuantity, accepted, source.SplitAllocatedQty)
		}
		if accepted+residual+source.SplitAllocatedQty != source.RequestedQuantity {
			return nil, fmt.Errorf("%w: request item %d conservation check failed: %d + %d + %d != %d",
				ErrIntegrity, source.ID, accepted, residual, source.SplitAllocatedQty, source.RequestedQuantity)
		}
		plans = append(plans, splitItemPlan{offerItem: item, requestItem: source, residual: residual})
	}
	if acceptedCount == 0 {
		return nil, fmt.Errorf("%w: offer %d", ErrSplitNothingAccepted, offer.ID)
	}

	residualTotal := 0
	for _, plan := range plans {
		residualTotal += plan.residual
	}
	if residualTotal == 0 {
		return nil, fmt.Errorf("%w: offer %d has no residual demand", ErrSplitNothingLeft, offer.ID)
	}

	newRequest := &models.RequestOrder{
		RequestNo: generateRequestNo(),
		Title:     fmt.Sprintf("%s (续 %s)", request.Title, offer.OfferNo),
		Requester: request.Requester,
		Status:    constants.RequestOrderStatusOpen,
		ParentID:  &request.ID,
	}
	continuation := &models.Offer{
		OfferNo:       generateOfferNo(),
		ParentOfferID: &offer.ID,
		Status:        constants.OfferStatusInProgress,
		AttemptNumber: 1,
		CreatedBy:     strings.TrimSpace(actor),
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		offerTx := s.offerRepo.WithTx(tx)
		requestTx := s.requestRepo.WithTx(tx)
		timelineTx := s.timelineRepo.WithTx(tx)

		// 防止重复拆分：存在性检查必须和写入同处一个事务
		existing, err := offerTx.GetContinuation(offer.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: offer %d already split into offer %d", ErrSplitAlreadyDone, offer.ID, existing.ID)
		}

		newRequestItems := make([]models.RequestOrderLineItem, 0, len(plans))
		for _, plan := range plans {
			if plan.residual == 0 {
				continue
			}
			newRequestItems = append(newRequestItems, models.RequestOrderLineItem{
				ItemType:          plan.requestItem.ItemType,
				RequestedQuantity: plan.residual,
				Comment:           fmt.Sprintf("由需求单 %s 第 %d 项拆分", request.RequestNo, plan.requestItem.ID),
			})
		}
		if err := requestTx.Create(newRequest, newRequestItems); err != nil {
			return err
		}
		if err := requestTx.UpdateStatus(request.ID, constants.RequestOrderStatusSuperseded, nil); err != nil {
			return err
		}

		// 按创建顺序回填新需求项 ID
		continuationItems := make([]models.OfferLineItem, 0, len(newRequestItems))
		idx := 0
		for _, plan := range plans {
			if plan.residual == 0 {
				continue
			}
			continuationItems = append(continuationItems, models.OfferLineItem{
				RequestItemID: newRequest.Items[idx].ID,
				ItemType:      plan.offerItem.ItemType,
				Merchant:      plan.offerItem.Merchant,
				UnitPrice:     plan.offerItem.UnitPrice,
				Quantity:      plan.residual,
				FinanceStatus: constants.FinanceStatusPending,
			})
			idx++
		}
		continuation.RequestOrderID = newRequest.ID
		if err := offerTx.Create(continuation, continuationItems); err != nil {
			return err
		}

		// 累计已拆分数量，防止多代拆分重复分配
		for _, plan := range plans {
			if plan.residual == 0 {
				continue
			}
			if err := requestTx.UpdateItem(plan.requestItem.ID, map[string]interface{}{
				"split_allocated_qty": plan.requestItem.SplitAllocatedQty + plan.residual,
			}); err != nil {
				return err
			}
		}

		// 原报价单只保留核准数量，未核准项移除
		dropIDs := make([]uint, 0, len(plans))
		for _, plan := range plans {
			if plan.offerItem.FinanceStatus != constants.FinanceStatusAccepted {
				dropIDs = append(dropIDs, plan.offerItem.ID)
				continue
			}
			if plan.offerItem.AcceptedQuantity != plan.offerItem.Quantity {
				if err := offerTx.UpdateItem(plan.offerItem.ID, map[string]interface{}{
					"quantity": plan.offerItem.AcceptedQuantity,
				}); err != nil {
					return err
				}
			}
		}
		if err := offerTx.DeleteItems(offer.ID, dropIDs); err != nil {
			return err
		}

		now := s.clock.now()
		if err := timelineTx.Create(&models.OfferTimelineEvent{
			OfferID:        offer.ID,
			EventType:      constants.TimelineEventOfferSplit,
			AttemptNumber:  offer.AttemptNumber,
			Actor:          strings.TrimSpace(actor),
			PreviousStatus: offer.Status,
			NewStatus:      offer.Status,
			Notes:          fmt.Sprintf("剩余需求 %d 件转入报价单 %s", residualTotal, continuation.OfferNo),
			EventTime:      now,
		}); err != nil {
			return err
		}

		// 祖先时间线以只读副本的形式继承到后续报价单
		inherited := make([]models.OfferTimelineEvent, 0, len(offer.Timeline)+1)
		for _, event := range offer.Timeline {
			inherited = append(inherited, models.OfferTimelineEvent{
				OfferID:        continuation.ID,
				EventType:      event.EventType,
				AttemptNumber:  event.AttemptNumber,
				Actor:          event.Actor,
				PreviousStatus: event.PreviousStatus,
				NewStatus:      event.NewStatus,
				Notes:          event.Notes,
				Inherited:      true,
				EventTime:      event.EventTime,
			})
		}
		inherited = append(inherited, models.OfferTimelineEvent{
			OfferID:       continuation.ID,
			EventType:     constants.TimelineEventOfferCreated,
			AttemptNumber: 1,
			Actor:         strings.TrimSpace(actor),
			NewStatus:     constants.OfferStatusInProgress,
			Notes:         fmt.Sprintf("由报价单 %s 拆分产生", offer.OfferNo),
			EventTime:     now,
		})
		return timelineTx.CreateBatch(inherited)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(NotificationInput{
			Event:     constants.NotificationEventOfferSplit,
			Title:     "报价单已拆分",
			Message:   fmt.Sprintf("报价单 %s 拆分出后续报价单 %s", offer.OfferNo, continuation.OfferNo),
			Severity:  constants.NotifySeverityInfo,
			Link:      fmt.Sprintf("/admin/offers/%d", continuation.ID),
			DedupeKey: fmt.Sprintf("offer:%d:split", offer.ID),
		})
	}

	updatedOffer, err := s.offerRepo.GetByID(offer.ID)
	if err != nil {
		return nil, err
	}
	updatedContinuation, err := s.offerRepo.GetByID(continuation.ID)
	if err != nil {
		return nil, err
	}
	freshRequest, err := s.requestRepo.GetByID(newRequest.ID)
	if err != nil {
		return nil, err
	}
	return &SplitResult{
		Offer:        updatedOffer,
		NewRequest:   freshRequest,
		Continuation: updatedContinuation,
	}, nil
}
