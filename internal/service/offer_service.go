package service

import (
	"fmt"
	"strings"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/repository"

	"gorm.io/gorm"
)

// OfferService 报价单服务：状态机、财务审批与重试
type OfferService struct {
	offerRepo    repository.OfferRepository
	requestRepo  repository.RequestOrderRepository
	timelineRepo repository.TimelineRepository
	notifier     *NotificationService
	clock        Clock
	maxRetries   int
}

// NewOfferService 创建报价单服务
func NewOfferService(offerRepo repository.OfferRepository, requestRepo repository.RequestOrderRepository, timelineRepo repository.TimelineRepository, notifier *NotificationService, clock Clock, maxRetries int) *OfferService {
	return &OfferService{
		offerRepo:    offerRepo,
		requestRepo:  requestRepo,
		timelineRepo: timelineRepo,
		notifier:     notifier,
		clock:        clock,
		maxRetries:   maxRetries,
	}
}

// allowedOfferTransitions 报价单状态机。取消与重试另行处理。
var allowedOfferTransitions = map[string]map[string]bool{
	constants.OfferStatusUnstarted: {
		constants.OfferStatusInProgress: true,
	},
	constants.OfferStatusInProgress: {
		constants.OfferStatusSubmitted: true,
	},
	constants.OfferStatusSubmitted: {
		constants.OfferStatusManagerAccepted: true,
		constants.OfferStatusManagerRejected: true,
	},
	constants.OfferStatusManagerAccepted: {
		constants.OfferStatusFinanceAccepted:        true,
		constants.OfferStatusFinanceRejected:        true,
		constants.OfferStatusFinancePartialAccepted: true,
	},
	constants.OfferStatusFinanceAccepted: {
		constants.OfferStatusFinalizing: true,
	},
	constants.OfferStatusFinancePartialAccepted: {
		constants.OfferStatusFinalizing: true,
	},
	constants.OfferStatusFinalizing: {
		constants.OfferStatusCompleted: true,
	},
}

// transitionEventTypes 每个目标状态对应的时间线事件类型
var transitionEventTypes = map[string]string{
	constants.OfferStatusInProgress:             constants.TimelineEventOfferStarted,
	constants.OfferStatusSubmitted:              constants.TimelineEventOfferSubmitted,
	constants.OfferStatusManagerAccepted:        constants.TimelineEventManagerAccepted,
	constants.OfferStatusManagerRejected:        constants.TimelineEventManagerRejected,
	constants.OfferStatusFinanceAccepted:        constants.TimelineEventFinanceAccepted,
	constants.OfferStatusFinanceRejected:        constants.TimelineEventFinanceRejected,
	constants.OfferStatusFinancePartialAccepted: constants.TimelineEventFinancePartialAccepted,
	constants.OfferStatusFinalizing:             constants.TimelineEventOfferFinalizing,
	constants.OfferStatusCompleted:              constants.TimelineEventOfferCompleted,
}

// isOfferTerminal 报价单是否已到终态
func isOfferTerminal(status string) bool {
	switch status {
	case constants.OfferStatusCompleted, constants.OfferStatusCancelled:
		return true
	}
	return false
}

// isOfferEditable 报价项是否仍可编辑
func isOfferEditable(status string) bool {
	return status == constants.OfferStatusUnstarted || status == constants.OfferStatusInProgress
}

// isOfferRejected 是否处于可重试的驳回状态
func isOfferRejected(status string) bool {
	return status == constants.OfferStatusManagerRejected || status == constants.OfferStatusFinanceRejected
}

// CreateOfferInput 创建报价单输入
type CreateOfferInput struct {
	RequestOrderID uint
	CreatedBy      string
	Items          []OfferItemInput
}

// OfferItemInput 报价项输入
type OfferItemInput struct {
	RequestItemID uint
	Merchant      string
	UnitPrice     models.Money
	Quantity      int
}

// CreateOffer 针对需求单创建报价单，初始状态 unstarted
func (s *OfferService) CreateOffer(input CreateOfferInput) (*models.Offer, error) {
	request, err := s.requestRepo.GetByID(input.RequestOrderID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestOrderNotFound
	}
	if request.Status == constants.RequestOrderStatusClosed {
		return nil, ErrRequestOrderClosed
	}
	if len(input.Items) == 0 {
		return nil, ErrOfferEmpty
	}

	requestItems := make(map[uint]models.RequestOrderLineItem, len(request.Items))
	for _, item := range request.Items {
		requestItems[item.ID] = item
	}

	items := make([]models.OfferLineItem, 0, len(input.Items))
	for i, in := range input.Items {
		source, ok := requestItems[in.RequestItemID]
		if !ok {
			return nil, fmt.Errorf("%w: request item %d does not belong to request order %d", ErrValidation, in.RequestItemID, request.ID)
		}
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line item %d quantity must be positive, got %d", ErrValidation, i+1, in.Quantity)
		}
		items = append(items, models.OfferLineItem{
			RequestItemID: source.ID,
			ItemType:      source.ItemType,
			Merchant:      strings.TrimSpace(in.Merchant),
			UnitPrice:     in.UnitPrice,
			Quantity:      in.Quantity,
			FinanceStatus: constants.FinanceStatusPending,
		})
	}

	offer := &models.Offer{
		OfferNo:        generateOfferNo(),
		RequestOrderID: request.ID,
		Status:         constants.OfferStatusUnstarted,
		AttemptNumber:  1,
		CreatedBy:      strings.TrimSpace(input.CreatedBy),
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.offerRepo.WithTx(tx).Create(offer, items); err != nil {
			return err
		}
		return s.timelineRepo.WithTx(tx).Create(&models.OfferTimelineEvent{
			OfferID:       offer.ID,
			EventType:     constants.TimelineEventOfferCreated,
			AttemptNumber: offer.AttemptNumber,
			Actor:         offer.CreatedBy,
			NewStatus:     offer.Status,
			EventTime:     s.clock.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetOffer(offer.ID)
}

// GetOffer 获取报价单详情（含报价项与时间线）
func (s *OfferService) GetOffer(id uint) (*models.Offer, error) {
	if id == 0 {
		return nil, ErrOfferNotFound
	}
	offer, err := s.offerRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

// ListOffers 分页查询报价单
func (s *OfferService) ListOffers(filter repository.OfferListFilter) ([]models.Offer, int64, error) {
	return s.offerRepo.List(filter)
}

// GetTimeline 获取报价单时间线（按事件时间与写入顺序升序）
func (s *OfferService) GetTimeline(offerID uint) ([]models.OfferTimelineEvent, error) {
	if _, err := s.GetOffer(offerID); err != nil {
		return nil, err
	}
	return s.timelineRepo.ListByOffer(offerID)
}

// ReplaceItems 编辑报价项，仅限 unstarted / in_progress 状态
func (s *OfferService) ReplaceItems(offerID uint, inputs []OfferItemInput) (*models.Offer, error) {
	offer, err := s.GetOffer(offerID)
	if err != nil {
		return nil, err
	}
	if !isOfferEditable(offer.Status) {
		return nil, fmt.Errorf("%w: offer %d has status %s", ErrOfferNotEditable, offer.ID, offer.Status)
	}
	if len(inputs) == 0 {
		return nil, ErrOfferEmpty
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

	items := make([]models.OfferLineItem, 0, len(inputs))
	for i, in := range inputs {
		source, ok := requestItems[in.RequestItemID]
		if !ok {
			return nil, fmt.Errorf("%w: request item %d does not belong to request order %d", ErrValidation, in.RequestItemID, request.ID)
		}
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line item %d quantity must be positive, got %d", ErrValidation, i+1, in.Quantity)
		}
		items = append(items, models.OfferLineItem{
			RequestItemID: source.ID,
			ItemType:      source.ItemType,
			Merchant:      strings.TrimSpace(in.Merchant),
			UnitPrice:     in.UnitPrice,
			Quantity:      in.Quantity,
			FinanceStatus: constants.FinanceStatusPending,
		})
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		return s.offerRepo.WithTx(tx).ReplaceItems(offer.ID, items)
	})
	if err != nil {
		return nil, err
	}
	return s.GetOffer(offer.ID)
}

// TransitionInput 状态变更输入
type TransitionInput struct {
	OfferID uint
	Target  string
	Actor   string
	Notes   string
}

// Transition 执行一次状态变更并写入时间线事件。
// 非法变更返回 StateError，不落任何数据。
func (s *OfferService) Transition(input TransitionInput) (*models.Offer, error) {
	offer, err := s.GetOffer(input.OfferID)
	if err != nil {
		return nil, err
	}
	if isOfferTerminal(offer.Status) {
		return nil, fmt.Errorf("%w: offer %d is %s", ErrOfferTerminal, offer.ID, offer.Status)
	}
	nexts, ok := allowedOfferTransitions[offer.Status]
	if !ok || !nexts[input.Target] {
		return nil, fmt.Errorf("%w: offer %d cannot move from %s to %s", ErrOfferTransition, offer.ID, offer.Status, input.Target)
	}
	eventType, ok := transitionEventTypes[input.Target]
	if !ok {
		return nil, fmt.Errorf("%w: offer %d has no event for target %s", ErrOfferTransition, offer.ID, input.Target)
	}

	previous := offer.Status
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.offerRepo.WithTx(tx).Update(offer.ID, map[string]interface{}{"status": input.Target}); err != nil {
			return err
		}
		return s.timelineRepo.WithTx(tx).Create(&models.OfferTimelineEvent{
			OfferID:        offer.ID,
			EventType:      eventType,
			AttemptNumber:  offer.AttemptNumber,
			Actor:          strings.TrimSpace(input.Actor),
			PreviousStatus: previous,
			NewStatus:      input.Target,
			Notes:          strings.TrimSpace(input.Notes),
			EventTime:      s.clock.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyTransition(offer, previous, input.Target)
	return s.GetOffer(offer.ID)
}

func (s *OfferService) notifyTransition(offer *models.Offer, previous, target string) {
	if s.notifier == nil {
		return
	}
	switch target {
	case constants.OfferStatusSubmitted:
		s.notifier.Notify(NotificationInput{
			Event:     constants.NotificationEventOfferSubmitted,
			Title:     "报价单已提交",
			Message:   fmt.Sprintf("报价单 %s 已提交审批", offer.OfferNo),
			Severity:  constants.NotifySeverityInfo,
			Link:      fmt.Sprintf("/admin/offers/%d", offer.ID),
			DedupeKey: fmt.Sprintf("offer:%d:submitted:%d", offer.ID, offer.AttemptNumber),
		})
	case constants.OfferStatusManagerAccepted, constants.OfferStatusManagerRejected,
		constants.OfferStatusFinanceAccepted, constants.OfferStatusFinanceRejected,
		constants.OfferStatusFinancePartialAccepted:
		severity := constants.NotifySeverityInfo
		if target == constants.OfferStatusManagerRejected || target == constants.OfferStatusFinanceRejected {
			severity = constants.NotifySeverityWarning
		}
		s.notifier.Notify(NotificationInput{
			Event:     constants.NotificationEventOfferDecided,
			Title:     "报价单审批结果",
			Message:   fmt.Sprintf("报价单 %s 由 %s 进入 %s", offer.OfferNo, previous, target),
			Severity:  severity,
			Link:      fmt.Sprintf("/admin/offers/%d", offer.ID),
			DedupeKey: fmt.Sprintf("offer:%d:%s:%d", offer.ID, target, offer.AttemptNumber),
		})
	}
}

// FinanceReviewInput 财务逐项审批输入
type FinanceReviewInput struct {
	OfferID   uint
	Actor     string
	Notes     string
	Decisions []FinanceItemDecision
}

// FinanceItemDecision 单个报价项的财务决定
type FinanceItemDecision struct {
	OfferItemID      uint
	FinanceStatus    string
	AcceptedQuantity int
}

// FinanceReview 财务逐项审批：全部通过则 finance_accepted，全部驳回则
// finance_rejected，混合或数量削减则 finance_partially_accepted。
// 每个报价项都必须给出决定，否则返回 StateError。
func (s *OfferService) FinanceReview(input FinanceReviewInput) (*models.Offer, error) {
	offer, err := s.GetOffer(input.OfferID)
	if err != nil {
		return nil, err
	}
	if offer.Status != constants.OfferStatusManagerAccepted {
		return nil, fmt.Errorf("%w: offer %d has status %s", ErrFinanceNotReviewable, offer.ID, offer.Status)
	}

	decisions := make(map[uint]FinanceItemDecision, len(input.Decisions))
	for _, d := range input.Decisions {
		decisions[d.OfferItemID] = d
	}

	fullyAccepted := 0
	rejected := 0
	trimmed := 0
	updates := make(map[uint]map[string]interface{}, len(offer.Items))
	for _, item := range offer.Items {
		decision, ok := decisions[item.ID]
		if !ok {
			return nil, fmt.Errorf("%w: offer item %d has no decision", ErrFinanceReviewPending, item.ID)
		}
		switch decision.FinanceStatus {
		case constants.FinanceStatusAccepted:
			accepted := decision.AcceptedQuantity
			if accepted <= 0 || accepted > item.Quantity {
				return nil, fmt.Errorf("%w: offer item %d accepted quantity %d out of range (1..%d)", ErrValidation, item.ID, accepted, item.Quantity)
			}
			if accepted == item.Quantity {
				fullyAccepted++
			} else {
				trimmed++
			}
			updates[item.ID] = map[string]interface{}{
				"finance_status":    constants.FinanceStatusAccepted,
				"accepted_quantity": accepted,
			}
		case constants.FinanceStatusRejected:
			rejected++
			updates[item.ID] = map[string]interface{}{
				"finance_status":    constants.FinanceStatusRejected,
				"accepted_quantity": 0,
			}
		default:
			return nil, fmt.Errorf("%w: offer item %d has invalid finance status %q", ErrValidation, item.ID, decision.FinanceStatus)
		}
	}

	target := constants.OfferStatusFinancePartialAccepted
	switch {
	case rejected == len(offer.Items):
		target = constants.OfferStatusFinanceRejected
	case fullyAccepted == len(offer.Items) && trimmed == 0:
		target = constants.OfferStatusFinanceAccepted
	}

	previous := offer.Status
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		offerTx := s.offerRepo.WithTx(tx)
		for itemID, fields := range updates {
			if err := offerTx.UpdateItem(itemID, fields); err != nil {
				return err
			}
		}
		if err := offerTx.Update(offer.ID, map[string]interface{}{"status": target}); err != nil {
			return err
		}
		return s.timelineRepo.WithTx(tx).Create(&models.OfferTimelineEvent{
			OfferID:        offer.ID,
			EventType:      transitionEventTypes[target],
			AttemptNumber:  offer.AttemptNumber,
			Actor:          strings.TrimSpace(input.Actor),
			PreviousStatus: previous,
			NewStatus:      target,
			Notes:          strings.TrimSpace(input.Notes),
			EventTime:      s.clock.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyTransition(offer, previous, target)
	return s.GetOffer(offer.ID)
}

// Retry 重试被驳回的报价单：轮次加一，状态回到 in_progress，历史保留
func (s *OfferService) Retry(offerID uint, actor, notes string) (*models.Offer, error) {
	offer, err := s.GetOffer(offerID)
	if err != nil {
		return nil, err
	}
	if !isOfferRejected(offer.Status) {
		return nil, fmt.Errorf("%w: offer %d has status %s", ErrOfferNotRejected, offer.ID, offer.Status)
	}
	if s.maxRetries > 0 && offer.TotalRetries >= s.maxRetries {
		return nil, fmt.Errorf("%w: offer %d already retried %d times", ErrOfferRetriesExceeded, offer.ID, offer.TotalRetries)
	}

	previous := offer.Status
	nextAttempt := offer.AttemptNumber + 1
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		offerTx := s.offerRepo.WithTx(tx)
		if err := offerTx.Update(offer.ID, map[string]interface{}{
			"status":         constants.OfferStatusInProgress,
			"attempt_number": nextAttempt,
			"total_retries":  offer.TotalRetries + 1,
		}); err != nil {
			return err
		}
		// 重试后财务决定作废，回到待审
		for _, item := range offer.Items {
			if err := offerTx.UpdateItem(item.ID, map[string]interface{}{
				"finance_status":    constants.FinanceStatusPending,
				"accepted_quantity": 0,
				"finalized":         false,
			}); err != nil {
				return err
			}
		}
		return s.timelineRepo.WithTx(tx).Create(&models.OfferTimelineEvent{
			OfferID:        offer.ID,
			EventType:      constants.TimelineEventOfferRetried,
			AttemptNumber:  nextAttempt,
			Actor:          strings.TrimSpace(actor),
			PreviousStatus: previous,
			NewStatus:      constants.OfferStatusInProgress,
			Notes:          strings.TrimSpace(notes),
			EventTime:      s.clock.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetOffer(offer.ID)
}

// Cancel 取消报价单，任意非终态可取消
func (s *OfferService) Cancel(offerID uint, actor, notes string) (*models.Offer, error) {
	offer, err := s.GetOffer(offerID)
	if err != nil {
		return nil, err
	}
	if isOfferTerminal(offer.Status) {
		return nil, fmt.Errorf("%w: offer %d is %s", ErrOfferTerminal, offer.ID, offer.Status)
	}

	previous := offer.Status
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.offerRepo.WithTx(tx).Update(offer.ID, map[string]interface{}{"status": constants.OfferStatusCancelled}); err != nil {
			return err
		}
		return s.timelineRepo.WithTx(tx).Create(&models.OfferTimelineEvent{
			OfferID:        offer.ID,
			EventType:      constants.TimelineEventOfferCancelled,
			AttemptNumber:  offer.AttemptNumber,
			Actor:          strings.TrimSpace(actor),
			PreviousStatus: previous,
			NewStatus:      constants.OfferStatusCancelled,
			Notes:          strings.TrimSpace(notes),
			EventTime:      s.clock.now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetOffer(offer.ID)
}
