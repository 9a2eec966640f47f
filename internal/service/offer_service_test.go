package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupOfferServiceTest(t *testing.T, maxRetries int) (*OfferService, *RequestOrderService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:offer_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.RequestOrder{}, &models.RequestOrderLineItem{},
		&models.Offer{}, &models.OfferLineItem{}, &models.OfferTimelineEvent{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	clock := Clock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	requestRepo := repository.NewRequestOrderRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	offerSvc := NewOfferService(offerRepo, requestRepo, timelineRepo, nil, clock, maxRetries)
	requestSvc := NewRequestOrderService(requestRepo, clock)
	return offerSvc, requestSvc, db
}

func createTestRequestOrder(t *testing.T, svc *RequestOrderService, title string, quantities ...int) *models.RequestOrder {
	t.Helper()

	items := make([]CreateRequestItemInput, 0, len(quantities))
	for i, qty := range quantities {
		items = append(items, CreateRequestItemInput{
			ItemType:          fmt.Sprintf("laptop-%d", i+1),
			RequestedQuantity: qty,
		})
	}
	order, err := svc.CreateRequestOrder(CreateRequestOrderInput{
		Title:     title,
		Requester: "alice",
		Items:     items,
	})
	if err != nil {
		t.Fatalf("create request order failed: %v", err)
	}
	return order
}

func createTestOffer(t *testing.T, svc *OfferService, request *models.RequestOrder) *models.Offer {
	t.Helper()

	inputs := make([]OfferItemInput, 0, len(request.Items))
	for _, item := range request.Items {
		inputs = append(inputs, OfferItemInput{
			RequestItemID: item.ID,
			Merchant:      "acme",
			UnitPrice:     models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
			Quantity:      item.RequestedQuantity,
		})
	}
	offer, err := svc.CreateOffer(CreateOfferInput{
		RequestOrderID: request.ID,
		CreatedBy:      "bob",
		Items:          inputs,
	})
	if err != nil {
		t.Fatalf("create offer failed: %v", err)
	}
	return offer
}

func advanceOffer(t *testing.T, svc *OfferService, offerID uint, targets ...string) *models.Offer {
	t.Helper()

	var offer *models.Offer
	var err error
	for _, target := range targets {
		offer, err = svc.Transition(TransitionInput{OfferID: offerID, Target: target, Actor: "tester"})
		if err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}
	}
	return offer
}

func TestOfferLifecycleHappyPath(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "办公电脑采购", 5, 3)
	offer := createTestOffer(t, offerSvc, request)

	if offer.Status != constants.OfferStatusUnstarted {
		t.Fatalf("expected unstarted, got %s", offer.Status)
	}
	if len(offer.Timeline) != 1 || offer.Timeline[0].EventType != constants.TimelineEventOfferCreated {
		t.Fatalf("unexpected initial timeline: %+v", offer.Timeline)
	}

	offer = advanceOffer(t, offerSvc, offer.ID,
		constants.OfferStatusInProgress,
		constants.OfferStatusSubmitted,
		constants.OfferStatusManagerAccepted,
	)
	if offer.Status != constants.OfferStatusManagerAccepted {
		t.Fatalf("expected manager_accepted, got %s", offer.Status)
	}

	decisions := make([]FinanceItemDecision, 0, len(offer.Items))
	for _, item := range offer.Items {
		decisions = append(decisions, FinanceItemDecision{
			OfferItemID:      item.ID,
			FinanceStatus:    constants.FinanceStatusAccepted,
			AcceptedQuantity: item.Quantity,
		})
	}
	offer, err := offerSvc.FinanceReview(FinanceReviewInput{OfferID: offer.ID, Actor: "cfo", Decisions: decisions})
	if err != nil {
		t.Fatalf("finance review failed: %v", err)
	}
	if offer.Status != constants.OfferStatusFinanceAccepted {
		t.Fatalf("expected finance_accepted, got %s", offer.Status)
	}
	for _, item := range offer.Items {
		if item.FinanceStatus != constants.FinanceStatusAccepted || item.AcceptedQuantity != item.Quantity {
			t.Fatalf("unexpected item after full acceptance: %+v", item)
		}
	}
	// created, started, submitted, manager_accepted, finance_accepted
	if len(offer.Timeline) != 5 {
		t.Fatalf("expected 5 timeline events, got %d", len(offer.Timeline))
	}
}

func TestOfferInvalidTransitionWritesNothing(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "显示器采购", 4)
	offer := createTestOffer(t, offerSvc, request)

	_, err := offerSvc.Transition(TransitionInput{OfferID: offer.ID, Target: constants.OfferStatusFinanceAccepted, Actor: "mallory"})
	if !errors.Is(err, ErrOfferTransition) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if !errors.Is(err, ErrState) {
		t.Fatalf("expected state error kind, got %v", err)
	}

	reloaded, err := offerSvc.GetOffer(offer.ID)
	if err != nil {
		t.Fatalf("reload offer failed: %v", err)
	}
	if reloaded.Status != constants.OfferStatusUnstarted {
		t.Fatalf("status changed by rejected transition: %s", reloaded.Status)
	}
	if len(reloaded.Timeline) != 1 {
		t.Fatalf("timeline polluted by rejected transition: %d events", len(reloaded.Timeline))
	}
}

func TestOfferRetryAfterRejection(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "服务器采购", 2)
	offer := createTestOffer(t, offerSvc, request)

	offer = advanceOffer(t, offerSvc, offer.ID,
		constants.OfferStatusInProgress,
		constants.OfferStatusSubmitted,
		constants.OfferStatusManagerRejected,
	)

	retried, err := offerSvc.Retry(offer.ID, "bob", "换了供应商重报")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.Status != constants.OfferStatusInProgress {
		t.Fatalf("expected in_progress after retry, got %s", retried.Status)
	}
	if retried.AttemptNumber != 2 || retried.TotalRetries != 1 {
		t.Fatalf("unexpected attempt counters: attempt=%d retries=%d", retried.AttemptNumber, retried.TotalRetries)
	}
	for _, item := range retried.Items {
		if item.FinanceStatus != constants.FinanceStatusPending || item.AcceptedQuantity != 0 || item.Finalized {
			t.Fatalf("finance fields not reset on retry: %+v", item)
		}
	}

	// 历史轮次的事件必须原样保留
	// created, started, submitted, manager_rejected, retried
	if len(retried.Timeline) != 5 {
		t.Fatalf("expected 5 timeline events, got %d", len(retried.Timeline))
	}
	if retried.Timeline[3].EventType != constants.TimelineEventManagerRejected || retried.Timeline[3].AttemptNumber != 1 {
		t.Fatalf("rejection event lost or rewritten: %+v", retried.Timeline[3])
	}
	if retried.Timeline[4].EventType != constants.TimelineEventOfferRetried || retried.Timeline[4].AttemptNumber != 2 {
		t.Fatalf("unexpected retry event: %+v", retried.Timeline[4])
	}
}

func TestOfferRetryLimit(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 1)
	request := createTestRequestOrder(t, requestSvc, "打印机采购", 1)
	offer := createTestOffer(t, offerSvc, request)

	advanceOffer(t, offerSvc, offer.ID,
		constants.OfferStatusInProgress,
		constants.OfferStatusSubmitted,
		constants.OfferStatusManagerRejected,
	)
	if _, err := offerSvc.Retry(offer.ID, "bob", ""); err != nil {
		t.Fatalf("first retry failed: %v", err)
	}
	advanceOffer(t, offerSvc, offer.ID,
		constants.OfferStatusSubmitted,
		constants.OfferStatusManagerRejected,
	)
	if _, err := offerSvc.Retry(offer.ID, "bob", ""); !errors.Is(err, ErrOfferRetriesExceeded) {
		t.Fatalf("expected retry limit error, got %v", err)
	}
}

func TestOfferRetryRequiresRejectedStatus(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "键盘采购", 6)
	offer := createTestOffer(t, offerSvc, request)

	if _, err := offerSvc.Retry(offer.ID, "bob", ""); !errors.Is(err, ErrOfferNotRejected) {
		t.Fatalf("expected not-rejected error, got %v", err)
	}
}

func TestFinanceReviewRequiresDecisionForEveryItem(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "配件采购", 3, 4)
	offer := createTestOffer(t, offerSvc, request)
	offer = advanceOffer(t, offerSvc, offer.ID,
		constants.OfferStatusInProgress,
		constants.OfferStatusSubmitted,
		constants.OfferStatusManagerAccepted,
	)

	_, err := offerSvc.FinanceReview(FinanceReviewInput{
		OfferID: offer.ID,
		Actor:   "cfo",
		Decisions: []FinanceItemDecision{
			{OfferItemID: offer.Items[0].ID, FinanceStatus: constants.FinanceStatusAccepted, AcceptedQuantity: 3},
		},
	})
	if !errors.Is(err, ErrFinanceReviewPending) {
		t.Fatalf("expected undecided-items error, got %v", err)
	}

	reloaded, err := offerSvc.GetOffer(offer.ID)
	if err != nil {
		t.Fatalf("reload offer failed: %v", err)
	}
	if reloaded.Status != constants.OfferStatusManagerAccepted {
		t.Fatalf("status changed by failed review: %s", reloaded.Status)
	}
}

func TestFinanceReviewPartialOutcome(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "网络设备采购", 10, 20)
	offer := createTestOffer(t, offerSvc, request)
	offer = advanceOffer(t, offerSvc, offer.ID,
		constants.OfferStatusInProgress,
		constants.OfferStatusSubmitted,
		constants.OfferStatusManagerAccepted,
	)

	offer, err := offerSvc.FinanceReview(FinanceReviewInput{
		OfferID: offer.ID,
		Actor:   "cfo",
		Decisions: []FinanceItemDecision{
			{OfferItemID: offer.Items[0].ID, FinanceStatus: constants.FinanceStatusAccepted, AcceptedQuantity: 10},
			{OfferItemID: offer.Items[1].ID, FinanceStatus: constants.FinanceStatusAccepted, AcceptedQuantity: 15},
		},
	})
	if err != nil {
		t.Fatalf("finance review failed: %v", err)
	}
	if offer.Status != constants.OfferStatusFinancePartialAccepted {
		t.Fatalf("expected finance_partially_accepted, got %s", offer.Status)
	}
}

func TestFinanceReviewAllRejected(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "耗材采购", 5)
	offer := createTestOffer(t, offerSvc, request)
	offer = advanceOffer(t, offerSvc, offer.ID,
		constants.OfferStatusInProgress,
		constants.OfferStatusSubmitted,
		constants.OfferStatusManagerAccepted,
	)

	offer, err := offerSvc.FinanceReview(FinanceReviewInput{
		OfferID: offer.ID,
		Actor:   "cfo",
		Notes:   "预算冻结",
		Decisions: []FinanceItemDecision{
			{OfferItemID: offer.Items[0].ID, FinanceStatus: constants.FinanceStatusRejected},
		},
	})
	if err != nil {
		t.Fatalf("finance review failed: %v", err)
	}
	if offer.Status != constants.OfferStatusFinanceRejected {
		t.Fatalf("expected finance_rejected, got %s", offer.Status)
	}
}

func TestOfferCancelBlocksFurtherTransitions(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "椅子采购", 8)
	offer := createTestOffer(t, offerSvc, request)

	cancelled, err := offerSvc.Cancel(offer.ID, "bob", "需求取消")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.OfferStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	if _, err := offerSvc.Transition(TransitionInput{OfferID: offer.ID, Target: constants.OfferStatusInProgress}); !errors.Is(err, ErrOfferTerminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if _, err := offerSvc.Cancel(offer.ID, "bob", ""); !errors.Is(err, ErrOfferTerminal) {
		t.Fatalf("expected terminal error on double cancel, got %v", err)
	}
}

func TestReplaceItemsOnlyWhileEditable(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "工位采购", 12)
	offer := createTestOffer(t, offerSvc, request)

	updated, err := offerSvc.ReplaceItems(offer.ID, []OfferItemInput{
		{
			RequestItemID: request.Items[0].ID,
			Merchant:      "globex",
			UnitPrice:     models.NewMoneyFromDecimal(decimal.NewFromInt(95)),
			Quantity:      12,
		},
	})
	if err != nil {
		t.Fatalf("replace items failed: %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].Merchant != "globex" {
		t.Fatalf("unexpected items after replace: %+v", updated.Items)
	}

	advanceOffer(t, offerSvc, offer.ID,
		constants.OfferStatusInProgress,
		constants.OfferStatusSubmitted,
	)
	_, err = offerSvc.ReplaceItems(offer.ID, []OfferItemInput{
		{RequestItemID: request.Items[0].ID, Quantity: 1},
	})
	if !errors.Is(err, ErrOfferNotEditable) {
		t.Fatalf("expected not-editable error, got %v", err)
	}
}

func TestCreateOfferRejectsForeignRequestItem(t *testing.T) {
	offerSvc, requestSvc, _ := setupOfferServiceTest(t, 0)
	request := createTestRequestOrder(t, requestSvc, "甲需求", 3)
	other := createTestRequestOrder(t, requestSvc, "乙需求", 5)

	_, err := offerSvc.CreateOffer(CreateOfferInput{
		RequestOrderID: request.ID,
		Items: []OfferItemInput{
			{RequestItemID: other.Items[0].ID, Quantity: 5},
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
