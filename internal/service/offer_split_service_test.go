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
	"gorm.io/gorm"
)

func setupSplitServiceTest(t *testing.T) (*OfferSplitService, *OfferService, *RequestOrderService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:offer_split_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	clock := Clock(func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) })
	requestRepo := repository.NewRequestOrderRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	splitSvc := NewOfferSplitService(offerRepo, requestRepo, timelineRepo, nil, clock)
	offerSvc := NewOfferService(offerRepo, requestRepo, timelineRepo, nil, clock, 0)
	requestSvc := NewRequestOrderService(requestRepo, clock)
	return splitSvc, offerSvc, requestSvc, db
}

// preparePartialOffer 走到 finance_partially_accepted：
// 第一项 10 全收，第二项 20 收 10，第三项 30 整项驳回。
func preparePartialOffer(t *testing.T, offerSvc *OfferService, requestSvc *RequestOrderService) (*models.RequestOrder, *models.Offer) {
	t.Helper()

	request := createTestRequestOrder(t, requestSvc, "分批采购需求", 10, 20, 30)
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
			{OfferItemID: offer.Items[1].ID, FinanceStatus: constants.FinanceStatusAccepted, AcceptedQuantity: 10},
			{OfferItemID: offer.Items[2].ID, FinanceStatus: constants.FinanceStatusRejected},
		},
	})
	if err != nil {
		t.Fatalf("finance review failed: %v", err)
	}
	if offer.Status != constants.OfferStatusFinancePartialAccepted {
		t.Fatalf("expected finance_partially_accepted, got %s", offer.Status)
	}
	return request, offer
}

func TestSplitOffer(t *testing.T) {
	splitSvc, offerSvc, requestSvc, _ := setupSplitServiceTest(t)
	request, offer := preparePartialOffer(t, offerSvc, requestSvc)

	result, err := splitSvc.SplitOffer(offer.ID, "ops")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}

	// 原报价单只留核准数量：10 + 10，被驳回的第三项移除
	if len(result.Offer.Items) != 2 {
		t.Fatalf("expected 2 items on original offer, got %d", len(result.Offer.Items))
	}
	if result.Offer.Items[0].Quantity != 10 || result.Offer.Items[1].Quantity != 10 {
		t.Fatalf("unexpected kept quantities: %d, %d", result.Offer.Items[0].Quantity, result.Offer.Items[1].Quantity)
	}
	if result.Offer.Status != constants.OfferStatusFinancePartialAccepted {
		t.Fatalf("split must not change original offer status, got %s", result.Offer.Status)
	}

	// 新需求单承接剩余 10（第二项削减）和 30（第三项驳回）
	if result.NewRequest.ParentID == nil || *result.NewRequest.ParentID != request.ID {
		t.Fatalf("new request missing parent reference: %+v", result.NewRequest)
	}
	if len(result.NewRequest.Items) != 2 {
		t.Fatalf("expected 2 items on new request, got %d", len(result.NewRequest.Items))
	}
	if result.NewRequest.Items[0].RequestedQuantity != 10 || result.NewRequest.Items[1].RequestedQuantity != 30 {
		t.Fatalf("unexpected residual quantities: %d, %d",
			result.NewRequest.Items[0].RequestedQuantity, result.NewRequest.Items[1].RequestedQuantity)
	}

	// 后续报价单直接进入 in_progress 并指回原报价单
	if result.Continuation.Status != constants.OfferStatusInProgress {
		t.Fatalf("expected continuation in_progress, got %s", result.Continuation.Status)
	}
	if result.Continuation.ParentOfferID == nil || *result.Continuation.ParentOfferID != offer.ID {
		t.Fatalf("continuation missing parent offer reference: %+v", result.Continuation)
	}
	if len(result.Continuation.Items) != 2 {
		t.Fatalf("expected 2 items on continuation, got %d", len(result.Continuation.Items))
	}

	// 原需求单让位给新需求单
	reloadedRequest, err := requestSvc.GetRequestOrder(request.ID)
	if err != nil {
		t.Fatalf("reload request failed: %v", err)
	}
	if reloadedRequest.Status != constants.RequestOrderStatusSuperseded {
		t.Fatalf("expected superseded request, got %s", reloadedRequest.Status)
	}

	// 数量守恒：需求量 = 核准 + 已拆分
	for i, item := range reloadedRequest.Items {
		accepted := 0
		if i == 0 {
			accepted = 10
		}
		if i == 1 {
			accepted = 10
		}
		if accepted+item.SplitAllocatedQty != item.RequestedQuantity {
			t.Fatalf("conservation violated on item %d: accepted %d + split %d != requested %d",
				item.ID, accepted, item.SplitAllocatedQty, item.RequestedQuantity)
		}
	}

	// 继承时间线为只读副本，末尾补一条自己的创建事件
	inherited := 0
	for _, event := range result.Continuation.Timeline {
		if event.Inherited {
			inherited++
		}
	}
	if inherited == 0 {
		t.Fatalf("continuation timeline has no inherited events")
	}
	last := result.Continuation.Timeline[len(result.Continuation.Timeline)-1]
	if last.EventType != constants.TimelineEventOfferCreated || last.Inherited {
		t.Fatalf("unexpected final continuation event: %+v", last)
	}

	// 原报价单记录一条拆分事件
	foundSplit := false
	for _, event := range result.Offer.Timeline {
		if event.EventType == constants.TimelineEventOfferSplit {
			foundSplit = true
		}
	}
	if !foundSplit {
		t.Fatalf("original offer timeline missing split event")
	}
}

func TestSplitOfferTwiceFails(t *testing.T) {
	splitSvc, offerSvc, requestSvc, _ := setupSplitServiceTest(t)
	_, offer := preparePartialOffer(t, offerSvc, requestSvc)

	if _, err := splitSvc.SplitOffer(offer.ID, "ops"); err != nil {
		t.Fatalf("first split failed: %v", err)
	}
	if _, err := splitSvc.SplitOffer(offer.ID, "ops"); !errors.Is(err, ErrSplitAlreadyDone) {
		t.Fatalf("expected already-split error, got %v", err)
	}
}

func TestSplitOfferRequiresPartialAcceptance(t *testing.T) {
	splitSvc, offerSvc, requestSvc, _ := setupSplitServiceTest(t)
	request := createTestRequestOrder(t, requestSvc, "整单通过需求", 5)
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
			{OfferItemID: offer.Items[0].ID, FinanceStatus: constants.FinanceStatusAccepted, AcceptedQuantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("finance review failed: %v", err)
	}

	if _, err := splitSvc.SplitOffer(offer.ID, "ops"); !errors.Is(err, ErrSplitNotPartial) {
		t.Fatalf("expected not-partial error, got %v", err)
	}
}

func TestSplitOfferMultiGenerationConservation(t *testing.T) {
	splitSvc, offerSvc, requestSvc, _ := setupSplitServiceTest(t)
	_, offer := preparePartialOffer(t, offerSvc, requestSvc)

	first, err := splitSvc.SplitOffer(offer.ID, "ops")
	if err != nil {
		t.Fatalf("first split failed: %v", err)
	}

	// 第二代：后续报价单再次部分核准后继续拆分
	continuation := first.Continuation
	continuation = advanceOffer(t, offerSvc, continuation.ID,
		constants.OfferStatusSubmitted,
		constants.OfferStatusManagerAccepted,
	)
	continuation, err = offerSvc.FinanceReview(FinanceReviewInput{
		OfferID: continuation.ID,
		Actor:   "cfo",
		Decisions: []FinanceItemDecision{
			{OfferItemID: continuation.Items[0].ID, FinanceStatus: constants.FinanceStatusAccepted, AcceptedQuantity: 4},
			{OfferItemID: continuation.Items[1].ID, FinanceStatus: constants.FinanceStatusRejected},
		},
	})
	if err != nil {
		t.Fatalf("second finance review failed: %v", err)
	}

	second, err := splitSvc.SplitOffer(continuation.ID, "ops")
	if err != nil {
		t.Fatalf("second split failed: %v", err)
	}
	// 第一项剩 10−4=6，第二项整项 30 续转
	if len(second.NewRequest.Items) != 2 {
		t.Fatalf("expected 2 items on second-generation request, got %d", len(second.NewRequest.Items))
	}
	if second.NewRequest.Items[0].RequestedQuantity != 6 || second.NewRequest.Items[1].RequestedQuantity != 30 {
		t.Fatalf("unexpected second-generation residuals: %d, %d",
			second.NewRequest.Items[0].RequestedQuantity, second.NewRequest.Items[1].RequestedQuantity)
	}
}

func TestSplitOfferOverAllocation(t *testing.T) {
	splitSvc, offerSvc, requestSvc, db := setupSplitServiceTest(t)
	request, offer := preparePartialOffer(t, offerSvc, requestSvc)

	// 第二项需求 20、核准 10，人为把历史拆分量抬到 15，
	// 核准 + 已拆分超出需求量，拆分必须整体拒绝
	if err := db.Model(&models.RequestOrderLineItem{}).
		Where("id = ?", request.Items[1].ID).
		Update("split_allocated_qty", 15).Error; err != nil {
		t.Fatalf("seed split allocation failed: %v", err)
	}

	_, err := splitSvc.SplitOffer(offer.ID, "ops")
	if !errors.Is(err, ErrSplitQuantity) {
		t.Fatalf("expected split quantity error, got %v", err)
	}
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity kind, got %v", err)
	}

	// 拒绝的拆分不得留下任何后续报价单
	var count int64
	if err := db.Model(&models.Offer{}).Where("parent_offer_id = ?", offer.ID).Count(&count).Error; err != nil {
		t.Fatalf("count continuations failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no continuation after rejected split, got %d", count)
	}
}
