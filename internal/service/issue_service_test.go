package service

import (
	"errors"
	"testing"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
)

func TestReportIssueQuantityCap(t *testing.T) {
	deliverySvc, issueSvc, db := setupDeliveryServiceTest(t)
	po := createTestPurchaseOrder(t, db, 10)

	batch, err := deliverySvc.RecordBatch(RecordBatchInput{
		PurchaseOrderID: po.ID,
		ProcessedBy:     "warehouse",
		Entries:         []ReceiptEntry{{PurchaseOrderItemID: po.Items[0].ID, GoodQuantity: 6}},
	})
	if err != nil {
		t.Fatalf("record batch failed: %v", err)
	}
	receiptID := batch.Receipts[0].ID

	// 未入账余量只剩 4，申报 5 超限
	_, err = issueSvc.ReportIssue(ReportIssueInput{
		ReceiptID:        receiptID,
		Type:             constants.IssueTypeDamaged,
		AffectedQuantity: 5,
		ReportedBy:       "warehouse",
	})
	if !errors.Is(err, ErrIssueQuantity) {
		t.Fatalf("expected quantity cap error, got %v", err)
	}

	issue, err := issueSvc.ReportIssue(ReportIssueInput{
		ReceiptID:        receiptID,
		Type:             constants.IssueTypeDamaged,
		AffectedQuantity: 4,
		Description:      "外箱破损",
		ReportedBy:       "warehouse",
	})
	if err != nil {
		t.Fatalf("report issue failed: %v", err)
	}
	if issue.Status != constants.IssueStatusReported {
		t.Fatalf("expected reported status, got %s", issue.Status)
	}

	// 上报后整单进入争议态
	var reloaded models.PurchaseOrder
	if err := db.First(&reloaded, po.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.Status != constants.PurchaseStatusDisputed {
		t.Fatalf("expected disputed order, got %s", reloaded.Status)
	}

	// 余量已占满，不能再报
	_, err = issueSvc.ReportIssue(ReportIssueInput{
		ReceiptID:        receiptID,
		Type:             constants.IssueTypeMissing,
		AffectedQuantity: 1,
		ReportedBy:       "warehouse",
	})
	if !errors.Is(err, ErrIssueQuantity) {
		t.Fatalf("expected quantity cap error for second issue, got %v", err)
	}
}

func TestReportIssueValidation(t *testing.T) {
	deliverySvc, issueSvc, db := setupDeliveryServiceTest(t)
	po := createTestPurchaseOrder(t, db, 10)

	batch, err := deliverySvc.RecordBatch(RecordBatchInput{
		PurchaseOrderID: po.ID,
		Entries:         []ReceiptEntry{{PurchaseOrderItemID: po.Items[0].ID, GoodQuantity: 3}},
	})
	if err != nil {
		t.Fatalf("record batch failed: %v", err)
	}

	if _, err := issueSvc.ReportIssue(ReportIssueInput{ReceiptID: 9999, Type: constants.IssueTypeOther, AffectedQuantity: 1}); !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("expected receipt not found, got %v", err)
	}
	if _, err := issueSvc.ReportIssue(ReportIssueInput{ReceiptID: batch.Receipts[0].ID, Type: "exploded", AffectedQuantity: 1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected invalid type error, got %v", err)
	}
	if _, err := issueSvc.ReportIssue(ReportIssueInput{ReceiptID: batch.Receipts[0].ID, Type: constants.IssueTypeOther, AffectedQuantity: 0}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected non-positive quantity error, got %v", err)
	}
}

func TestResolveIssueLifecycle(t *testing.T) {
	deliverySvc, issueSvc, db := setupDeliveryServiceTest(t)
	po := createTestPurchaseOrder(t, db, 10)

	batch, err := deliverySvc.RecordBatch(RecordBatchInput{
		PurchaseOrderID: po.ID,
		Entries:         []ReceiptEntry{{PurchaseOrderItemID: po.Items[0].ID, GoodQuantity: 8}},
	})
	if err != nil {
		t.Fatalf("record batch failed: %v", err)
	}
	issue, err := issueSvc.ReportIssue(ReportIssueInput{
		ReceiptID:        batch.Receipts[0].ID,
		Type:             constants.IssueTypeDamaged,
		AffectedQuantity: 2,
		ReportedBy:       "warehouse",
	})
	if err != nil {
		t.Fatalf("report issue failed: %v", err)
	}

	issue, err = issueSvc.MarkInProgress(issue.ID)
	if err != nil {
		t.Fatalf("mark in progress failed: %v", err)
	}
	if issue.Status != constants.IssueStatusInProgress {
		t.Fatalf("expected in_progress, got %s", issue.Status)
	}
	// reported 之外的状态不能再转处理中
	if _, err := issueSvc.MarkInProgress(issue.ID); !errors.Is(err, ErrIssueNotResolvable) {
		t.Fatalf("expected state error, got %v", err)
	}

	resolved, err := issueSvc.ResolveIssue(ResolveIssueInput{
		IssueID:        issue.ID,
		ResolutionType: constants.ResolutionTypeRefund,
		Notes:          "按比例退款",
		Resolver:       "ops",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != constants.IssueStatusResolved || resolved.ResolvedAt == nil || resolved.ResolvedBy != "ops" {
		t.Fatalf("unexpected resolved issue: %+v", resolved)
	}

	// 退款关闭后 8 完好 + 2 关闭 = 10，整单完成
	var reloaded models.PurchaseOrder
	if err := db.First(&reloaded, po.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.Status != constants.PurchaseStatusCompleted {
		t.Fatalf("expected completed order after refund, got %s", reloaded.Status)
	}

	// 已解决问题不可重复解决
	if _, err := issueSvc.ResolveIssue(ResolveIssueInput{IssueID: issue.ID, ResolutionType: constants.ResolutionTypeRefund}); !errors.Is(err, ErrIssueNotResolvable) {
		t.Fatalf("expected already-resolved error, got %v", err)
	}
}

func TestResolveIssuesPartialSuccess(t *testing.T) {
	deliverySvc, issueSvc, db := setupDeliveryServiceTest(t)
	po := createTestPurchaseOrder(t, db, 10)

	batch, err := deliverySvc.RecordBatch(RecordBatchInput{
		PurchaseOrderID: po.ID,
		Entries:         []ReceiptEntry{{PurchaseOrderItemID: po.Items[0].ID, GoodQuantity: 4}},
	})
	if err != nil {
		t.Fatalf("record batch failed: %v", err)
	}
	first, err := issueSvc.ReportIssue(ReportIssueInput{
		ReceiptID:        batch.Receipts[0].ID,
		Type:             constants.IssueTypeDamaged,
		AffectedQuantity: 2,
	})
	if err != nil {
		t.Fatalf("report first issue failed: %v", err)
	}
	second, err := issueSvc.ReportIssue(ReportIssueInput{
		ReceiptID:        batch.Receipts[0].ID,
		Type:             constants.IssueTypeMissing,
		AffectedQuantity: 3,
	})
	if err != nil {
		t.Fatalf("report second issue failed: %v", err)
	}

	report, err := issueSvc.ResolveIssues([]ResolveIssueInput{
		{IssueID: first.ID, ResolutionType: constants.ResolutionTypeRefund, Resolver: "ops"},
		{IssueID: second.ID, ResolutionType: "teleport", Resolver: "ops"},
		{IssueID: 9999, ResolutionType: constants.ResolutionTypeRefund, Resolver: "ops"},
	})
	if err != nil {
		t.Fatalf("bulk resolve failed: %v", err)
	}
	if len(report.Resolved) != 1 || report.Resolved[0] != first.ID {
		t.Fatalf("unexpected resolved list: %+v", report.Resolved)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("expected 2 failed entries, got %+v", report.Failed)
	}
	if _, ok := report.Failed[second.ID]; !ok {
		t.Fatalf("invalid resolution type not reported: %+v", report.Failed)
	}
	if _, ok := report.Failed[9999]; !ok {
		t.Fatalf("missing issue not reported: %+v", report.Failed)
	}
}

func TestIsRedeliveryOutstanding(t *testing.T) {
	deliverySvc, issueSvc, db := setupDeliveryServiceTest(t)
	po := createTestPurchaseOrder(t, db, 10)

	batch, err := deliverySvc.RecordBatch(RecordBatchInput{
		PurchaseOrderID: po.ID,
		Entries:         []ReceiptEntry{{PurchaseOrderItemID: po.Items[0].ID, GoodQuantity: 7}},
	})
	if err != nil {
		t.Fatalf("record batch failed: %v", err)
	}
	issue, err := issueSvc.ReportIssue(ReportIssueInput{
		ReceiptID:        batch.Receipts[0].ID,
		Type:             constants.IssueTypeMissing,
		AffectedQuantity: 3,
	})
	if err != nil {
		t.Fatalf("report issue failed: %v", err)
	}

	// 未解决的问题谈不上补发
	outstanding, err := issueSvc.IsRedeliveryOutstanding(issue.ID)
	if err != nil || outstanding {
		t.Fatalf("expected not outstanding before resolution, got %v / %v", outstanding, err)
	}

	if _, err := issueSvc.ResolveIssue(ResolveIssueInput{
		IssueID:        issue.ID,
		ResolutionType: constants.ResolutionTypeRedelivery,
		Resolver:       "ops",
	}); err != nil {
		t.Fatalf("resolve issue failed: %v", err)
	}
	outstanding, err = issueSvc.IsRedeliveryOutstanding(issue.ID)
	if err != nil || !outstanding {
		t.Fatalf("expected outstanding redelivery, got %v / %v", outstanding, err)
	}

	if _, err := deliverySvc.RecordBatch(RecordBatchInput{
		PurchaseOrderID: po.ID,
		Entries:         []ReceiptEntry{{PurchaseOrderItemID: po.Items[0].ID, GoodQuantity: 3, IsRedelivery: true, IssueID: &issue.ID}},
	}); err != nil {
		t.Fatalf("redelivery batch failed: %v", err)
	}
	outstanding, err = issueSvc.IsRedeliveryOutstanding(issue.ID)
	if err != nil || outstanding {
		t.Fatalf("expected fulfilled redelivery, got %v / %v", outstanding, err)
	}
}
