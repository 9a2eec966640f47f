package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/repository"

	"gorm.io/gorm"
)

// IssueService 收货问题服务：上报、处理与批量解决
type IssueService struct {
	issueRepo    repository.IssueRepository
	receiptRepo  repository.DeliveryReceiptRepository
	purchaseRepo repository.PurchaseOrderRepository
	deliverySvc  *DeliveryService
	notifier     *NotificationService
	clock        Clock
}

// NewIssueService 创建收货问题服务
func NewIssueService(issueRepo repository.IssueRepository, receiptRepo repository.DeliveryReceiptRepository, purchaseRepo repository.PurchaseOrderRepository, deliverySvc *DeliveryService, notifier *NotificationService, clock Clock) *IssueService {
	return &IssueService{
		issueRepo:    issueRepo,
		receiptRepo:  receiptRepo,
		purchaseRepo: purchaseRepo,
		deliverySvc:  deliverySvc,
		notifier:     notifier,
		clock:        clock,
	}
}

func isValidIssueType(issueType string) bool {
	switch issueType {
	case constants.IssueTypeDamaged, constants.IssueTypeMissing, constants.IssueTypeWrongItem,
		constants.IssueTypeLate, constants.IssueTypeOther:
		return true
	}
	return false
}

func isValidResolutionType(resolution string) bool {
	switch resolution {
	case constants.ResolutionTypeRedelivery, constants.ResolutionTypeRefund,
		constants.ResolutionTypeAcceptShortage, constants.ResolutionTypeReplacement:
		return true
	}
	return false
}

// ReportIssueInput 上报问题输入
type ReportIssueInput struct {
	ReceiptID        uint
	Type             string
	AffectedQuantity int
	Description      string
	ReportedBy       string
}

// ReportIssue 针对一条收货记录上报问题，数量不得超过该采购项尚未入账的余量
func (s *IssueService) ReportIssue(input ReportIssueInput) (*models.Issue, error) {
	receipt, err := s.receiptRepo.GetByID(input.ReceiptID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("%w: receipt %d", ErrReceiptNotFound, input.ReceiptID)
	}
	if !isValidIssueType(input.Type) {
		return nil, fmt.Errorf("%w: unknown issue type %q", ErrValidation, input.Type)
	}
	if input.AffectedQuantity <= 0 {
		return nil, fmt.Errorf("%w: affected quantity must be positive, got %d", ErrValidation, input.AffectedQuantity)
	}

	item, err := s.purchaseRepo.GetItemByID(receipt.PurchaseOrderItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %d", ErrPurchaseItemNotFound, receipt.PurchaseOrderItemID)
	}
	remaining := unaccountedQty(item.Quantity, item.Receipts, item.Issues)
	if input.AffectedQuantity > remaining {
		return nil, fmt.Errorf("%w: item %d affected quantity %d exceeds unaccounted balance %d",
			ErrIssueQuantity, item.ID, input.AffectedQuantity, remaining)
	}

	issue := &models.Issue{
		PurchaseOrderItemID: item.ID,
		DeliveryReceiptID:   receipt.ID,
		Type:                input.Type,
		AffectedQuantity:    input.AffectedQuantity,
		Status:              constants.IssueStatusReported,
		Description:         strings.TrimSpace(input.Description),
		ReportedBy:          strings.TrimSpace(input.ReportedBy),
	}
	var disputed bool
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.issueRepo.WithTx(tx).Create(issue); err != nil {
			return err
		}
		_, hasDispute, err := s.deliverySvc.reconcileOrderTx(tx, item.PurchaseOrderID)
		disputed = hasDispute
		return err
	})
	if err != nil {
		return nil, err
	}
	s.deliverySvc.afterReconcile(item.PurchaseOrderID, disputed)
	return issue, nil
}

// GetIssue 获取问题单
func (s *IssueService) GetIssue(id uint) (*models.Issue, error) {
	if id == 0 {
		return nil, ErrIssueNotFound
	}
	issue, err := s.issueRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, fmt.Errorf("%w: issue %d", ErrIssueNotFound, id)
	}
	return issue, nil
}

// ListIssues 分页查询问题单
func (s *IssueService) ListIssues(filter repository.IssueListFilter) ([]models.Issue, int64, error) {
	return s.issueRepo.List(filter)
}

// MarkInProgress 问题单转入处理中
func (s *IssueService) MarkInProgress(id uint) (*models.Issue, error) {
	issue, err := s.GetIssue(id)
	if err != nil {
		return nil, err
	}
	if issue.Status != constants.IssueStatusReported {
		return nil, fmt.Errorf("%w: issue %d has status %s", ErrIssueNotResolvable, issue.ID, issue.Status)
	}
	if err := s.issueRepo.Update(issue.ID, map[string]interface{}{"status": constants.IssueStatusInProgress}); err != nil {
		return nil, err
	}
	return s.GetIssue(issue.ID)
}

// ResolveIssueInput 解决问题输入
type ResolveIssueInput struct {
	IssueID        uint
	ResolutionType string
	Notes          string
	Resolver       string
}

// ResolveIssue 解决问题并在同一事务内重算所属采购单状态
func (s *IssueService) ResolveIssue(input ResolveIssueInput) (*models.Issue, error) {
	issue, err := s.GetIssue(input.IssueID)
	if err != nil {
		return nil, err
	}
	if issue.Status == constants.IssueStatusResolved {
		return nil, fmt.Errorf("%w: issue %d", ErrIssueNotResolvable, issue.ID)
	}
	if !isValidResolutionType(input.ResolutionType) {
		return nil, fmt.Errorf("%w: unknown resolution type %q", ErrValidation, input.ResolutionType)
	}

	now := s.clock.now()
	var poID uint
	var disputed bool
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.issueRepo.WithTx(tx).Update(issue.ID, map[string]interface{}{
			"status":           constants.IssueStatusResolved,
			"resolution_type":  input.ResolutionType,
			"resolution_notes": strings.TrimSpace(input.Notes),
			"resolved_by":      strings.TrimSpace(input.Resolver),
			"resolved_at":      now,
		}); err != nil {
			return err
		}
		item, err := s.purchaseRepo.WithTx(tx).GetItemByID(issue.PurchaseOrderItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: item %d", ErrPurchaseItemNotFound, issue.PurchaseOrderItemID)
		}
		poID = item.PurchaseOrderID
		_, hasDispute, err := s.deliverySvc.reconcileOrderTx(tx, item.PurchaseOrderID)
		disputed = hasDispute
		return err
	})
	if err != nil {
		return nil, err
	}
	s.deliverySvc.afterReconcile(poID, disputed)

	if s.notifier != nil {
		s.notifier.Notify(NotificationInput{
			Event:     constants.NotificationEventIssueResolved,
			Title:     "收货问题已解决",
			Message:   fmt.Sprintf("问题单 %d 以 %s 方式解决", issue.ID, input.ResolutionType),
			Severity:  constants.NotifySeverityInfo,
			Link:      fmt.Sprintf("/admin/issues/%d", issue.ID),
			DedupeKey: fmt.Sprintf("issue:%d:resolved", issue.ID),
		})
	}
	return s.GetIssue(issue.ID)
}

// BulkResolveReport 批量解决的部分成功报告
type BulkResolveReport struct {
	Resolved []uint          `json:"resolved"`
	Failed   map[uint]string `json:"failed,omitempty"`
}

// ResolveIssues 批量解决问题。每个问题独立处理，校验和状态错误只记入
// 报告；一旦出现一致性错误整批终止并返回错误。
func (s *IssueService) ResolveIssues(inputs []ResolveIssueInput) (*BulkResolveReport, error) {
	report := &BulkResolveReport{Failed: make(map[uint]string)}
	for _, input := range inputs {
		_, err := s.ResolveIssue(input)
		if err == nil {
			report.Resolved = append(report.Resolved, input.IssueID)
			continue
		}
		if errors.Is(err, ErrIntegrity) {
			return nil, err
		}
		report.Failed[input.IssueID] = err.Error()
	}
	return report, nil
}

// IsRedeliveryOutstanding 判断补发承诺是否尚未兑现
func (s *IssueService) IsRedeliveryOutstanding(issueID uint) (bool, error) {
	issue, err := s.GetIssue(issueID)
	if err != nil {
		return false, err
	}
	if issue.Status != constants.IssueStatusResolved || issue.ResolutionType != constants.ResolutionTypeRedelivery {
		return false, nil
	}
	count, err := s.receiptRepo.CountByIssue(issue.ID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
