package admin

import (
	"strconv"
	"strings"

	"github.com/procure-next/internal/http/response"
	"github.com/procure-next/internal/repository"
	"github.com/procure-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ReportIssueRequest 上报问题请求
type ReportIssueRequest struct {
	ReceiptID        uint   `json:"receipt_id" binding:"required"`
	Type             string `json:"type" binding:"required"`
	AffectedQuantity int    `json:"affected_quantity" binding:"required"`
	Description      string `json:"description"`
	ReportedBy       string `json:"reported_by"`
}

// AdminReportIssue 针对收货记录上报问题
func (h *Handler) AdminReportIssue(c *gin.Context) {
	var req ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	issue, err := h.IssueService.ReportIssue(service.ReportIssueInput{
		ReceiptID:        req.ReceiptID,
		Type:             req.Type,
		AffectedQuantity: req.AffectedQuantity,
		Description:      req.Description,
		ReportedBy:       req.ReportedBy,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, issue)
}

// AdminGetIssue 问题单详情
func (h *Handler) AdminGetIssue(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	issue, err := h.IssueService.GetIssue(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	outstanding, err := h.IssueService.IsRedeliveryOutstanding(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"issue": issue, "redelivery_outstanding": outstanding})
}

// AdminListIssues 问题单列表
func (h *Handler) AdminListIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var itemID uint
	if raw := strings.TrimSpace(c.Query("purchase_order_item_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			itemID = uint(parsed)
		}
	}

	issues, total, err := h.IssueService.ListIssues(repository.IssueListFilter{
		Page:                page,
		PageSize:            pageSize,
		PurchaseOrderItemID: itemID,
		Status:              strings.TrimSpace(c.Query("status")),
		Type:                strings.TrimSpace(c.Query("type")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list issues", err)
		return
	}
	response.SuccessWithPage(c, issues, buildPagination(page, pageSize, total))
}

// AdminMarkIssueInProgress 问题单转入处理中
func (h *Handler) AdminMarkIssueInProgress(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	issue, err := h.IssueService.MarkInProgress(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, issue)
}

// ResolveIssueRequest 解决问题请求
type ResolveIssueRequest struct {
	ResolutionType string `json:"resolution_type" binding:"required"`
	Notes          string `json:"notes"`
	Resolver       string `json:"resolver"`
}

// AdminResolveIssue 解决问题单
func (h *Handler) AdminResolveIssue(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ResolveIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	issue, err := h.IssueService.ResolveIssue(service.ResolveIssueInput{
		IssueID:        id,
		ResolutionType: req.ResolutionType,
		Notes:          req.Notes,
		Resolver:       req.Resolver,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, issue)
}

// BulkResolveRequest 批量解决请求
type BulkResolveRequest struct {
	Items []BulkResolveItemRequest `json:"items" binding:"required"`
}

// BulkResolveItemRequest 批量解决的单项
type BulkResolveItemRequest struct {
	IssueID        uint   `json:"issue_id" binding:"required"`
	ResolutionType string `json:"resolution_type" binding:"required"`
	Notes          string `json:"notes"`
	Resolver       string `json:"resolver"`
}

// AdminBulkResolveIssues 批量解决问题单，返回部分成功报告
func (h *Handler) AdminBulkResolveIssues(c *gin.Context) {
	var req BulkResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	inputs := make([]service.ResolveIssueInput, 0, len(req.Items))
	for _, item := range req.Items {
		inputs = append(inputs, service.ResolveIssueInput{
			IssueID:        item.IssueID,
			ResolutionType: item.ResolutionType,
			Notes:          item.Notes,
			Resolver:       item.Resolver,
		})
	}
	report, err := h.IssueService.ResolveIssues(inputs)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, report)
}
