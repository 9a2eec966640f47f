package admin

import (
	"strconv"
	"strings"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/http/response"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/repository"
	"github.com/procure-next/internal/service"

	"github.com/gin-gonic/gin"
)

// OfferItemRequest 报价项请求
type OfferItemRequest struct {
	RequestItemID uint         `json:"request_item_id" binding:"required"`
	Merchant      string       `json:"merchant"`
	UnitPrice     models.Money `json:"unit_price"`
	Quantity      int          `json:"quantity" binding:"required"`
}

// CreateOfferRequest 创建报价单请求
type CreateOfferRequest struct {
	RequestOrderID uint               `json:"request_order_id" binding:"required"`
	CreatedBy      string             `json:"created_by"`
	Items          []OfferItemRequest `json:"items" binding:"required"`
}

func toOfferItemInputs(items []OfferItemRequest) []service.OfferItemInput {
	inputs := make([]service.OfferItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, service.OfferItemInput{
			RequestItemID: item.RequestItemID,
			Merchant:      item.Merchant,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
		})
	}
	return inputs
}

// AdminCreateOffer 创建报价单
func (h *Handler) AdminCreateOffer(c *gin.Context) {
	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	offer, err := h.OfferService.CreateOffer(service.CreateOfferInput{
		RequestOrderID: req.RequestOrderID,
		CreatedBy:      req.CreatedBy,
		Items:          toOfferItemInputs(req.Items),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// AdminGetOffer 报价单详情
func (h *Handler) AdminGetOffer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	offer, err := h.OfferService.GetOffer(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// AdminListOffers 报价单列表
func (h *Handler) AdminListOffers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var requestOrderID uint
	if raw := strings.TrimSpace(c.Query("request_order_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			requestOrderID = uint(parsed)
		}
	}
	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid created_from", err)
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid created_to", err)
		return
	}

	offers, total, err := h.OfferService.ListOffers(repository.OfferListFilter{
		Page:           page,
		PageSize:       pageSize,
		RequestOrderID: requestOrderID,
		Status:         strings.TrimSpace(c.Query("status")),
		OfferNo:        strings.TrimSpace(c.Query("offer_no")),
		CreatedBy:      strings.TrimSpace(c.Query("created_by")),
		CreatedFrom:    createdFrom,
		CreatedTo:      createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list offers", err)
		return
	}
	response.SuccessWithPage(c, offers, buildPagination(page, pageSize, total))
}

// AdminGetOfferTimeline 报价单时间线
func (h *Handler) AdminGetOfferTimeline(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	events, err := h.OfferService.GetTimeline(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, events)
}

// ReplaceOfferItemsRequest 编辑报价项请求
type ReplaceOfferItemsRequest struct {
	Items []OfferItemRequest `json:"items" binding:"required"`
}

// AdminReplaceOfferItems 编辑报价项
func (h *Handler) AdminReplaceOfferItems(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ReplaceOfferItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	offer, err := h.OfferService.ReplaceItems(id, toOfferItemInputs(req.Items))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// OfferActionRequest 报价单动作请求（操作人与备注）
type OfferActionRequest struct {
	Actor string `json:"actor"`
	Notes string `json:"notes"`
}

func (h *Handler) transitionOffer(c *gin.Context, target string) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req OfferActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	offer, err := h.OfferService.Transition(service.TransitionInput{
		OfferID: id,
		Target:  target,
		Actor:   req.Actor,
		Notes:   req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// AdminStartOffer 报价单开始编制
func (h *Handler) AdminStartOffer(c *gin.Context) {
	h.transitionOffer(c, constants.OfferStatusInProgress)
}

// AdminSubmitOffer 提交报价单
func (h *Handler) AdminSubmitOffer(c *gin.Context) {
	h.transitionOffer(c, constants.OfferStatusSubmitted)
}

// AdminManagerAcceptOffer 主管通过
func (h *Handler) AdminManagerAcceptOffer(c *gin.Context) {
	h.transitionOffer(c, constants.OfferStatusManagerAccepted)
}

// AdminManagerRejectOffer 主管驳回
func (h *Handler) AdminManagerRejectOffer(c *gin.Context) {
	h.transitionOffer(c, constants.OfferStatusManagerRejected)
}

// FinanceReviewRequest 财务审批请求
type FinanceReviewRequest struct {
	Actor     string                   `json:"actor"`
	Notes     string                   `json:"notes"`
	Decisions []FinanceDecisionRequest `json:"decisions" binding:"required"`
}

// FinanceDecisionRequest 单项财务决定
type FinanceDecisionRequest struct {
	OfferItemID      uint   `json:"offer_item_id" binding:"required"`
	FinanceStatus    string `json:"finance_status" binding:"required"`
	AcceptedQuantity int    `json:"accepted_quantity"`
}

// AdminFinanceReviewOffer 财务逐项审批
func (h *Handler) AdminFinanceReviewOffer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req FinanceReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	decisions := make([]service.FinanceItemDecision, 0, len(req.Decisions))
	for _, d := range req.Decisions {
		decisions = append(decisions, service.FinanceItemDecision{
			OfferItemID:      d.OfferItemID,
			FinanceStatus:    d.FinanceStatus,
			AcceptedQuantity: d.AcceptedQuantity,
		})
	}
	offer, err := h.OfferService.FinanceReview(service.FinanceReviewInput{
		OfferID:   id,
		Actor:     req.Actor,
		Notes:     req.Notes,
		Decisions: decisions,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// AdminRetryOffer 重试被驳回的报价单
func (h *Handler) AdminRetryOffer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req OfferActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	offer, err := h.OfferService.Retry(id, req.Actor, req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// AdminCancelOffer 取消报价单
func (h *Handler) AdminCancelOffer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req OfferActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	offer, err := h.OfferService.Cancel(id, req.Actor, req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// AdminSplitOffer 拆分部分核准的报价单
func (h *Handler) AdminSplitOffer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req OfferActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	result, err := h.OfferSplitService.SplitOffer(id, req.Actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}
