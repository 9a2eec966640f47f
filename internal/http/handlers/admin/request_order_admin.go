package admin

import (
	"strconv"
	"strings"

	"github.com/procure-next/internal/http/response"
	"github.com/procure-next/internal/repository"
	"github.com/procure-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateRequestOrderRequest 创建需求单请求
type CreateRequestOrderRequest struct {
	Title     string                          `json:"title" binding:"required"`
	Requester string                          `json:"requester"`
	Items     []CreateRequestOrderItemRequest `json:"items" binding:"required"`
}

// CreateRequestOrderItemRequest 需求项请求
type CreateRequestOrderItemRequest struct {
	ItemType          string `json:"item_type" binding:"required"`
	RequestedQuantity int    `json:"requested_quantity" binding:"required"`
	Comment           string `json:"comment"`
}

// AdminCreateRequestOrder 创建需求单
func (h *Handler) AdminCreateRequestOrder(c *gin.Context) {
	var req CreateRequestOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	items := make([]service.CreateRequestItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CreateRequestItemInput{
			ItemType:          item.ItemType,
			RequestedQuantity: item.RequestedQuantity,
			Comment:           item.Comment,
		})
	}
	order, err := h.RequestOrderService.CreateRequestOrder(service.CreateRequestOrderInput{
		Title:     req.Title,
		Requester: req.Requester,
		Items:     items,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminGetRequestOrder 需求单详情
func (h *Handler) AdminGetRequestOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.RequestOrderService.GetRequestOrder(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminListRequestOrders 需求单列表
func (h *Handler) AdminListRequestOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	orders, total, err := h.RequestOrderService.ListRequestOrders(repository.RequestOrderListFilter{
		Page:      page,
		PageSize:  pageSize,
		Status:    strings.TrimSpace(c.Query("status")),
		Requester: strings.TrimSpace(c.Query("requester")),
		Search:    strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list request orders", err)
		return
	}
	response.SuccessWithPage(c, orders, buildPagination(page, pageSize, total))
}

// AdminCloseRequestOrder 关闭需求单
func (h *Handler) AdminCloseRequestOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.RequestOrderService.CloseRequestOrder(id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithMsg(c, "request order closed", nil)
}
