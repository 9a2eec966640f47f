package admin

import (
	"strconv"
	"strings"

	"github.com/procure-next/internal/http/response"
	"github.com/procure-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// FinalizeItemsRequest 锁定报价项请求
type FinalizeItemsRequest struct {
	ItemIDs []uint `json:"item_ids" binding:"required"`
	Actor   string `json:"actor"`
}

// AdminFinalizeOfferItems 锁定报价项
func (h *Handler) AdminFinalizeOfferItems(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req FinalizeItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	offer, err := h.PurchaseOrderService.FinalizeItems(id, req.ItemIDs, req.Actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, offer)
}

// GeneratePORequest 生成采购单请求
type GeneratePORequest struct {
	Actor string `json:"actor"`
}

// AdminGeneratePurchaseOrder 由报价单生成采购单
func (h *Handler) AdminGeneratePurchaseOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req GeneratePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	po, err := h.PurchaseOrderService.GeneratePurchaseOrder(id, req.Actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, po)
}

// AdminGetPurchaseOrder 采购单详情（含对账摘要）
func (h *Handler) AdminGetPurchaseOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	po, err := h.PurchaseOrderService.GetPurchaseOrder(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, po)
}

// AdminListPurchaseOrders 采购单列表
func (h *Handler) AdminListPurchaseOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	var offerID uint
	if raw := strings.TrimSpace(c.Query("offer_id")); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			offerID = uint(parsed)
		}
	}

	orders, total, err := h.PurchaseOrderService.ListPurchaseOrders(repository.PurchaseOrderListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		PONo:     strings.TrimSpace(c.Query("po_no")),
		OfferID:  offerID,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list purchase orders", err)
		return
	}
	response.SuccessWithPage(c, orders, buildPagination(page, pageSize, total))
}
