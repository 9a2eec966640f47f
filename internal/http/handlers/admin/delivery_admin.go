package admin

import (
	"time"

	"github.com/procure-next/internal/http/response"
	"github.com/procure-next/internal/service"

	"github.com/gin-gonic/gin"
)

// DeliveryEntryRequest 单条收货请求。完好数量允许为 0（整批全损）。
type DeliveryEntryRequest struct {
	PurchaseOrderItemID uint  `json:"purchase_order_item_id" binding:"required"`
	GoodQuantity        int   `json:"good_quantity"`
	IsRedelivery        bool  `json:"is_redelivery"`
	IssueID             *uint `json:"issue_id"`
}

// RecordDeliveryBatchRequest 收货批次请求
type RecordDeliveryBatchRequest struct {
	ProcessedBy string                 `json:"processed_by"`
	ReceivedAt  *time.Time             `json:"received_at"`
	Entries     []DeliveryEntryRequest `json:"entries" binding:"required"`
}

// AdminRecordDeliveryBatch 记录收货批次
func (h *Handler) AdminRecordDeliveryBatch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req RecordDeliveryBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	entries := make([]service.ReceiptEntry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, service.ReceiptEntry{
			PurchaseOrderItemID: entry.PurchaseOrderItemID,
			GoodQuantity:        entry.GoodQuantity,
			IsRedelivery:        entry.IsRedelivery,
			IssueID:             entry.IssueID,
		})
	}
	result, err := h.DeliveryService.RecordBatch(service.RecordBatchInput{
		PurchaseOrderID: id,
		ProcessedBy:     req.ProcessedBy,
		ReceivedAt:      req.ReceivedAt,
		Entries:         entries,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// AdminGetDeliveryBatch 按批次号查询一次收货落下的全部记录
func (h *Handler) AdminGetDeliveryBatch(c *gin.Context) {
	receipts, err := h.DeliveryService.ListBatchReceipts(c.Param("ref"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"batch_ref": c.Param("ref"), "receipts": receipts})
}

// AdminReconcilePurchaseItem 手工触发采购项对账重算
func (h *Handler) AdminReconcilePurchaseItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	status, err := h.DeliveryService.ReconcileItem(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"order_status": status})
}
