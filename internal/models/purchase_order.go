package models

import (
	"time"
)

// PurchaseOrder 采购单表
type PurchaseOrder struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                      // 主键
	PONo        string    `gorm:"uniqueIndex;not null" json:"po_no"`                         // 采购单编号
	OfferID     uint      `gorm:"index;not null" json:"offer_id"`                            // 来源报价单ID
	Status      string    `gorm:"index;not null" json:"status"`                              // 采购单状态（由采购项推导）
	TotalAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 总金额
	CreatedBy   string    `json:"created_by"`                                                // 创建人
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                                   // 更新时间

	Items []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID" json:"items,omitempty"` // 采购项
}

// TableName 指定表名
func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// PurchaseOrderItem 采购项表
type PurchaseOrderItem struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                    // 主键
	PurchaseOrderID uint      `gorm:"index;not null" json:"purchase_order_id"`                 // 采购单ID
	OfferItemID     uint      `gorm:"index;not null" json:"offer_item_id"`                     // 来源报价项ID
	ItemType        string    `gorm:"not null" json:"item_type"`                               // 物品类型
	Merchant        string    `json:"merchant"`                                                // 供应商
	UnitPrice       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"` // 单价
	Quantity        int       `gorm:"not null" json:"quantity"`                                // 采购数量
	Status          string    `gorm:"index;not null" json:"status"`                            // 采购项状态（对账推导）
	CreatedAt       time.Time `json:"created_at"`                                              // 创建时间
	UpdatedAt       time.Time `json:"updated_at"`                                              // 更新时间

	Receipts []DeliveryReceipt `gorm:"foreignKey:PurchaseOrderItemID" json:"receipts,omitempty"` // 收货记录
	Issues   []Issue           `gorm:"foreignKey:PurchaseOrderItemID" json:"issues,omitempty"`   // 问题记录
}

// TableName 指定表名
func (PurchaseOrderItem) TableName() string {
	return "purchase_order_items"
}

// DeliveryReceipt 收货记录表
type DeliveryReceipt struct {
	ID                  uint      `gorm:"primarykey" json:"id"`                         // 主键
	ReceiptNo           string    `gorm:"uniqueIndex;not null" json:"receipt_no"`       // 收货编号
	BatchRef            string    `gorm:"index" json:"batch_ref"`                       // 所属收货批次号
	PurchaseOrderItemID uint      `gorm:"index;not null" json:"purchase_order_item_id"` // 采购项ID
	GoodQuantity        int       `gorm:"not null" json:"good_quantity"`                // 完好数量
	IsRedelivery        bool      `gorm:"not null;default:false" json:"is_redelivery"`  // 是否为补发
	IssueID             *uint     `gorm:"index" json:"issue_id,omitempty"`              // 补发对应的问题ID
	ProcessedBy         string    `json:"processed_by"`                                 // 处理人
	ReceivedAt          time.Time `gorm:"index;not null" json:"received_at"`            // 收货时间
	CreatedAt           time.Time `json:"created_at"`                                   // 创建时间
}

// TableName 指定表名
func (DeliveryReceipt) TableName() string {
	return "delivery_receipts"
}

// Issue 收货问题表
type Issue struct {
	ID                  uint       `gorm:"primarykey" json:"id"`                         // 主键
	PurchaseOrderItemID uint       `gorm:"index;not null" json:"purchase_order_item_id"` // 采购项ID
	DeliveryReceiptID   uint       `gorm:"index;not null" json:"delivery_receipt_id"`    // 上报时对应的收货记录ID
	Type                string     `gorm:"index;not null" json:"type"`                   // 问题类型
	AffectedQuantity    int        `gorm:"not null" json:"affected_quantity"`            // 受影响数量
	Status              string     `gorm:"index;not null" json:"status"`                 // 问题状态
	Description         string     `gorm:"type:text" json:"description,omitempty"`       // 问题描述
	ReportedBy          string     `json:"reported_by"`                                  // 上报人
	ResolutionType      string     `gorm:"index" json:"resolution_type,omitempty"`       // 处理方式
	ResolutionNotes     string     `gorm:"type:text" json:"resolution_notes,omitempty"`  // 处理说明
	ResolvedBy          string     `json:"resolved_by,omitempty"`                        // 处理人
	ResolvedAt          *time.Time `gorm:"index" json:"resolved_at,omitempty"`           // 处理时间
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`                      // 创建时间
	UpdatedAt           time.Time  `json:"updated_at"`                                   // 更新时间
}

// TableName 指定表名
func (Issue) TableName() string {
	return "issues"
}
