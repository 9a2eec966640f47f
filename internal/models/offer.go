package models

import (
	"time"
)

// Offer 报价单表
type Offer struct {
	ID             uint      `gorm:"primarykey" json:"id"`                     // 主键
	OfferNo        string    `gorm:"uniqueIndex;not null" json:"offer_no"`     // 报价单编号
	RequestOrderID uint      `gorm:"index;not null" json:"request_order_id"`   // 需求单ID
	ParentOfferID  *uint     `gorm:"index" json:"parent_offer_id,omitempty"`   // 拆分来源报价单ID
	Status         string    `gorm:"index;not null" json:"status"`             // 报价单状态
	AttemptNumber  int       `gorm:"not null;default:1" json:"attempt_number"` // 当前尝试轮次
	TotalRetries   int       `gorm:"not null;default:0" json:"total_retries"`  // 累计重试次数
	CreatedBy      string    `gorm:"index" json:"created_by"`                  // 创建人
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                  // 创建时间
	UpdatedAt      time.Time `gorm:"index" json:"updated_at"`                  // 更新时间

	Items    []OfferLineItem      `gorm:"foreignKey:OfferID" json:"items,omitempty"`    // 报价项
	Timeline []OfferTimelineEvent `gorm:"foreignKey:OfferID" json:"timeline,omitempty"` // 时间线
}

// TableName 指定表名
func (Offer) TableName() string {
	return "offers"
}

// OfferLineItem 报价项表
type OfferLineItem struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                    // 主键
	OfferID          uint      `gorm:"index;not null" json:"offer_id"`                          // 报价单ID
	RequestItemID    uint      `gorm:"index;not null" json:"request_item_id"`                   // 需求项ID
	ItemType         string    `gorm:"not null" json:"item_type"`                               // 物品类型
	Merchant         string    `json:"merchant"`                                                // 供应商
	UnitPrice        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"` // 单价
	Quantity         int       `gorm:"not null" json:"quantity"`                                // 报价数量
	AcceptedQuantity int       `gorm:"not null;default:0" json:"accepted_quantity"`             // 财务核准数量
	FinanceStatus    string    `gorm:"index;not null" json:"finance_status"`                    // 财务审批状态
	Finalized        bool      `gorm:"not null;default:false" json:"finalized"`                 // 是否已锁定
	CreatedAt        time.Time `json:"created_at"`                                              // 创建时间
	UpdatedAt        time.Time `json:"updated_at"`                                              // 更新时间
}

// TableName 指定表名
func (OfferLineItem) TableName() string {
	return "offer_line_items"
}

// OfferTimelineEvent 报价时间线事件表（只追加，不修改不删除）
type OfferTimelineEvent struct {
	ID             uint      `gorm:"primarykey" json:"id"`                    // 主键
	OfferID        uint      `gorm:"index;not null" json:"offer_id"`          // 报价单ID
	EventType      string    `gorm:"index;not null" json:"event_type"`        // 事件类型
	AttemptNumber  int       `gorm:"not null" json:"attempt_number"`          // 事件所属轮次
	Actor          string    `json:"actor"`                                   // 操作人
	PreviousStatus string    `json:"previous_status"`                         // 变更前状态
	NewStatus      string    `json:"new_status"`                              // 变更后状态
	Notes          string    `gorm:"type:text" json:"notes,omitempty"`        // 审批意见/驳回原因
	Inherited      bool      `gorm:"not null;default:false" json:"inherited"` // 是否为拆分继承的只读副本
	EventTime      time.Time `gorm:"index;not null" json:"event_time"`        // 事件时间
	CreatedAt      time.Time `json:"created_at"`                              // 创建时间
}

// TableName 指定表名
func (OfferTimelineEvent) TableName() string {
	return "offer_timeline_events"
}
