package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSON 类型定义，用于存储扩展数据
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// RequestOrder 采购需求单表
type RequestOrder struct {
	ID        uint      `gorm:"primarykey" json:"id"`                   // 主键
	RequestNo string    `gorm:"uniqueIndex;not null" json:"request_no"` // 需求单编号
	Title     string    `gorm:"index;not null" json:"title"`            // 需求标题
	Requester string    `gorm:"index" json:"requester"`                 // 提出人
	Status    string    `gorm:"index;not null" json:"status"`           // 需求单状态
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`       // 拆分来源需求单ID
	CreatedAt time.Time `gorm:"index" json:"created_at"`                // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                // 更新时间

	Items []RequestOrderLineItem `gorm:"foreignKey:RequestOrderID" json:"items,omitempty"` // 需求项
}

// TableName 指定表名
func (RequestOrder) TableName() string {
	return "request_orders"
}

// RequestOrderLineItem 需求项表
type RequestOrderLineItem struct {
	ID                uint      `gorm:"primarykey" json:"id"`                          // 主键
	RequestOrderID    uint      `gorm:"index;not null" json:"request_order_id"`        // 需求单ID
	ItemType          string    `gorm:"not null" json:"item_type"`                     // 物品类型
	RequestedQuantity int       `gorm:"not null" json:"requested_quantity"`            // 需求数量
	SplitAllocatedQty int       `gorm:"not null;default:0" json:"split_allocated_qty"` // 已拆分出去的累计数量
	Comment           string    `gorm:"type:text" json:"comment,omitempty"`            // 备注
	CreatedAt         time.Time `json:"created_at"`                                    // 创建时间
	UpdatedAt         time.Time `json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (RequestOrderLineItem) TableName() string {
	return "request_order_line_items"
}
