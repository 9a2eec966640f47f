package repository

import "time"

// RequestOrderListFilter 查询需求单列表的过滤条件
type RequestOrderListFilter struct {
	Page        int
	PageSize    int
	Status      string
	Requester   string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// OfferListFilter 查询报价单列表的过滤条件
type OfferListFilter struct {
	Page           int
	PageSize       int
	RequestOrderID uint
	Status         string
	OfferNo        string
	CreatedBy      string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}

// PurchaseOrderListFilter 查询采购单列表的过滤条件
type PurchaseOrderListFilter struct {
	Page        int
	PageSize    int
	OfferID     uint
	Status      string
	PONo        string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// IssueListFilter 查询收货问题列表的过滤条件
type IssueListFilter struct {
	Page                int
	PageSize            int
	PurchaseOrderItemID uint
	Status              string
	Type                string
}
