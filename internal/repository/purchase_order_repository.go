package repository

import (
	"errors"

	"github.com/procure-next/internal/models"

	"gorm.io/gorm"
)

// PurchaseOrderRepository 采购单数据访问接口
type PurchaseOrderRepository interface {
	Create(po *models.PurchaseOrder, items []models.PurchaseOrderItem) error
	GetByID(id uint) (*models.PurchaseOrder, error)
	GetByPONo(poNo string) (*models.PurchaseOrder, error)
	GetByOfferID(offerID uint) (*models.PurchaseOrder, error)
	List(filter PurchaseOrderListFilter) ([]models.PurchaseOrder, int64, error)
	UpdateStatus(id uint, status string) error
	GetItemByID(itemID uint) (*models.PurchaseOrderItem, error)
	ListItemsByPO(poID uint) ([]models.PurchaseOrderItem, error)
	UpdateItemStatus(itemID uint, status string) error
	WithTx(tx *gorm.DB) *GormPurchaseOrderRepository
}

// GormPurchaseOrderRepository GORM 实现
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewPurchaseOrderRepository 创建采购单仓库
func NewPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPurchaseOrderRepository) WithTx(tx *gorm.DB) *GormPurchaseOrderRepository {
	if tx == nil {
		return r
	}
	return &GormPurchaseOrderRepository{db: tx}
}

func (r *GormPurchaseOrderRepository) withItems(query *gorm.DB) *gorm.DB {
	return query.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("purchase_order_items.id asc")
	}).Preload("Items.Receipts", func(db *gorm.DB) *gorm.DB {
		return db.Order("delivery_receipts.id asc")
	}).Preload("Items.Issues", func(db *gorm.DB) *gorm.DB {
		return db.Order("issues.id asc")
	})
}

// Create 创建采购单与采购项
func (r *GormPurchaseOrderRepository) Create(po *models.PurchaseOrder, items []models.PurchaseOrderItem) error {
	if err := r.db.Create(po).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].PurchaseOrderID = po.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
		po.Items = items
	}
	return nil
}

// GetByID 根据 ID 获取采购单（含采购项、收货记录、问题单）
func (r *GormPurchaseOrderRepository) GetByID(id uint) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := r.withItems(r.db).First(&po, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &po, nil
}

// GetByPONo 根据编号获取采购单
func (r *GormPurchaseOrderRepository) GetByPONo(poNo string) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := r.withItems(r.db).Where("po_no = ?", poNo).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &po, nil
}

// GetByOfferID 获取报价单对应的采购单（同一报价单最多一张）
func (r *GormPurchaseOrderRepository) GetByOfferID(offerID uint) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := r.db.Where("offer_id = ?", offerID).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &po, nil
}

// List 查询采购单列表
func (r *GormPurchaseOrderRepository) List(filter PurchaseOrderListFilter) ([]models.PurchaseOrder, int64, error) {
	var orders []models.PurchaseOrder
	query := r.db.Model(&models.PurchaseOrder{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PONo != "" {
		query = query.Where("po_no = ?", filter.PONo)
	}
	if filter.OfferID != 0 {
		query = query.Where("offer_id = ?", filter.OfferID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := r.withItems(query).Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus 更新采购单状态
func (r *GormPurchaseOrderRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.PurchaseOrder{}).Where("id = ?", id).Update("status", status).Error
}

// GetItemByID 根据 ID 获取采购项（含收货记录与问题单）
func (r *GormPurchaseOrderRepository) GetItemByID(itemID uint) (*models.PurchaseOrderItem, error) {
	var item models.PurchaseOrderItem
	if err := r.db.Preload("Receipts", func(db *gorm.DB) *gorm.DB {
		return db.Order("delivery_receipts.id asc")
	}).Preload("Issues", func(db *gorm.DB) *gorm.DB {
		return db.Order("issues.id asc")
	}).First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListItemsByPO 获取采购单全部采购项（含收货记录与问题单）
func (r *GormPurchaseOrderRepository) ListItemsByPO(poID uint) ([]models.PurchaseOrderItem, error) {
	var items []models.PurchaseOrderItem
	if err := r.db.Preload("Receipts", func(db *gorm.DB) *gorm.DB {
		return db.Order("delivery_receipts.id asc")
	}).Preload("Issues", func(db *gorm.DB) *gorm.DB {
		return db.Order("issues.id asc")
	}).Where("purchase_order_id = ?", poID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItemStatus 更新采购项履约状态
func (r *GormPurchaseOrderRepository) UpdateItemStatus(itemID uint, status string) error {
	return r.db.Model(&models.PurchaseOrderItem{}).Where("id = ?", itemID).Update("status", status).Error
}
