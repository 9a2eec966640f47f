package repository

import (
	"errors"

	"github.com/procure-next/internal/models"

	"gorm.io/gorm"
)

// RequestOrderRepository 需求单数据访问接口
type RequestOrderRepository interface {
	Create(order *models.RequestOrder, items []models.RequestOrderLineItem) error
	GetByID(id uint) (*models.RequestOrder, error)
	GetByTitle(title string) (*models.RequestOrder, error)
	List(filter RequestOrderListFilter) ([]models.RequestOrder, int64, error)
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	UpdateItem(itemID uint, updates map[string]interface{}) error
	GetItemByID(itemID uint) (*models.RequestOrderLineItem, error)
	ListItemsByIDs(ids []uint) ([]models.RequestOrderLineItem, error)
	WithTx(tx *gorm.DB) *GormRequestOrderRepository
}

// GormRequestOrderRepository GORM 实现
type GormRequestOrderRepository struct {
	db *gorm.DB
}

// NewRequestOrderRepository 创建需求单仓库
func NewRequestOrderRepository(db *gorm.DB) *GormRequestOrderRepository {
	return &GormRequestOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRequestOrderRepository) WithTx(tx *gorm.DB) *GormRequestOrderRepository {
	if tx == nil {
		return r
	}
	return &GormRequestOrderRepository{db: tx}
}

// Create 创建需求单与需求项
func (r *GormRequestOrderRepository) Create(order *models.RequestOrder, items []models.RequestOrderLineItem) error {
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].RequestOrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
		order.Items = items
	}
	return nil
}

// GetByID 根据 ID 获取需求单
func (r *GormRequestOrderRepository) GetByID(id uint) (*models.RequestOrder, error) {
	var order models.RequestOrder
	if err := r.db.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByTitle 根据标题获取需求单（用于重名检查）
func (r *GormRequestOrderRepository) GetByTitle(title string) (*models.RequestOrder, error) {
	var order models.RequestOrder
	if err := r.db.Where("title = ?", title).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// List 查询需求单列表
func (r *GormRequestOrderRepository) List(filter RequestOrderListFilter) ([]models.RequestOrder, int64, error) {
	var orders []models.RequestOrder
	query := r.db.Model(&models.RequestOrder{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Requester != "" {
		query = query.Where("requester = ?", filter.Requester)
	}
	if filter.Search != "" {
		query = query.Where("title LIKE ? OR request_no LIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus 更新需求单状态
func (r *GormRequestOrderRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	return r.db.Model(&models.RequestOrder{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateItem 更新需求项字段
func (r *GormRequestOrderRepository) UpdateItem(itemID uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.RequestOrderLineItem{}).Where("id = ?", itemID).Updates(updates).Error
}

// GetItemByID 根据 ID 获取需求项
func (r *GormRequestOrderRepository) GetItemByID(itemID uint) (*models.RequestOrderLineItem, error) {
	var item models.RequestOrderLineItem
	if err := r.db.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListItemsByIDs 批量获取需求项
func (r *GormRequestOrderRepository) ListItemsByIDs(ids []uint) ([]models.RequestOrderLineItem, error) {
	var items []models.RequestOrderLineItem
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
