package repository

import (
	"errors"

	"github.com/procure-next/internal/models"

	"gorm.io/gorm"
)

// OfferRepository 报价单数据访问接口
type OfferRepository interface {
	Create(offer *models.Offer, items []models.OfferLineItem) error
	GetByID(id uint) (*models.Offer, error)
	GetByOfferNo(offerNo string) (*models.Offer, error)
	GetContinuation(parentOfferID uint) (*models.Offer, error)
	List(filter OfferListFilter) ([]models.Offer, int64, error)
	Update(id uint, updates map[string]interface{}) error
	ReplaceItems(offerID uint, items []models.OfferLineItem) error
	UpdateItem(itemID uint, updates map[string]interface{}) error
	DeleteItems(offerID uint, itemIDs []uint) error
	WithTx(tx *gorm.DB) *GormOfferRepository
}

// GormOfferRepository GORM 实现
type GormOfferRepository struct {
	db *gorm.DB
}

// NewOfferRepository 创建报价单仓库
func NewOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOfferRepository) WithTx(tx *gorm.DB) *GormOfferRepository {
	if tx == nil {
		return r
	}
	return &GormOfferRepository{db: tx}
}

func (r *GormOfferRepository) withAssociations(query *gorm.DB) *gorm.DB {
	return query.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("offer_line_items.id asc")
	}).Preload("Timeline", func(db *gorm.DB) *gorm.DB {
		return db.Order("offer_timeline_events.event_time asc, offer_timeline_events.id asc")
	})
}

// Create 创建报价单与报价项
func (r *GormOfferRepository) Create(offer *models.Offer, items []models.OfferLineItem) error {
	if err := r.db.Create(offer).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OfferID = offer.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
		offer.Items = items
	}
	return nil
}

// GetByID 根据 ID 获取报价单
func (r *GormOfferRepository) GetByID(id uint) (*models.Offer, error) {
	var offer models.Offer
	if err := r.withAssociations(r.db).First(&offer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// GetByOfferNo 根据编号获取报价单
func (r *GormOfferRepository) GetByOfferNo(offerNo string) (*models.Offer, error) {
	var offer models.Offer
	if err := r.withAssociations(r.db).Where("offer_no = ?", offerNo).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// GetContinuation 获取拆分出的后续报价单（用于防止重复拆分）
func (r *GormOfferRepository) GetContinuation(parentOfferID uint) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.Where("parent_offer_id = ?", parentOfferID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// List 查询报价单列表
func (r *GormOfferRepository) List(filter OfferListFilter) ([]models.Offer, int64, error) {
	var offers []models.Offer
	query := r.db.Model(&models.Offer{})

	if filter.RequestOrderID != 0 {
		query = query.Where("request_order_id = ?", filter.RequestOrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OfferNo != "" {
		query = query.Where("offer_no = ?", filter.OfferNo)
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
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
	if err := query.Preload("Items").Order("id desc").Find(&offers).Error; err != nil {
		return nil, 0, err
	}
	return offers, total, nil
}

// Update 更新报价单字段
func (r *GormOfferRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Offer{}).Where("id = ?", id).Updates(updates).Error
}

// ReplaceItems 整体替换报价项（仅限未提交的报价单）
func (r *GormOfferRepository) ReplaceItems(offerID uint, items []models.OfferLineItem) error {
	if err := r.db.Where("offer_id = ?", offerID).Delete(&models.OfferLineItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OfferID = offerID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpdateItem 更新报价项字段
func (r *GormOfferRepository) UpdateItem(itemID uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.OfferLineItem{}).Where("id = ?", itemID).Updates(updates).Error
}

// DeleteItems 删除指定报价项（拆分后从原报价单移除剩余项）
func (r *GormOfferRepository) DeleteItems(offerID uint, itemIDs []uint) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.Where("offer_id = ? AND id IN ?", offerID, itemIDs).Delete(&models.OfferLineItem{}).Error
}
