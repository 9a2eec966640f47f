package repository

import (
	"github.com/procure-next/internal/models"

	"gorm.io/gorm"
)

// TimelineRepository 报价单时间线数据访问接口（仅追加，不提供更新和删除）
type TimelineRepository interface {
	Create(event *models.OfferTimelineEvent) error
	CreateBatch(events []models.OfferTimelineEvent) error
	ListByOffer(offerID uint) ([]models.OfferTimelineEvent, error)
	WithTx(tx *gorm.DB) *GormTimelineRepository
}

// GormTimelineRepository GORM 实现
type GormTimelineRepository struct {
	db *gorm.DB
}

// NewTimelineRepository 创建时间线仓库
func NewTimelineRepository(db *gorm.DB) *GormTimelineRepository {
	return &GormTimelineRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTimelineRepository) WithTx(tx *gorm.DB) *GormTimelineRepository {
	if tx == nil {
		return r
	}
	return &GormTimelineRepository{db: tx}
}

// Create 追加一条时间线事件
func (r *GormTimelineRepository) Create(event *models.OfferTimelineEvent) error {
	return r.db.Create(event).Error
}

// CreateBatch 批量追加时间线事件（拆分时继承历史）
func (r *GormTimelineRepository) CreateBatch(events []models.OfferTimelineEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.Create(&events).Error
}

// ListByOffer 按事件时间与 ID 升序返回报价单全部时间线
func (r *GormTimelineRepository) ListByOffer(offerID uint) ([]models.OfferTimelineEvent, error) {
	var events []models.OfferTimelineEvent
	if err := r.db.Where("offer_id = ?", offerID).
		Order("event_time asc, id asc").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
