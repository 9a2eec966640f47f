package repository

import (
	"errors"

	"github.com/procure-next/internal/models"

	"gorm.io/gorm"
)

// DeliveryReceiptRepository 收货记录数据访问接口（仅追加）
type DeliveryReceiptRepository interface {
	Create(receipt *models.DeliveryReceipt) error
	GetByID(id uint) (*models.DeliveryReceipt, error)
	ListByItem(itemID uint) ([]models.DeliveryReceipt, error)
	ListByBatchRef(batchRef string) ([]models.DeliveryReceipt, error)
	CountByIssue(issueID uint) (int64, error)
	WithTx(tx *gorm.DB) *GormDeliveryReceiptRepository
}

// GormDeliveryReceiptRepository GORM 实现
type GormDeliveryReceiptRepository struct {
	db *gorm.DB
}

// NewDeliveryReceiptRepository 创建收货记录仓库
func NewDeliveryReceiptRepository(db *gorm.DB) *GormDeliveryReceiptRepository {
	return &GormDeliveryReceiptRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDeliveryReceiptRepository) WithTx(tx *gorm.DB) *GormDeliveryReceiptRepository {
	if tx == nil {
		return r
	}
	return &GormDeliveryReceiptRepository{db: tx}
}

// Create 追加一条收货记录
func (r *GormDeliveryReceiptRepository) Create(receipt *models.DeliveryReceipt) error {
	return r.db.Create(receipt).Error
}

// GetByID 根据 ID 获取收货记录
func (r *GormDeliveryReceiptRepository) GetByID(id uint) (*models.DeliveryReceipt, error) {
	var receipt models.DeliveryReceipt
	if err := r.db.First(&receipt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &receipt, nil
}

// ListByItem 获取采购项全部收货记录
func (r *GormDeliveryReceiptRepository) ListByItem(itemID uint) ([]models.DeliveryReceipt, error) {
	var receipts []models.DeliveryReceipt
	if err := r.db.Where("purchase_order_item_id = ?", itemID).
		Order("id asc").
		Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

// ListByBatchRef 获取同一收货批次的全部收货记录
func (r *GormDeliveryReceiptRepository) ListByBatchRef(batchRef string) ([]models.DeliveryReceipt, error) {
	var receipts []models.DeliveryReceipt
	if err := r.db.Where("batch_ref = ?", batchRef).
		Order("id asc").
		Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

// CountByIssue 统计引用某问题单的补发收货记录数量
func (r *GormDeliveryReceiptRepository) CountByIssue(issueID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.DeliveryReceipt{}).
		Where("issue_id = ?", issueID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
