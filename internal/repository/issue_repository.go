package repository

import (
	"errors"

	"github.com/procure-next/internal/models"

	"gorm.io/gorm"
)

// IssueRepository 问题单数据访问接口
type IssueRepository interface {
	Create(issue *models.Issue) error
	GetByID(id uint) (*models.Issue, error)
	List(filter IssueListFilter) ([]models.Issue, int64, error)
	ListByItem(itemID uint) ([]models.Issue, error)
	Update(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormIssueRepository
}

// GormIssueRepository GORM 实现
type GormIssueRepository struct {
	db *gorm.DB
}

// NewIssueRepository 创建问题单仓库
func NewIssueRepository(db *gorm.DB) *GormIssueRepository {
	return &GormIssueRepository{db: db}
}

// WithTx 绑定事务
func (r *GormIssueRepository) WithTx(tx *gorm.DB) *GormIssueRepository {
	if tx == nil {
		return r
	}
	return &GormIssueRepository{db: tx}
}

// Create 创建问题单
func (r *GormIssueRepository) Create(issue *models.Issue) error {
	return r.db.Create(issue).Error
}

// GetByID 根据 ID 获取问题单
func (r *GormIssueRepository) GetByID(id uint) (*models.Issue, error) {
	var issue models.Issue
	if err := r.db.First(&issue, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &issue, nil
}

// List 查询问题单列表
func (r *GormIssueRepository) List(filter IssueListFilter) ([]models.Issue, int64, error) {
	var issues []models.Issue
	query := r.db.Model(&models.Issue{})

	if filter.PurchaseOrderItemID != 0 {
		query = query.Where("purchase_order_item_id = ?", filter.PurchaseOrderItemID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id desc").Find(&issues).Error; err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

// ListByItem 获取采购项全部问题单
func (r *GormIssueRepository) ListByItem(itemID uint) ([]models.Issue, error) {
	var issues []models.Issue
	if err := r.db.Where("purchase_order_item_id = ?", itemID).
		Order("id asc").
		Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

// Update 更新问题单字段
func (r *GormIssueRepository) Update(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Issue{}).Where("id = ?", id).Updates(updates).Error
}
