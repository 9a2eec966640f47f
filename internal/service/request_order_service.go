package service

import (
	"fmt"
	"strings"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/repository"
)

// RequestOrderService 请求单服务
type RequestOrderService struct {
	requestRepo repository.RequestOrderRepository
	clock       Clock
}

// NewRequestOrderService 创建请求单服务
func NewRequestOrderService(requestRepo repository.RequestOrderRepository, clock Clock) *RequestOrderService {
	return &RequestOrderService{
		requestRepo: requestRepo,
		clock:       clock,
	}
}

// CreateRequestOrderInput 创建请求单输入
type CreateRequestOrderInput struct {
	Title     string
	Requester string
	Items     []CreateRequestItemInput
}

// CreateRequestItemInput 创建请求项输入
type CreateRequestItemInput struct {
	ItemType          string
	RequestedQuantity int
	Comment           string
}

// CreateRequestOrder 创建请求单及其请求项
func (s *RequestOrderService) CreateRequestOrder(input CreateRequestOrderInput) (*models.RequestOrder, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: request order title is required", ErrValidation)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: request order must contain at least one line item", ErrValidation)
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.ItemType) == "" {
			return nil, fmt.Errorf("%w: line item %d is missing item_type", ErrValidation, i+1)
		}
		if item.RequestedQuantity <= 0 {
			return nil, fmt.Errorf("%w: line item %d requested_quantity must be positive, got %d", ErrValidation, i+1, item.RequestedQuantity)
		}
	}

	existing, err := s.requestRepo.GetByTitle(title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrRequestOrderTitleTaken
	}

	order := &models.RequestOrder{
		RequestNo: generateRequestNo(),
		Title:     title,
		Requester: strings.TrimSpace(input.Requester),
		Status:    constants.RequestOrderStatusOpen,
	}
	items := make([]models.RequestOrderLineItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, models.RequestOrderLineItem{
			ItemType:          strings.TrimSpace(item.ItemType),
			RequestedQuantity: item.RequestedQuantity,
			Comment:           strings.TrimSpace(item.Comment),
		})
	}
	if err := s.requestRepo.Create(order, items); err != nil {
		return nil, err
	}
	return order, nil
}

// GetRequestOrder 获取请求单详情
func (s *RequestOrderService) GetRequestOrder(id uint) (*models.RequestOrder, error) {
	if id == 0 {
		return nil, ErrRequestOrderNotFound
	}
	order, err := s.requestRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrRequestOrderNotFound
	}
	return order, nil
}

// ListRequestOrders 分页查询请求单
func (s *RequestOrderService) ListRequestOrders(filter repository.RequestOrderListFilter) ([]models.RequestOrder, int64, error) {
	return s.requestRepo.List(filter)
}

// CloseRequestOrder 关闭请求单（不再接受新报价）
func (s *RequestOrderService) CloseRequestOrder(id uint) error {
	order, err := s.GetRequestOrder(id)
	if err != nil {
		return err
	}
	if order.Status == constants.RequestOrderStatusClosed {
		return nil
	}
	return s.requestRepo.UpdateStatus(order.ID, constants.RequestOrderStatusClosed, nil)
}
