package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/procure-next/internal/constants"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRequestOrderServiceTest(t *testing.T) (*RequestOrderService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:request_order_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.RequestOrder{}, &models.RequestOrderLineItem{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	clock := Clock(func() time.Time { return time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC) })
	return NewRequestOrderService(repository.NewRequestOrderRepository(db), clock), db
}

func TestCreateRequestOrder(t *testing.T) {
	svc, _ := setupRequestOrderServiceTest(t)

	order, err := svc.CreateRequestOrder(CreateRequestOrderInput{
		Title:     "年度笔记本换新",
		Requester: "alice",
		Items: []CreateRequestItemInput{
			{ItemType: "laptop", RequestedQuantity: 20},
			{ItemType: "docking-station", RequestedQuantity: 20, Comment: "与笔记本配套"},
		},
	})
	if err != nil {
		t.Fatalf("create request order failed: %v", err)
	}
	if order.Status != constants.RequestOrderStatusOpen {
		t.Fatalf("expected open status, got %s", order.Status)
	}
	if order.RequestNo == "" || len(order.Items) != 2 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestCreateRequestOrderValidation(t *testing.T) {
	svc, _ := setupRequestOrderServiceTest(t)

	cases := []CreateRequestOrderInput{
		{Title: "", Items: []CreateRequestItemInput{{ItemType: "laptop", RequestedQuantity: 1}}},
		{Title: "空需求"},
		{Title: "无类型", Items: []CreateRequestItemInput{{ItemType: "", RequestedQuantity: 1}}},
		{Title: "零数量", Items: []CreateRequestItemInput{{ItemType: "laptop", RequestedQuantity: 0}}},
	}
	for i, input := range cases {
		if _, err := svc.CreateRequestOrder(input); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreateRequestOrderDuplicateTitle(t *testing.T) {
	svc, _ := setupRequestOrderServiceTest(t)

	input := CreateRequestOrderInput{
		Title: "重复标题",
		Items: []CreateRequestItemInput{{ItemType: "laptop", RequestedQuantity: 1}},
	}
	if _, err := svc.CreateRequestOrder(input); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.CreateRequestOrder(input); !errors.Is(err, ErrRequestOrderTitleTaken) {
		t.Fatalf("expected duplicate title error, got %v", err)
	}
	if _, err := svc.CreateRequestOrder(input); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict kind, got %v", err)
	}
}

func TestCloseRequestOrder(t *testing.T) {
	svc, _ := setupRequestOrderServiceTest(t)

	order, err := svc.CreateRequestOrder(CreateRequestOrderInput{
		Title: "待关闭需求",
		Items: []CreateRequestItemInput{{ItemType: "laptop", RequestedQuantity: 1}},
	})
	if err != nil {
		t.Fatalf("create request order failed: %v", err)
	}
	if err := svc.CloseRequestOrder(order.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	reloaded, err := svc.GetRequestOrder(order.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != constants.RequestOrderStatusClosed {
		t.Fatalf("expected closed, got %s", reloaded.Status)
	}

	if err := svc.CloseRequestOrder(9999); !errors.Is(err, ErrRequestOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
