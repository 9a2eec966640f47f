package provider

import (
	"github.com/procure-next/internal/cache"
	"github.com/procure-next/internal/config"
	"github.com/procure-next/internal/logger"
	"github.com/procure-next/internal/models"
	"github.com/procure-next/internal/queue"
	"github.com/procure-next/internal/repository"
	"github.com/procure-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	RequestOrderRepo    repository.RequestOrderRepository
	OfferRepo           repository.OfferRepository
	TimelineRepo        repository.TimelineRepository
	PurchaseOrderRepo   repository.PurchaseOrderRepository
	DeliveryReceiptRepo repository.DeliveryReceiptRepository
	IssueRepo           repository.IssueRepository

	// Services
	NotificationService  *service.NotificationService
	RequestOrderService  *service.RequestOrderService
	OfferService         *service.OfferService
	OfferSplitService    *service.OfferSplitService
	PurchaseOrderService *service.PurchaseOrderService
	DeliveryService      *service.DeliveryService
	IssueService         *service.IssueService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.RequestOrderRepo = repository.NewRequestOrderRepository(db)
	c.OfferRepo = repository.NewOfferRepository(db)
	c.TimelineRepo = repository.NewTimelineRepository(db)
	c.PurchaseOrderRepo = repository.NewPurchaseOrderRepository(db)
	c.DeliveryReceiptRepo = repository.NewDeliveryReceiptRepository(db)
	c.IssueRepo = repository.NewIssueRepository(db)
}

func (c *Container) initServices() {
	var clock service.Clock

	c.NotificationService = service.NewNotificationService(c.QueueClient, c.Config.Notify)
	c.RequestOrderService = service.NewRequestOrderService(c.RequestOrderRepo, clock)
	c.OfferService = service.NewOfferService(
		c.OfferRepo,
		c.RequestOrderRepo,
		c.TimelineRepo,
		c.NotificationService,
		clock,
		c.Config.Offer.MaxRetries,
	)
	c.OfferSplitService = service.NewOfferSplitService(
		c.OfferRepo,
		c.RequestOrderRepo,
		c.TimelineRepo,
		c.NotificationService,
		clock,
	)
	c.PurchaseOrderService = service.NewPurchaseOrderService(
		c.PurchaseOrderRepo,
		c.OfferRepo,
		c.TimelineRepo,
		c.NotificationService,
		clock,
	)
	c.DeliveryService = service.NewDeliveryService(
		c.PurchaseOrderRepo,
		c.DeliveryReceiptRepo,
		c.IssueRepo,
		c.NotificationService,
		c.QueueClient,
		clock,
	)
	c.IssueService = service.NewIssueService(
		c.IssueRepo,
		c.DeliveryReceiptRepo,
		c.PurchaseOrderRepo,
		c.DeliveryService,
		c.NotificationService,
		clock,
	)
}
