package router

import (
	"github.com/procure-next/internal/config"
	adminhandlers "github.com/procure-next/internal/http/handlers/admin"
	"github.com/procure-next/internal/logger"
	"github.com/procure-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		admin := apiV1.Group("/admin")
		{
			// 采购需求单
			admin.POST("/request-orders", adminHandler.AdminCreateRequestOrder)
			admin.GET("/request-orders", adminHandler.AdminListRequestOrders)
			admin.GET("/request-orders/:id", adminHandler.AdminGetRequestOrder)
			admin.POST("/request-orders/:id/close", adminHandler.AdminCloseRequestOrder)

			// 报价单
			admin.POST("/offers", adminHandler.AdminCreateOffer)
			admin.GET("/offers", adminHandler.AdminListOffers)
			admin.GET("/offers/:id", adminHandler.AdminGetOffer)
			admin.GET("/offers/:id/timeline", adminHandler.AdminGetOfferTimeline)
			admin.PUT("/offers/:id/items", adminHandler.AdminReplaceOfferItems)
			admin.POST("/offers/:id/start", adminHandler.AdminStartOffer)
			admin.POST("/offers/:id/submit", adminHandler.AdminSubmitOffer)
			admin.POST("/offers/:id/manager-accept", adminHandler.AdminManagerAcceptOffer)
			admin.POST("/offers/:id/manager-reject", adminHandler.AdminManagerRejectOffer)
			admin.POST("/offers/:id/finance-review", adminHandler.AdminFinanceReviewOffer)
			admin.POST("/offers/:id/retry", adminHandler.AdminRetryOffer)
			admin.POST("/offers/:id/cancel", adminHandler.AdminCancelOffer)
			admin.POST("/offers/:id/split", adminHandler.AdminSplitOffer)
			admin.POST("/offers/:id/finalize-items", adminHandler.AdminFinalizeOfferItems)
			admin.POST("/offers/:id/purchase-order", adminHandler.AdminGeneratePurchaseOrder)

			// 采购订单与收货
			admin.GET("/purchase-orders", adminHandler.AdminListPurchaseOrders)
			admin.GET("/purchase-orders/:id", adminHandler.AdminGetPurchaseOrder)
			admin.POST("/purchase-orders/:id/delivery-batches", adminHandler.AdminRecordDeliveryBatch)
			admin.GET("/delivery-batches/:ref", adminHandler.AdminGetDeliveryBatch)
			admin.POST("/purchase-items/:id/reconcile", adminHandler.AdminReconcilePurchaseItem)

			// 问题单
			admin.POST("/issues", adminHandler.AdminReportIssue)
			admin.GET("/issues", adminHandler.AdminListIssues)
			admin.GET("/issues/:id", adminHandler.AdminGetIssue)
			admin.POST("/issues/:id/in-progress", adminHandler.AdminMarkIssueInProgress)
			admin.POST("/issues/:id/resolve", adminHandler.AdminResolveIssue)
			admin.POST("/issues/bulk-resolve", adminHandler.AdminBulkResolveIssues)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
