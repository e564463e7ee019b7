package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/atlas/reconciler/internal/logger"
	"github.com/stwalsh4118/atlas/reconciler/internal/metrics"
	"github.com/stwalsh4118/atlas/reconciler/internal/middleware"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

const metricsPath = "/metrics"

// RouterDeps carries everything the HTTP surface is built from.
type RouterDeps struct {
	Log            *logger.Logger
	DB             Pinger
	Runner         services.BatchRunner
	Ledger         services.BatchLedger
	Properties     services.PropertyService
	Portfolios     services.PortfolioAggregator
	Estimation     services.EstimationService
	Env            string
	CORSOrigins    []string
	MetricsEnabled bool
}

// NewRouter builds the gin engine with the standard middleware chain and
// every operator route registered.
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()

	// Middleware order: RequestID -> Logger -> Recovery -> Metrics -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(d.Log, metricsPath))
	router.Use(middleware.Recovery(d.Log))
	if d.MetricsEnabled {
		router.Use(middleware.Metrics())
		router.GET(metricsPath, gin.WrapH(metrics.Handler()))
	}
	router.Use(middleware.CORS(d.CORSOrigins))

	health := NewHealthHandler(d.DB, d.Ledger, d.Env)
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)

	batches := NewBatchHandler(d.Runner, d.Ledger, d.Properties)
	estimates := NewEstimateHandler(d.Estimation)
	properties := NewPropertyHandler(d.Properties)
	portfolios := NewPortfolioHandler(d.Portfolios)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", health.Info)

		b := v1.Group("/batches")
		{
			b.POST("", batches.Run)
			b.GET("", batches.List)
			b.GET("/:id", batches.Get)
			b.GET("/:id/changes", batches.Changes)
		}

		e := v1.Group("/estimates")
		{
			e.POST("", estimates.Estimate)
			e.POST("/batch", estimates.RunBatch)
		}

		p := v1.Group("/properties")
		{
			p.GET("/:account", properties.Get)
			p.GET("/:account/history", properties.History)
		}

		o := v1.Group("/portfolios")
		{
			o.GET("", portfolios.List)
			o.GET("/:owner", portfolios.Get)
		}
	}

	return router
}
