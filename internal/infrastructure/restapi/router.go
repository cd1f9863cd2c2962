package restapi

import (
	"net/http"
	"time"

	"sift_client/docs"
	"sift_client/internal/app/port"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter builds the Gin engine with every API route plus /metrics and the Swagger UI.
func SetupRouter(h *Handler, gatherer prometheus.Gatherer, l port.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))
	router.Use(requestLogger(l))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", h.GetStatusHandler)
		v1.GET("/accounts", h.GetAccountsHandler)
		v1.GET("/accounts/:address/maximum-purchase", h.GetMaximumPurchaseHandler)
		v1.POST("/purchases", h.PurchaseHandler)
		v1.GET("/transactions", h.ListTransactionsHandler)
		v1.POST("/transactions", h.EnqueueTransactionHandler)
		v1.GET("/transactions/:hash", h.GetTransactionHandler)
		v1.DELETE("/transactions/:hash", h.DeleteTransactionHandler)
		v1.GET("/events", h.EventsHandler)
	}

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.GET(docs.SwaggerPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", docs.SwaggerYAML)
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(docs.SwaggerPath)))

	return router
}

func requestLogger(l port.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
