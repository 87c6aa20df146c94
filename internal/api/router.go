package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cvtailor/internal/api/middleware"
	"cvtailor/internal/config"
	"cvtailor/internal/metrics"
)

// NewRouter 构建 Gin 路由引擎：健康检查、指标端点与通用中间件。
func NewRouter(cfg *config.Config, logger *slog.Logger, internalSecret string) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	metricsGroup := router.Group("/metrics")
	if internalSecret != "" {
		metricsGroup.Use(middleware.InternalSecretMiddleware(internalSecret))
	}
	metricsGroup.GET("", gin.WrapH(promhttp.Handler()))

	return router
}
