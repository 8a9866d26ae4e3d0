package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the API routes.
func NewRouter(logger *zap.Logger, config Config) *gin.Engine {
	router := gin.New()
	router.Use(Logger(logger), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.ExposeHeaders = []string{"X-Analysis-Warnings", "X-Analysis-Errors"}
	router.Use(cors.New(corsConfig))

	analyzeHandler := NewAnalyzeHandler(logger, config)

	api := router.Group("/api/v1")
	{
		api.GET("/health", analyzeHandler.HealthCheck)
		api.POST("/analyze", analyzeHandler.Analyze)
	}
	return router
}

// Logger logs one line per request.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
