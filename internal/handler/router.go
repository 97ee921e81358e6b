package handler

import (
	"time"

	"github.com/SergeiKhy/snaplink/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers собирает обработчики и middleware для роутера.
// Nil AuthHandler отключает POST /api/v1/auth, nil Gate оставляет API открытым.
type Handlers struct {
	Links       *LinkHandler
	Auth        *AuthHandler
	Health      *HealthHandler
	RateLimiter *middleware.RateLimiter
	Gate        gin.HandlerFunc
}

func NewRouter(h Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.Default()

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("credential", middleware.CredentialName(c)),
		)
	})

	// Rate limiting для всех запросов
	if h.RateLimiter != nil {
		router.Use(h.RateLimiter.Middleware())
	}

	router.GET("/", Index)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health.Health)

		if h.Auth != nil {
			v1.POST("/auth", h.Auth.Authenticate)
		}

		links := v1.Group("/links")
		if h.Gate != nil {
			links.Use(h.Gate)
		}
		links.POST("", h.Links.CreateLink)
		links.POST("/batch", h.Links.CreateLinks)
		links.GET("", h.Links.ListLinks)
		links.GET("/:code/stats", h.Links.GetStats)
	}

	// Редирект (корневой путь) без проверки доступа
	router.GET("/:code", h.Links.Redirect)

	return router
}
