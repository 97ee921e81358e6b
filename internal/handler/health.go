package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/SergeiKhy/snaplink/internal/repository"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	storage repository.Storage
	driver  string
}

func NewHealthHandler(storage repository.Storage, driver string) *HealthHandler {
	return &HealthHandler{storage: storage, driver: driver}
}

// Health GET /api/v1/health, проверяет доступность хранилища
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"storage": h.driver,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"storage": h.driver,
	})
}

// Index GET /, точка входа с описанием API
func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "snaplink",
		"endpoints": gin.H{
			"create":   "POST /api/v1/links",
			"batch":    "POST /api/v1/links/batch",
			"stats":    "GET /api/v1/links",
			"auth":     "POST /api/v1/auth",
			"redirect": "GET /:code",
		},
	})
}
