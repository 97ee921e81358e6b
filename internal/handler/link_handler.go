package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/SergeiKhy/snaplink/internal/models"
	"github.com/SergeiKhy/snaplink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Через сколько секунд страница ошибки возвращает на точку входа
const homeRefresh = "3; url=/"

// locationHeader страна клиента, если перед сервисом стоит CDN, который её проставляет
const locationHeader = "CF-IPCountry"

type LinkHandler struct {
	service  service.LinkService
	resolver service.Resolver
	baseURL  string
	logger   *zap.Logger
}

func NewLinkHandler(linkService service.LinkService, resolver service.Resolver, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service:  linkService,
		resolver: resolver,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

type BatchCreateRequest struct {
	Links []models.CreateLinkInput `json:"links" binding:"required,dive"`
}

type CreateLinkResponse struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"shortcode"`
	ShortURL    string    `json:"short_url"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiryDate  time.Time `json:"expiry_date"`
}

type BatchCreateResponse struct {
	Links []CreateLinkResponse `json:"links"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink POST /api/v1/links
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req models.CreateLinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	link, err := h.service.CreateLink(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(link))
}

// CreateLinks POST /api/v1/links/batch, все ссылки сохраняются либо ни одной
func (h *LinkHandler) CreateLinks(c *gin.Context) {
	var req BatchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid batch request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	links, err := h.service.CreateLinks(c.Request.Context(), req.Links)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := BatchCreateResponse{Links: make([]CreateLinkResponse, 0, len(links))}
	for i := range links {
		resp.Links = append(resp.Links, h.toResponse(&links[i]))
	}

	c.JSON(http.StatusCreated, resp)
}

// ListLinks GET /api/v1/links, статистика по всем ссылкам
func (h *LinkHandler) ListLinks(c *gin.Context) {
	stats, err := h.service.ListStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"links": stats,
		"total": len(stats),
	})
}

// GetStats GET /api/v1/links/:code/stats
func (h *LinkHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Redirect GET /:code
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	record, err := h.resolver.Resolve(c.Request.Context(), code, models.ClickMeta{
		Referrer: c.Request.Referer(),
		Location: c.GetHeader(locationHeader),
	})
	if err != nil {
		if errors.Is(err, service.ErrLookup) {
			c.Header("Refresh", homeRefresh)
		}
		h.writeError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, record.OriginalURL)
}

func (h *LinkHandler) toResponse(link *models.URLRecord) CreateLinkResponse {
	return CreateLinkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		ShortURL:    h.baseURL + "/" + link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ExpiryDate:  link.ExpiryDate,
	}
}

// writeError переводит ошибки сервиса в HTTP-ответ
func (h *LinkHandler) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, ErrorResponse{Error: code, Message: "Internal server error"})
		return
	}

	h.logger.Debug("Request rejected", zap.String("error", code), zap.Error(err))
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		return http.StatusBadRequest, "invalid_url"
	case errors.Is(err, service.ErrInvalidValidity):
		return http.StatusBadRequest, "invalid_validity"
	case errors.Is(err, service.ErrInvalidShortcode):
		return http.StatusBadRequest, "invalid_shortcode"
	case errors.Is(err, service.ErrDuplicateShortcode):
		return http.StatusBadRequest, "duplicate_shortcode"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, service.ErrStoreFull):
		return http.StatusConflict, "store_full"
	case errors.Is(err, service.ErrCapacity):
		return http.StatusConflict, "code_space_exhausted"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrExpired):
		return http.StatusGone, "expired"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
