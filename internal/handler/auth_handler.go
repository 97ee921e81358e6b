package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SergeiKhy/snaplink/internal/middleware"
	"github.com/SergeiKhy/snaplink/internal/remote"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authenticator обменивает регистрационные данные на токен; реализован remote.AuthClient
type Authenticator interface {
	Authenticate(ctx context.Context, reg *remote.Registration) (*remote.Token, error)
}

type AuthHandler struct {
	client Authenticator
	gate   *middleware.TokenGate
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthHandler(client Authenticator, gate *middleware.TokenGate, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		client: client,
		gate:   gate,
		logger: logger,
		now:    time.Now,
	}
}

type TokenResponse struct {
	TokenType   string    `json:"token_type"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticate POST /api/v1/auth
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var reg remote.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	token, err := h.client.Authenticate(c.Request.Context(), &reg)
	if err != nil {
		switch {
		case errors.Is(err, remote.ErrRejected):
			h.logger.Info("Authentication rejected", zap.String("email", reg.Email), zap.Error(err))
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "auth_rejected",
				Message: err.Error(),
			})
		case errors.Is(err, remote.ErrTransport):
			h.logger.Warn("Authentication service unreachable", zap.Error(err))
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "auth_unavailable",
				Message: "Authentication service is unavailable",
			})
		default:
			h.logger.Error("Authentication failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Internal server error",
			})
		}
		return
	}

	expiresAt := token.ExpiresAt(h.now())
	h.gate.Grant(token.AccessToken, expiresAt)

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	c.JSON(http.StatusOK, TokenResponse{
		TokenType:   tokenType,
		AccessToken: token.AccessToken,
		ExpiresAt:   expiresAt,
	})
}
