package push

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatepass/backend/internal/middleware"
	"github.com/gatepass/backend/internal/models"
	"github.com/gatepass/backend/pkg/response"
)

// RegisterTokenRequest is the body for POST /me/push-tokens.
type RegisterTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

// TokenStore persists device tokens.
type TokenStore interface {
	Upsert(ctx context.Context, t *models.PushToken) error
	Delete(ctx context.Context, token string, userID uuid.UUID) error
}

// Handler handles push token endpoints.
type Handler struct {
	repo   TokenStore
	logger *zap.Logger
}

// NewHandler creates a push token handler.
func NewHandler(repo TokenStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Register handles POST /me/push-tokens.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token required")
		return
	}
	t := &models.PushToken{UserID: middleware.UserID(c), Token: req.Token, Platform: req.Platform}
	if err := h.repo.Upsert(c.Request.Context(), t); err != nil {
		h.logger.Error("register push token failed", zap.Error(err))
		response.Internal(c, "failed to register push token")
		return
	}
	response.Created(c, t)
}

// Remove handles DELETE /me/push-tokens/:token.
func (h *Handler) Remove(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("token"), middleware.UserID(c)); err != nil {
		h.logger.Error("remove push token failed", zap.Error(err))
		response.Internal(c, "failed to remove push token")
		return
	}
	response.NoContent(c)
}
