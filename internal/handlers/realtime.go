package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/tuntasinaja/tuntasinaja/internal/auth"
	"github.com/tuntasinaja/tuntasinaja/internal/models"
	"github.com/tuntasinaja/tuntasinaja/internal/realtime"
	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

// RealtimeHandler upgrades HTTP connections into authenticated notification streams.
// Browsers cannot set headers on WebSocket requests, so the token may also
// arrive as a query parameter.
type RealtimeHandler struct {
	hub *realtime.Hub
	jwt *iauth.JWTService
	db  *gorm.DB
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub, jwt *iauth.JWTService, db *gorm.DB) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, jwt: jwt, db: db}
}

// Stream validates the caller and attaches the connection to the hub.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}

	if token == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	userID := strings.TrimSpace(claims.Subject())
	if h.db != nil {
		var user models.User
		err := h.db.WithContext(requestContext(c)).Select("id").First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperrors.ErrUnauthorized)
			return
		}
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	h.hub.Serve(userID, c.Writer, c.Request)
}
