package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"anonchat/backend/internal/websocket"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats is the read-only view of the matchmaking pool.
type Stats interface {
	WaitingCount() int
	ActiveChatCount() int
}

// UpdateHandler processes Telegram updates delivered by webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// Handler holds what the HTTP routes need. Updates and WS may be nil, which
// disables the matching routes. When AdminToken is set, /stats and /metrics
// require it as a Bearer token.
type Handler struct {
	Stats      Stats
	Updates    UpdateHandler
	WS         *websocket.Manager
	Auth       *Authenticator
	AdminToken string
	log        *slog.Logger
}

func NewHandler(stats Stats, updates UpdateHandler, ws *websocket.Manager, auth *Authenticator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Stats: stats, Updates: updates, WS: ws, Auth: auth, log: log}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.GET("/stats", h.requireAdminToken, h.GetStats)
	r.GET("/metrics", h.requireAdminToken, gin.WrapH(promhttp.Handler()))

	if h.Updates != nil {
		r.POST("/telegram/webhook", h.TelegramWebhook)
	}
	if h.WS != nil && h.Auth != nil {
		r.GET("/anonid", h.GetAnonID)
		r.GET("/ws", h.ServeWebSocket)
	}
}

// requireAdminToken guards operator endpoints. Without a configured token they are
// left open and belong on an internal listener.
func (h *Handler) requireAdminToken(c *gin.Context) {
	if h.AdminToken == "" {
		c.Next()
		return
	}
	got := bearerToken(c.GetHeader("Authorization"))
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Waiting     int `json:"waiting"`
	ActiveChats int `json:"active_chats"`
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Waiting:     h.Stats.WaitingCount(),
		ActiveChats: h.Stats.ActiveChatCount(),
	})
}

// TelegramWebhook accepts one update per request. Telegram retries on non-2xx, so
// processing errors are logged and still acknowledged.
func (h *Handler) TelegramWebhook(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}

	if err := h.Updates.HandleUpdate(c.Request.Context(), update); err != nil {
		h.log.Error("failed to handle webhook update", "update_id", update.UpdateID, "error", err)
	}
	c.Status(http.StatusOK)
}
