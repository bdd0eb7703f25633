package system

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/camera-relay/internal/batcher"
	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/internal/handler"
	"github.com/jwalitptl/camera-relay/internal/ratelimit"
	"github.com/jwalitptl/camera-relay/internal/repository"
	"github.com/jwalitptl/camera-relay/internal/sms"
	"github.com/jwalitptl/camera-relay/pkg/clock"
	apperrors "github.com/jwalitptl/camera-relay/pkg/errors"
	"github.com/jwalitptl/camera-relay/pkg/logger"
)

// Handler serves the operational endpoints: health, stats, redacted
// config, event history and test notifications.
type Handler struct {
	cfg     *config.Config
	chain   *sms.Chain
	batcher *batcher.Batcher
	limiter *ratelimit.Limiter
	store   repository.EventStore
	clock   clock.Clock
	logger  *logger.Logger
}

func NewHandler(
	cfg *config.Config,
	chain *sms.Chain,
	b *batcher.Batcher,
	limiter *ratelimit.Limiter,
	store repository.EventStore,
	clk clock.Clock,
	log *logger.Logger,
) *Handler {
	return &Handler{
		cfg:     cfg,
		chain:   chain,
		batcher: b,
		limiter: limiter,
		store:   store,
		clock:   clk,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/config", h.Config)
	r.GET("/api/events", h.Events)
	r.POST("/api/test-notification", h.TestNotification)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"status":    "healthy",
		"timestamp": h.clock.Now(),
		"channels":  h.chain.Statuses(),
		"store":     h.cfg.Store.Driver,
	}))
}

func (h *Handler) Stats(c *gin.Context) {
	rates := make(map[string]gin.H, len(h.cfg.Recipients))
	for _, r := range h.cfg.Recipients {
		rates[r.Name] = gin.H{
			"sent_last_hour": h.limiter.SentLastHour(r.Number),
		}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"rate_limits":           rates,
		"pending_notifications": h.batcher.PendingCount(),
	}))
}

// Config returns the active configuration with secrets redacted.
func (h *Handler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"server":        h.cfg.Server,
		"notifications": h.cfg.Notifications,
		"cameras":       h.cfg.Cameras,
		"recipients":    h.cfg.Recipients,
		"sms": gin.H{
			"primary":  gin.H{"type": h.cfg.SMS.Primary.Type},
			"fallback": gin.H{"type": h.cfg.SMS.Fallback.Type},
			"carrier_email": gin.H{
				"enabled":   h.cfg.SMS.CarrierEmail.Enabled,
				"smtp_host": h.cfg.SMS.CarrierEmail.SMTPHost,
			},
		},
	}))
}

func (h *Handler) Events(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("event store not enabled"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	cameraID := c.Query("camera_id")

	events, err := h.store.Recent(c.Request.Context(), limit, cameraID)
	if err != nil {
		h.logger.Error(err, "failed to list events")
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to list events"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"events": events}))
}

type testNotificationRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Carrier   string `json:"carrier"`
	Message   string `json:"message"`
}

// TestNotification sends a message straight through the delivery chain,
// bypassing batching and rate limiting.
func (h *Handler) TestNotification(c *gin.Context) {
	var req testNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("recipient is required"))
		return
	}
	if req.Message == "" {
		req.Message = "Test notification from camera relay"
	}

	if err := h.chain.Send(c.Request.Context(), req.Recipient, req.Carrier, req.Message); err != nil {
		h.logger.Error(err, "test notification failed", "recipient", req.Recipient)
		status := http.StatusBadGateway
		var ae *apperrors.AppError
		if errors.As(err, &ae) && ae.Code == apperrors.ErrUnavailable {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, handler.NewErrorResponse("failed to send notification"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "test notification sent"}))
}
