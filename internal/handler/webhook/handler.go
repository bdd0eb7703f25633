package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/camera-relay/internal/handler"
	"github.com/jwalitptl/camera-relay/internal/service/processor"
	"github.com/jwalitptl/camera-relay/pkg/logger"
)

// maxPayloadBytes bounds how much of a webhook body is read. Camera
// payloads are small; anything larger is hostile or broken.
const maxPayloadBytes = 1 << 20

type Handler struct {
	processor *processor.Service
	logger    *logger.Logger
}

func NewHandler(svc *processor.Service, log *logger.Logger) *Handler {
	return &Handler{processor: svc, logger: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Cameras differ in which path they can be pointed at; all three
	// feed the same pipeline.
	r.POST("/webhook", h.HandleEvent)
	r.POST("/camera/event", h.HandleEvent)
	r.POST("/alert", h.HandleEvent)
	r.POST("/test", h.HandleTest)
}

// HandleEvent ingests one camera event payload.
func (h *Handler) HandleEvent(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("failed to read request body"))
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid JSON payload"))
		return
	}

	result := h.processor.ProcessEvent(c.Request.Context(), payload, raw)
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleTest injects a synthetic high-priority event through the full
// pipeline.
func (h *Handler) HandleTest(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		body = map[string]interface{}{}
	}

	payload := map[string]interface{}{
		"camera_id":  stringOr(body, "camera_id", "test_camera"),
		"event_type": stringOr(body, "message", "Test notification"),
		"priority":   stringOr(body, "priority", "high"),
	}
	raw, _ := json.Marshal(payload)

	result := h.processor.ProcessEvent(c.Request.Context(), payload, raw)
	c.JSON(http.StatusOK, result)
}

func stringOr(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}
