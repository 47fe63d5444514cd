// internal/handler/bridge_handler.go
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/service"
	"pos-print-bridge/internal/utils"
)

const maxBridgeBody = 4 << 20

// BridgeReply is sent back to the page after each message
type BridgeReply struct {
	OK      bool   `json:"ok"`
	URL     string `json:"url,omitempty"`
	Printed bool   `json:"printed,omitempty"`
	Queued  bool   `json:"queued,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BridgeHandler turns web page messages into print requests
type BridgeHandler struct {
	prefix     string
	eprintBase string
	client     *http.Client
	bus        *event.EventBus
	notifier   service.Notifier
	logger     *utils.ServiceLogger
}

// NewBridgeHandler creates a new bridge handler
func NewBridgeHandler(cfg *config.BridgeConfig, bus *event.EventBus, notifier service.Notifier, logger *zap.Logger) *BridgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = service.NewBusNotifier(bus, logger)
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &BridgeHandler{
		prefix:     cfg.CommandPrefix,
		eprintBase: cfg.EPrintBase,
		client:     &http.Client{Timeout: timeout},
		bus:        bus,
		notifier:   notifier,
		logger:     utils.NewServiceLogger(logger, "bridge-handler"),
	}
}

// RegisterRoutes registers bridge routes
func (h *BridgeHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/bridge/message", h.PostMessage)
}

// PostMessage accepts one bridge message as the raw request body
// @Summary Send a bridge message
// @Description Accepts the same messages a page posts over the bridge WebSocket: an "esmartpos:" command or receipt JSON (possibly double encoded)
// @Tags Bridge
// @Accept plain
// @Produce json
// @Param message body string true "Bridge message"
// @Success 200 {object} BridgeReply "Message accepted"
// @Failure 400 {object} BridgeReply "Empty message"
// @Failure 502 {object} BridgeReply "Receipt fetch failed"
// @Router /bridge/message [post]
func (h *BridgeHandler) PostMessage(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBridgeBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, &BridgeReply{Error: err.Error()})
		return
	}

	reply := h.HandleMessage(c.Request.Context(), string(body))

	status := http.StatusOK
	switch {
	case reply.OK:
	case len(strings.TrimSpace(string(body))) == 0:
		status = http.StatusBadRequest
	default:
		status = http.StatusBadGateway
		utils.LoggerWithRequestID(h.logger.Logger, c.GetString(utils.RequestIDKey)).
			Warn("Bridge message rejected", zap.String("error", reply.Error))
	}
	c.JSON(status, reply)
}

// HandleMessage processes one inbound page message
func (h *BridgeHandler) HandleMessage(ctx context.Context, raw string) *BridgeReply {
	if strings.TrimSpace(raw) == "" {
		return &BridgeReply{Error: "empty message"}
	}

	if h.prefix != "" && strings.HasPrefix(raw, h.prefix) {
		return h.handleCommand(ctx, strings.TrimPrefix(raw, h.prefix))
	}

	h.publish(unwrapMessage(raw))
	return &BridgeReply{OK: true, Queued: true}
}

// handleCommand fetches the receipt named by query from the e-print endpoint
func (h *BridgeHandler) handleCommand(ctx context.Context, query string) *BridgeReply {
	url := h.eprintBase + query

	body, err := h.fetch(ctx, url)
	if err != nil {
		h.logger.Warn("E-print fetch failed", zap.String("url", url), zap.Error(err))
		h.notifier.Notify(ctx, service.TitlePrintError, err.Error())
		return &BridgeReply{Error: err.Error()}
	}

	h.publish(unwrapMessage(body))
	h.logger.Info("E-print receipt forwarded", zap.String("url", url), zap.Int("bytes", len(body)))
	return &BridgeReply{OK: true, URL: url, Printed: true}
}

func (h *BridgeHandler) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid e-print URL: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("e-print request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("e-print request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBridgeBody))
	if err != nil {
		return "", fmt.Errorf("failed to read e-print response: %w", err)
	}
	return string(body), nil
}

func (h *BridgeHandler) publish(payload string) {
	if h.bus == nil {
		h.logger.Warn("No event bus, dropping print request")
		return
	}
	h.bus.Publish(event.NewEvent(event.TypePrintJSON, "bridge", map[string]interface{}{
		"payload": payload,
		"source":  string(model.JobSourceBridge),
	}))
}

// unwrapMessage undoes up to two layers of JSON string encoding.
// Text that is not JSON is returned unchanged.
func unwrapMessage(raw string) string {
	text := raw
	for i := 0; i < 2; i++ {
		if !gjson.Valid(text) {
			break
		}
		parsed := gjson.Parse(text)
		if parsed.Type != gjson.String {
			break
		}
		text = parsed.String()
	}
	return text
}
