package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/middleware/validation"
	"github.com/amitsahu0611/chatbot-sub001/internal/query"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

const (
	wsTenantLocal = "ws_tenant_id"
	wsIPLocal     = "ws_ip"
	wsAgentLocal  = "ws_user_agent"

	wsQueryTimeout = 30 * time.Second
)

type WebSocketHandler struct {
	queryEngine *query.Engine
}

func NewWebSocketHandler(queryEngine *query.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		queryEngine: queryEngine,
	}
}

// Upgrade admits websocket upgrades that name a tenant and carries the
// caller's details into the connection.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, found := validation.TenantID(c)
	if !found {
		return badRequestf(c, "tenantId is required")
	}
	c.Locals(wsTenantLocal, id)
	c.Locals(wsIPLocal, c.IP())
	c.Locals(wsAgentLocal, c.Get(fiber.HeaderUserAgent))
	return c.Next()
}

type wsMessage struct {
	Type         string `json:"type"`
	Content      string `json:"content"`
	SessionToken string `json:"sessionToken"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	tenant, _ := c.Locals(wsTenantLocal).(int64)
	ip, _ := c.Locals(wsIPLocal).(string)
	agent, _ := c.Locals(wsAgentLocal).(string)

	logger.Info("WebSocket connection established", zap.Int64("tenant_id", tenant))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.Int64("tenant_id", tenant))
	}()

	for {
		var msg wsMessage
		err := c.ReadJSON(&msg)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "query" {
			continue
		}

		err = h.streamResponse(c, query.Request{
			TenantID:     tenant,
			Query:        msg.Content,
			SessionToken: msg.SessionToken,
			IPAddress:    ip,
			UserAgent:    agent,
		})
		if err != nil {
			logger.Warn("Failed to stream response", zap.Error(err))
			h.sendError(c, err)
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, req query.Request) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsQueryTimeout)
	defer cancel()

	if err := h.sendChunk(c, "status", "Processing query..."); err != nil {
		return err
	}

	response, err := h.queryEngine.Search(ctx, req)
	if err != nil && (response == nil || !errors.Is(err, query.ErrKnowledgeUnavailable)) {
		return err
	}

	words := strings.Fields(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(fiber.Map{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *query.Response) error {
	ids := make([]int64, 0, len(response.RelatedEntries))
	for _, e := range response.RelatedEntries {
		ids = append(ids, e.ID)
	}
	return c.WriteJSON(fiber.Map{
		"type":       "complete",
		"id":         response.ID,
		"messageId":  response.MessageID,
		"source":     response.Source,
		"confidence": response.Confidence,
		"lowQuality": response.LowQuality,
		"entryIds":   ids,
		"latencyMs":  response.LatencyMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, err error) {
	msg := "Failed to process query"
	if statusFor(err) == fiber.StatusBadRequest {
		msg = err.Error()
	}
	if werr := c.WriteJSON(fiber.Map{"type": "error", "error": msg}); werr != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(werr))
	}
}
