package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/query"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

type SearchHandler struct {
	queryEngine *query.Engine
}

func NewSearchHandler(queryEngine *query.Engine) *SearchHandler {
	return &SearchHandler{
		queryEngine: queryEngine,
	}
}

// Search answers GET /search?query=&tenantId=&limit=&sessionToken=.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	resp, err := h.queryEngine.Search(c.UserContext(), query.Request{
		TenantID:     tenantID(c),
		Query:        c.Query("query"),
		Limit:        c.QueryInt("limit"),
		SessionToken: sessionToken(c),
		IPAddress:    c.IP(),
		UserAgent:    c.Get(fiber.HeaderUserAgent),
		RequestID:    requestID(c),
	})
	if errors.Is(err, query.ErrKnowledgeUnavailable) && resp != nil {
		logger.Warn("Serving static answer", zap.String("request_id", resp.ID), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "Service temporarily unavailable",
			"data":    resp,
		})
	}
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, resp)
}

func (h *SearchHandler) Suggestions(c *fiber.Ctx) error {
	suggestions, err := h.queryEngine.Suggestions(c.UserContext(), tenantID(c), c.Query("query"), c.QueryInt("limit"))
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, suggestions)
}

func (h *SearchHandler) History(c *fiber.Ctx) error {
	history, err := h.queryEngine.History(c.UserContext(), query.HistoryRequest{
		TenantID:     tenantID(c),
		SessionToken: sessionToken(c),
		IPAddress:    c.IP(),
		Page:         c.QueryInt("page"),
		Limit:        c.QueryInt("limit"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, history)
}

func (h *SearchHandler) SetReaction(c *fiber.Ctx) error {
	id, valid := paramID(c)
	if !valid {
		return badRequestf(c, "Invalid message id")
	}

	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequestf(c, "Invalid request body")
	}

	msg, err := h.queryEngine.SetReaction(c.UserContext(), tenantID(c), id, models.Reaction(req.Reaction))
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, msg)
}

func sessionToken(c *fiber.Ctx) string {
	if t := c.Query("sessionToken"); t != "" {
		return t
	}
	return c.Get("X-Session-Token")
}
