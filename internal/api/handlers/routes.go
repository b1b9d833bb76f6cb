package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/amitsahu0611/chatbot-sub001/internal/middleware/security"
)

const APIPrefix = "/api/v1"

// TenantPaths lists the route prefixes whose requests must name a tenant.
var TenantPaths = []string{
	APIPrefix + "/search",
	APIPrefix + "/session/check",
	APIPrefix + "/session/register",
	APIPrefix + "/unanswered-queries",
}

type Set struct {
	Search     *SearchHandler
	Session    *SessionHandler
	Unanswered *UnansweredHandler
	WebSocket  *WebSocketHandler
	Health     *HealthHandler
	AdminToken string
}

// Mount registers every route of the API on router.
func Mount(router fiber.Router, h Set) {
	api := router.Group(APIPrefix)

	api.Get("/search", h.Search.Search)
	api.Get("/search/suggestions", h.Search.Suggestions)
	api.Get("/search/history", h.Search.History)
	api.Post("/search/messages/:id/reaction", h.Search.SetReaction)

	api.Post("/session/check", h.Session.Check)
	api.Post("/session/register", h.Session.Register)
	api.Post("/session/activity", h.Session.Activity)

	admin := api.Group("/unanswered-queries", security.AdminGuard(h.AdminToken))
	admin.Get("/", h.Unanswered.List)
	admin.Get("/:id", h.Unanswered.Get)
	admin.Put("/:id", h.Unanswered.Update)
	admin.Delete("/:id", h.Unanswered.Delete)

	if h.WebSocket != nil {
		api.Get("/ws/chat", h.WebSocket.Upgrade, websocket.New(h.WebSocket.HandleConnection))
	}

	api.Get("/health", h.Health.Health)
	api.Get("/ready", h.Health.Ready)
}
