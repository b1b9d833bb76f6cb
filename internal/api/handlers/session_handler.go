package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/amitsahu0611/chatbot-sub001/internal/session"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

type SessionHandler struct {
	manager *session.Manager
}

func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

type visitorInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Topic string `json:"topic,omitempty"`
}

func infoOf(s *models.VisitorSession) *visitorInfo {
	if !s.Registered() && s.Topic == "" {
		return nil
	}
	return &visitorInfo{Name: s.VisitorName, Email: s.VisitorEmail, Phone: s.VisitorPhone, Topic: s.Topic}
}

type sessionView struct {
	HasActiveSession *bool        `json:"hasActiveSession,omitempty"`
	SessionToken     string       `json:"sessionToken"`
	ExpiresAt        time.Time    `json:"expiresAt"`
	LastActivity     *time.Time   `json:"lastActivity,omitempty"`
	VisitorInfo      *visitorInfo `json:"visitorInfo,omitempty"`
	LeadCreated      bool         `json:"leadCreated,omitempty"`
}

// Check handles POST /session/check {tenantId, sessionDurationMinutes?}.
func (h *SessionHandler) Check(c *fiber.Ctx) error {
	var req struct {
		SessionDurationMinutes int `json:"sessionDurationMinutes"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequestf(c, "Invalid request body")
		}
	}

	res, err := h.manager.Check(c.UserContext(), session.CheckRequest{
		TenantID:        tenantID(c),
		IPAddress:       c.IP(),
		DurationMinutes: req.SessionDurationMinutes,
	})
	if err != nil {
		return writeError(c, err)
	}

	active := res.HasActiveSession
	return ok(c, sessionView{
		HasActiveSession: &active,
		SessionToken:     res.Session.Token,
		ExpiresAt:        res.Session.ExpiresAt,
		VisitorInfo:      infoOf(res.Session),
	})
}

func (h *SessionHandler) Register(c *fiber.Ctx) error {
	var req struct {
		SessionToken string `json:"sessionToken"`
		VisitorName  string `json:"visitorName"`
		VisitorEmail string `json:"visitorEmail"`
		VisitorPhone string `json:"visitorPhone"`
		Topic        string `json:"topic"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequestf(c, "Invalid request body")
	}

	s, err := h.manager.Register(c.UserContext(), session.RegisterRequest{
		TenantID:  tenantID(c),
		Token:     req.SessionToken,
		Name:      req.VisitorName,
		Email:     req.VisitorEmail,
		Phone:     req.VisitorPhone,
		Topic:     req.Topic,
		IPAddress: c.IP(),
	})
	if err != nil {
		return writeError(c, err)
	}

	return ok(c, sessionView{
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
		VisitorInfo:  infoOf(s),
		LeadCreated:  s.LeadCreated,
	})
}

func (h *SessionHandler) Activity(c *fiber.Ctx) error {
	var req struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequestf(c, "Invalid request body")
	}

	s, err := h.manager.Touch(c.UserContext(), req.SessionToken)
	if err != nil {
		return writeError(c, err)
	}

	last := s.LastActivity
	return ok(c, sessionView{
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
		LastActivity: &last,
	})
}
