package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/internal/unanswered"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type UnansweredHandler struct {
	tracker *unanswered.Tracker
}

func NewUnansweredHandler(tracker *unanswered.Tracker) *UnansweredHandler {
	return &UnansweredHandler{tracker: tracker}
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func (h *UnansweredHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	res, err := h.tracker.List(c.UserContext(), models.UnansweredFilter{
		TenantID: tenantID(c),
		Status:   models.UnansweredStatus(c.Query("status")),
		Priority: models.Priority(c.Query("priority")),
		Sort:     models.UnansweredSort(c.Query("sortBy")),
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		return writeError(c, err)
	}

	queries := res.Queries
	if queries == nil {
		queries = []models.UnansweredQuery{}
	}
	return ok(c, fiber.Map{
		"queries": queries,
		"stats":   res.Stats,
		"pagination": pagination{
			Page:  page,
			Limit: limit,
			Total: res.Total,
			Pages: (res.Total + limit - 1) / limit,
		},
	})
}

func (h *UnansweredHandler) Get(c *fiber.Ctx) error {
	id, valid := paramID(c)
	if !valid {
		return badRequestf(c, "Invalid id")
	}
	q, err := h.tracker.Get(c.UserContext(), tenantID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, q)
}

func (h *UnansweredHandler) Update(c *fiber.Ctx) error {
	id, valid := paramID(c)
	if !valid {
		return badRequestf(c, "Invalid id")
	}

	var req struct {
		Status          *string `json:"status"`
		RelatedEntryID  *int64  `json:"relatedEntryId"`
		AutoCreateEntry bool    `json:"autoCreateEntry"`
		Answer          string  `json:"answer"`
		Category        string  `json:"category"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequestf(c, "Invalid request body")
	}

	u := unanswered.Update{
		RelatedEntryID:  req.RelatedEntryID,
		AutoCreateEntry: req.AutoCreateEntry,
		Answer:          req.Answer,
		Category:        req.Category,
	}
	if req.Status != nil {
		s := models.UnansweredStatus(*req.Status)
		u.Status = &s
	}

	q, err := h.tracker.Update(c.UserContext(), tenantID(c), id, u)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, q)
}

func (h *UnansweredHandler) Delete(c *fiber.Ctx) error {
	id, valid := paramID(c)
	if !valid {
		return badRequestf(c, "Invalid id")
	}
	if err := h.tracker.Delete(c.UserContext(), tenantID(c), id); err != nil {
		return writeError(c, err)
	}
	return ok(c, fiber.Map{"id": id})
}
