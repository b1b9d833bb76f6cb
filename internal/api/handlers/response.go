package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
	"github.com/amitsahu0611/chatbot-sub001/internal/middleware/validation"
	"github.com/amitsahu0611/chatbot-sub001/internal/query"
	"github.com/amitsahu0611/chatbot-sub001/internal/session"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/internal/unanswered"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

var badRequest = []error{
	query.ErrInvalidRequest,
	session.ErrInvalidRequest,
	models.ErrInvalidTenant,
	unanswered.ErrInvalidStatus,
	unanswered.ErrInvalidPriority,
	unanswered.ErrAnswerRequired,
	unanswered.ErrEmptyQuery,
	ingestion.ErrEmptyQuestion,
	ingestion.ErrEmptyAnswer,
}

func statusFor(err error) int {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return fiber.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, session.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, query.ErrKnowledgeUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// writeError maps err to a status. Only validation and not-found messages
// reach the caller; everything else gets a generic text.
func writeError(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	msg := err.Error()
	switch status {
	case fiber.StatusNotFound:
		msg = "Not found"
		if errors.Is(err, session.ErrSessionNotFound) {
			msg = session.ErrSessionNotFound.Error()
		}
	case fiber.StatusServiceUnavailable:
		msg = "Service temporarily unavailable"
	case fiber.StatusInternalServerError:
		msg = "Internal server error"
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func badRequestf(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

func tenantID(c *fiber.Ctx) int64 {
	id, _ := validation.TenantID(c)
	return id
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

func paramID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}
