package validation

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const tenantLocal = "tenant_id"

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|<object|<embed|javascript:|vbscript:|onerror\s*=|onload\s*=|onclick\s*=|onmouseover\s*=)`)

type Config struct {
	MaxQueryLength      int
	AllowedContentTypes []string
	// TenantPaths are path prefixes whose requests must name a tenant.
	TenantPaths []string
	Logger      *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 1000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
				return reject(c, fiber.StatusUnsupportedMediaType, "Unsupported content type")
			}
		}

		if query := c.Query("query"); query != "" {
			if len(query) > cfg.MaxQueryLength {
				return reject(c, fiber.StatusBadRequest, "Query exceeds maximum length")
			}
			if containsXSS(query) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()),
				)
				return reject(c, fiber.StatusBadRequest, "Invalid query content")
			}
		}

		if requiresTenant(c.Path(), cfg.TenantPaths) {
			id, ok := TenantID(c)
			if !ok {
				return reject(c, fiber.StatusBadRequest, "tenantId is required")
			}
			c.Locals(tenantLocal, id)
		}

		return c.Next()
	}
}

// TenantID resolves the tenant from, in order, the value stored by the
// middleware, the tenantId or companyId query parameter, and the same fields
// of a JSON body.
func TenantID(c *fiber.Ctx) (int64, bool) {
	if id, ok := c.Locals(tenantLocal).(int64); ok {
		return id, true
	}
	for _, key := range []string{"tenantId", "companyId"} {
		if id, ok := parseTenant(c.Query(key)); ok {
			return id, true
		}
	}

	if c.Method() == fiber.MethodGet || len(c.Body()) == 0 {
		return 0, false
	}
	var body struct {
		TenantID  any `json:"tenantId"`
		CompanyID any `json:"companyId"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return 0, false
	}
	for _, v := range []any{body.TenantID, body.CompanyID} {
		if id, ok := parseTenant(v); ok {
			return id, true
		}
	}
	return 0, false
}

func parseTenant(v any) (int64, bool) {
	var id int64
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, false
		}
		id = int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	return id, id > 0
}

func requiresTenant(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func reject(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
