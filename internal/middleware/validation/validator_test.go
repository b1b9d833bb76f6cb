package validation

import (
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxQueryLength: 20, TenantPaths: []string{"/api/v1/search", "/api/v1/session/check"}}))
	handler := func(c *fiber.Ctx) error {
		id, _ := TenantID(c)
		return c.JSON(fiber.Map{"tenant": id})
	}
	app.Get("/api/v1/search", handler)
	app.Post("/api/v1/session/check", handler)
	app.Post("/api/v1/session/activity", handler)
	return app
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        int
		wantBody    string
	}{
		{"query tenantId", "GET", "/api/v1/search?tenantId=7&query=hours", "", "", 200, `{"tenant":7}`},
		{"query companyId", "GET", "/api/v1/search?companyId=8&query=hours", "", "", 200, `{"tenant":8}`},
		{"missing tenant", "GET", "/api/v1/search?query=hours", "", "", 400, ""},
		{"non numeric tenant", "GET", "/api/v1/search?tenantId=abc&query=hours", "", "", 400, ""},
		{"negative tenant", "GET", "/api/v1/search?tenantId=-1&query=hours", "", "", 400, ""},
		{"query too long", "GET", "/api/v1/search?tenantId=1&query=" + strings.Repeat("a", 21), "", "", 400, ""},
		{"script marker", "GET", "/api/v1/search?tenantId=1&query=" + url.QueryEscape("<script>x"), "", "", 400, ""},
		{"plain sql words pass", "GET", "/api/v1/search?tenantId=1&query=" + url.QueryEscape("select a plan"), "", "", 200, ""},
		{"body tenant number", "POST", "/api/v1/session/check", "application/json", `{"tenantId":3}`, 200, `{"tenant":3}`},
		{"body tenant string", "POST", "/api/v1/session/check", "application/json", `{"companyId":"4"}`, 200, `{"tenant":4}`},
		{"body without tenant", "POST", "/api/v1/session/check", "application/json", `{}`, 400, ""},
		{"wrong content type", "POST", "/api/v1/session/check", "text/plain", `x`, 415, ""},
		{"path without tenant rule", "POST", "/api/v1/session/activity", "application/json", `{"sessionToken":"t"}`, 200, `{"tenant":0}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			resp, err := newApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
			if tc.wantBody != "" {
				b, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.JSONEq(t, tc.wantBody, string(b))
			}
		})
	}
}
