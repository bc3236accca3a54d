package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShreyaJV11/support-chatbot/internal/middleware/security"
)

func TestMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{IsDevelopment: true}))
	app.All("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"get passes", "GET", "", "", fiber.StatusOK},
		{"json post", "POST", "application/json; charset=utf-8", `{"user_question":"hi"}`, fiber.StatusOK},
		{"form post", "POST", "application/x-www-form-urlencoded", "a=b", fiber.StatusUnsupportedMediaType},
		{"missing type", "PUT", "", `{}`, fiber.StatusUnsupportedMediaType},
		{"nul byte", "POST", "application/json", "{\"user_question\":\"a\x00b\"}", fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHeadersMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(security.HeadersMiddleware(security.HeadersConfig{WidgetOrigins: []string{"https://support.example.com"}}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Empty(t, resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "frame-ancestors https://support.example.com")
	assert.NotEmpty(t, resp.Header.Get("Strict-Transport-Security"))
}
