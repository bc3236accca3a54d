package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(AdminMiddleware(secret))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(Subject(c)) })
	return app
}

func status(t *testing.T, app *fiber.App, header string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAdminMiddleware(t *testing.T) {
	app := newApp(secret)

	valid, err := IssueAdminToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	expired, err := IssueAdminToken(secret, "ops", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := IssueAdminToken("other", "ops", time.Hour)
	require.NoError(t, err)
	viewer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "viewer"}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, fiber.StatusOK},
		{"missing", "", fiber.StatusUnauthorized},
		{"not bearer", "Basic abc", fiber.StatusUnauthorized},
		{"expired", "Bearer " + expired, fiber.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, fiber.StatusUnauthorized},
		{"wrong role", "Bearer " + viewer, fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status(t, app, tt.header))
		})
	}
}

func TestAdminMiddleware_DisabledWithoutSecret(t *testing.T) {
	token, err := IssueAdminToken(secret, "ops", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, status(t, newApp(""), "Bearer "+token))
}
