package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	// WidgetOrigins may embed the chat widget in a frame.
	WidgetOrigins []string
	IsDevelopment bool
}

// HeadersMiddleware sets response headers for a JSON API. Chat payloads carry
// user identity, so nothing is cacheable.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	frameAncestors := "'none'"
	if len(cfg.WidgetOrigins) > 0 {
		frameAncestors = strings.Join(cfg.WidgetOrigins, " ")
	}
	csp := "default-src 'none'; frame-ancestors " + frameAncestors

	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")
		c.Set("Content-Security-Policy", csp)
		if len(cfg.WidgetOrigins) == 0 {
			c.Set("X-Frame-Options", "DENY")
		}
		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		return c.Next()
	}
}
