package middleware

import "github.com/gofiber/fiber/v2"

type Middleware interface {
	Middleware() fiber.Handler
}

// Transport groups the trust-layer middlewares in mounting order.
type Transport struct {
	FingerprintMiddleware Middleware
	BotGateMiddleware     Middleware
	RateLimitMiddleware   Middleware
	WebhookAuthMiddleware Middleware
}
