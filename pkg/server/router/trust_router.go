package router

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/tasksats/shield/pkg/middleware"
)

// strictPrefix carries the strict gate exclusively. The standard gate must
// never run under it, or its challenge tier would leak into strict routes.
const strictPrefix = "/api/payouts"

// TrustRouter mounts the request-trust chain ahead of the marketplace
// routes. Business handlers (jobs, runners, reviews) are registered by the
// host application on the guarded groups this router exposes.
type TrustRouter struct {
	logger    *logrus.Logger
	transport middleware.Transport
	strict    middleware.Middleware

	api       fiber.Router
	strictAPI fiber.Router
}

func NewTrustRouter(
	logger *logrus.Logger,
	transport middleware.Transport,
	strictGate middleware.Middleware,
) *TrustRouter {
	return &TrustRouter{
		logger:    logger,
		transport: transport,
		strict:    strictGate,
	}
}

func (r *TrustRouter) BuildRoutes(app *fiber.App) error {
	app.Use(r.transport.FingerprintMiddleware.Middleware())

	// Provider callbacks authenticate with an HMAC signature instead of the
	// browser heuristics; they still share the fingerprint rate limiter.
	webhooks := app.Group("/webhooks", r.transport.RateLimitMiddleware.Middleware())
	webhooks.Post("/payments", r.transport.WebhookAuthMiddleware.Middleware(), r.handlePaymentEvent)

	r.strictAPI = app.Group(strictPrefix,
		r.strict.Middleware(),
		r.transport.RateLimitMiddleware.Middleware(),
	)
	r.api = app.Group("/api", outsidePrefix(strictPrefix, r.transport.BotGateMiddleware.Middleware()))

	return nil
}

// outsidePrefix runs handler except on paths under prefix. Group middleware
// matches by path prefix, so the standard gate mounted on /api would
// otherwise run ahead of the strict gate's routes too.
func outsidePrefix(prefix string, handler fiber.Handler) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if strings.HasPrefix(ctx.Path(), prefix) {
			return ctx.Next()
		}
		return handler(ctx)
	}
}

// Api is the route group behind the standard gate (challenge tier enabled).
func (r *TrustRouter) Api() fiber.Router {
	return r.api
}

// StrictApi is the route group for high-value endpoints: strict gate, no
// challenge tier, plus the fingerprint rate limiter.
func (r *TrustRouter) StrictApi() fiber.Router {
	return r.strictAPI
}

// handlePaymentEvent acknowledges an authenticated wallet callback. The
// actual invoice settlement lives in the marketplace application; from the
// trust layer's point of view the body is authentic and may be handed over.
func (r *TrustRouter) handlePaymentEvent(ctx *fiber.Ctx) error {
	var event struct {
		PaymentHash string `json:"payment_hash"`
	}
	if err := json.Unmarshal(ctx.Body(), &event); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
	}

	r.logger.WithField("payment_hash", event.PaymentHash).Info("payment webhook accepted")
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
