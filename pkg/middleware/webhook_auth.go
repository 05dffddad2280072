package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/tasksats/shield/pkg/common"
	"github.com/tasksats/shield/pkg/infra/prometheus"
	"github.com/tasksats/shield/pkg/infra/webhook"
)

type webhookAuthMiddleware struct {
	logger        *logrus.Logger
	authenticator *webhook.Authenticator
	development   bool
}

// NewWebhookAuthMiddleware guards payment-provider callback routes. Only
// requests with a fresh, correctly signed payload reach the handler.
func NewWebhookAuthMiddleware(
	logger *logrus.Logger,
	authenticator *webhook.Authenticator,
	development bool,
) Middleware {
	return &webhookAuthMiddleware{
		logger:        logger,
		authenticator: authenticator,
		development:   development,
	}
}

func (m *webhookAuthMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		signatureHex := ctx.Get(common.WebhookSignatureHeader)
		timestamp := ctx.Get(common.WebhookTimestampHeader)

		err := m.authenticator.Authenticate(signatureHex, timestamp, ctx.Body())
		if err == nil {
			prometheus.WebhookAuthTotal.WithLabelValues("accepted").Inc()
			return ctx.Next()
		}

		code := errorCode(err)
		m.logger.
			WithField("code", code).
			WithError(err).
			Warn("rejected webhook request")
		prometheus.WebhookAuthTotal.WithLabelValues(code).Inc()

		if errors.Is(err, webhook.ErrMisconfiguredSecret) {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "webhook verification unavailable",
			})
		}

		// The caller only learns which check failed in development, where
		// it helps debug signing. Production callers get a generic message.
		body := fiber.Map{"error": "invalid webhook credentials"}
		if m.development {
			body["code"] = code
		}
		return ctx.Status(fiber.StatusUnauthorized).JSON(body)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, webhook.ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, webhook.ErrStaleOrFutureTimestamp):
		return "stale_or_future_timestamp"
	case errors.Is(err, webhook.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, webhook.ErrMisconfiguredSecret):
		return "misconfigured_secret"
	default:
		return "unknown"
	}
}
