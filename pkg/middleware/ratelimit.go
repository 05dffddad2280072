package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/tasksats/shield/pkg/common"
	"github.com/tasksats/shield/pkg/infra/fingerprint"
	"github.com/tasksats/shield/pkg/infra/prometheus"
	"github.com/tasksats/shield/pkg/infra/ratelimit"
)

type rateLimitMiddleware struct {
	logger  *logrus.Logger
	limiter *ratelimit.Limiter
}

// NewRateLimitMiddleware enforces the fixed-window fingerprint limiter on
// high-value routes, independently of the bot gate.
func NewRateLimitMiddleware(
	logger *logrus.Logger,
	limiter *ratelimit.Limiter,
) Middleware {
	return &rateLimitMiddleware{
		logger:  logger,
		limiter: limiter,
	}
}

func (m *rateLimitMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		sourceID, ok := ctx.Locals(common.SourceIdKey).(string)
		if !ok || sourceID == "" {
			sourceID = fingerprint.FromRequest(ctx).SourceID()
		}

		key := ratelimit.BucketKey(sourceID, ctx.Get(fiber.HeaderUserAgent))
		decision := m.limiter.Allow(key)

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds())
			m.logger.
				WithField("source_id", sourceID).
				WithField("retry_after", retryAfter).
				Info("rate limit exceeded")
			prometheus.RateLimitTotal.WithLabelValues("limited").Inc()

			ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
		}

		prometheus.RateLimitTotal.WithLabelValues("allowed").Inc()
		ctx.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		return ctx.Next()
	}
}
