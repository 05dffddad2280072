package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tasksats/shield/pkg/common"
	"github.com/tasksats/shield/pkg/infra/fingerprint"
)

type fingerPrintMiddleware struct {
	logger  *logrus.Logger
	history *fingerprint.HistoryStore
}

// NewFingerPrintMiddleware derives the request's source identity, records
// the observation in the history window and exposes the source id plus a
// trace id to everything downstream. It must run before the gate and the
// rate limiter.
func NewFingerPrintMiddleware(
	logger *logrus.Logger,
	history *fingerprint.HistoryStore,
) Middleware {
	return &fingerPrintMiddleware{
		logger:  logger,
		history: history,
	}
}

func (m *fingerPrintMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()

		fp := fingerprint.FromRequest(ctx)
		sourceID := fp.SourceID()

		m.history.Record(sourceID)

		ctx.Locals(common.SourceIdKey, sourceID)
		ctx.Locals(common.LatencyContextKey, start)

		id := uuid.New().String()
		ctx.Locals(common.TraceIdKey, id)

		c := context.WithValue(ctx.Context(), common.SourceIdKey, sourceID)
		c = context.WithValue(c, common.TraceIdKey, id)
		ctx.SetUserContext(c)

		err := ctx.Next()

		m.logger.
			WithField("trace_id", id).
			WithField("source_id", sourceID).
			WithField("status", ctx.Response().StatusCode()).
			WithField("latency_ms", time.Since(start).Milliseconds()).
			Debug("request completed")
		return err
	}
}
