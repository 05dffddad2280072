package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/tasksats/shield/pkg/common"
	"github.com/tasksats/shield/pkg/config"
	"github.com/tasksats/shield/pkg/infra/blocklist"
	"github.com/tasksats/shield/pkg/infra/botscore"
	"github.com/tasksats/shield/pkg/infra/challenge"
	"github.com/tasksats/shield/pkg/infra/fingerprint"
	"github.com/tasksats/shield/pkg/infra/prometheus"
)

// GateSettings selects the per-route gate policy. Strict mode rejects
// everything at or above the strict threshold with no challenge tier; a
// honeypot field name enables the hidden-field trap on form submissions.
type GateSettings struct {
	Strict        bool   `mapstructure:"strict"`
	HoneypotField string `mapstructure:"honeypot_field"`
}

// DecodeGateSettings decodes a raw settings map, as found in route
// configuration, into GateSettings.
func DecodeGateSettings(settings map[string]interface{}) (GateSettings, error) {
	var out GateSettings
	if err := mapstructure.Decode(settings, &out); err != nil {
		return out, fmt.Errorf("failed to decode gate settings: %w", err)
	}
	return out, nil
}

type botGateMiddleware struct {
	logger     *logrus.Logger
	cfg        config.BotConfig
	scorer     *botscore.Scorer
	blockList  *blocklist.BlockList
	challenges *challenge.Manager
	settings   GateSettings
}

// NewBotGateMiddleware runs the per-request trust decision: blocked sources
// are refused outright, high scores earn a block, ambiguous scores a
// challenge, and everything else passes through.
func NewBotGateMiddleware(
	logger *logrus.Logger,
	cfg config.BotConfig,
	scorer *botscore.Scorer,
	blockList *blocklist.BlockList,
	challenges *challenge.Manager,
	settings GateSettings,
) Middleware {
	return &botGateMiddleware{
		logger:     logger,
		cfg:        cfg,
		scorer:     scorer,
		blockList:  blockList,
		challenges: challenges,
		settings:   settings,
	}
}

func (m *botGateMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		sourceID, ok := ctx.Locals(common.SourceIdKey).(string)
		if !ok || sourceID == "" {
			sourceID = fingerprint.FromRequest(ctx).SourceID()
		}

		if m.blockList.IsBlocked(sourceID) {
			prometheus.GateDecisionTotal.WithLabelValues("blocked").Inc()
			return forbidden(ctx)
		}

		if field := m.settings.HoneypotField; field != "" {
			if ctx.FormValue(field) != "" {
				return m.honeypotHit(ctx, sourceID)
			}
		}

		result := m.scorer.Score(signalsFromRequest(ctx, sourceID))
		prometheus.BotScoreObserved.Observe(float64(result.Value))

		entry := m.logger.
			WithField("source_id", sourceID).
			WithField("score", result.Value).
			WithField("reasons", result.Reasons)
		entry.Debug("computed bot score")

		if m.settings.Strict {
			if result.Value >= m.cfg.StrictThreshold {
				entry.Info("strict gate rejected request")
				prometheus.GateDecisionTotal.WithLabelValues("strict_rejected").Inc()
				return forbidden(ctx)
			}
			prometheus.GateDecisionTotal.WithLabelValues("allowed").Inc()
			return ctx.Next()
		}

		switch {
		case result.Value >= m.cfg.BlockThreshold:
			m.blockList.Block(sourceID)
			entry.Info("blocked source")
			prometheus.GateDecisionTotal.WithLabelValues("blocked").Inc()
			return forbidden(ctx)

		case result.Value >= m.cfg.ChallengeThreshold:
			token := ctx.Get(common.BotChallengeHeader)
			if m.challenges.Validate(sourceID, token) {
				prometheus.GateDecisionTotal.WithLabelValues("challenge_passed").Inc()
				return ctx.Next()
			}

			ch, err := m.challenges.Issue(sourceID)
			if err != nil {
				m.logger.WithError(err).Error("failed to issue challenge")
				return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "internal server error",
				})
			}
			entry.Info("challenged source")
			prometheus.GateDecisionTotal.WithLabelValues("challenged").Inc()
			return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"challenge": fiber.Map{
					"token":   ch.Token,
					"message": "retry the request with this token in the " + common.BotChallengeHeader + " header",
				},
			})

		default:
			prometheus.GateDecisionTotal.WithLabelValues("allowed").Inc()
			return ctx.Next()
		}
	}
}

// honeypotHit blocks the source but answers with a decoy success so the
// automated submitter does not learn it was detected.
func (m *botGateMiddleware) honeypotHit(ctx *fiber.Ctx, sourceID string) error {
	m.blockList.Block(sourceID)
	m.logger.WithField("source_id", sourceID).Info("honeypot field filled, source blocked")
	prometheus.GateDecisionTotal.WithLabelValues("honeypot").Inc()
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success"})
}

func forbidden(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
}

func signalsFromRequest(ctx *fiber.Ctx, sourceID string) botscore.Signals {
	return botscore.Signals{
		SourceID:       sourceID,
		UserAgent:      ctx.Get(fiber.HeaderUserAgent),
		Accept:         ctx.Get(fiber.HeaderAccept),
		AcceptLanguage: ctx.Get(fiber.HeaderAcceptLanguage),
		AcceptEncoding: ctx.Get(fiber.HeaderAcceptEncoding),
		Referer:        ctx.Get(fiber.HeaderReferer),
		ForwardedFor:   ctx.Get(fiber.HeaderXForwardedFor),
		RequestedWith:  ctx.Get(fiber.HeaderXRequestedWith),
		Host:           ctx.Hostname(),
	}
}
