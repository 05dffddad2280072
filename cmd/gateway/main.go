package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tasksats/shield/pkg/config"
	"github.com/tasksats/shield/pkg/infra/blocklist"
	"github.com/tasksats/shield/pkg/infra/botscore"
	"github.com/tasksats/shield/pkg/infra/challenge"
	"github.com/tasksats/shield/pkg/infra/fingerprint"
	infraLogger "github.com/tasksats/shield/pkg/infra/logger"
	"github.com/tasksats/shield/pkg/infra/ratelimit"
	"github.com/tasksats/shield/pkg/infra/webhook"
	"github.com/tasksats/shield/pkg/middleware"
	"github.com/tasksats/shield/pkg/server"
	"github.com/tasksats/shield/pkg/server/router"
)

const sweepInterval = 10 * time.Minute

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()

	if err := config.Load("./config"); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()
	production := cfg.Server.IsProduction()

	history := fingerprint.NewHistoryStore(cfg.Bot.HistoryWindow, cfg.Bot.HistoryLimit, nil)
	blockList := blocklist.NewBlockList(cfg.Bot.BlockDuration, nil)
	challenges := challenge.NewManager(cfg.Bot.ChallengeTTL, nil)
	scorer := botscore.NewScorer(cfg.Bot, history)
	limiter := ratelimit.NewLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, nil)

	authenticator := webhook.NewAuthenticator(
		logger,
		cfg.Webhook.Secret,
		cfg.Webhook.ReplayWindow,
		production,
		nil,
	)

	transport := middleware.Transport{
		FingerprintMiddleware: middleware.NewFingerPrintMiddleware(logger, history),
		BotGateMiddleware: middleware.NewBotGateMiddleware(
			logger, cfg.Bot, scorer, blockList, challenges,
			middleware.GateSettings{HoneypotField: "website"},
		),
		RateLimitMiddleware:   middleware.NewRateLimitMiddleware(logger, limiter),
		WebhookAuthMiddleware: middleware.NewWebhookAuthMiddleware(logger, authenticator, !production),
	}
	strictGate := middleware.NewBotGateMiddleware(
		logger, cfg.Bot, scorer, blockList, challenges,
		middleware.GateSettings{Strict: true},
	)

	srv := server.NewServer(cfg, logger).
		WithRouters(router.NewTrustRouter(logger, transport, strictGate))

	stopSweeper := startSweeper(history, blockList, challenges)
	defer stopSweeper()

	go func() {
		if err := srv.Run(); err != nil {
			logger.WithError(err).Fatal("gateway server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gateway server")
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("error during shutdown")
	}
}

type sweeper interface {
	Sweep()
}

// startSweeper reclaims memory from stale entries periodically. Every read
// path checks expiry on its own, so the gateway stays correct even if the
// ticker never fires.
func startSweeper(sweepers ...sweeper) func() {
	ticker := time.NewTicker(sweepInterval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				for _, s := range sweepers {
					s.Sweep()
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
