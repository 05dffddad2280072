package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasksats/shield/pkg/common"
	"github.com/tasksats/shield/pkg/config"
	"github.com/tasksats/shield/pkg/infra/blocklist"
	"github.com/tasksats/shield/pkg/infra/botscore"
	"github.com/tasksats/shield/pkg/infra/challenge"
	"github.com/tasksats/shield/pkg/infra/fingerprint"
	"github.com/tasksats/shield/pkg/middleware"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type gateFixture struct {
	app        *fiber.App
	now        *time.Time
	blockList  *blocklist.BlockList
	challenges *challenge.Manager
}

func newGateFixture(t *testing.T, settings middleware.GateSettings) *gateFixture {
	t.Helper()

	now := time.UnixMilli(1700000000000)
	fixture := &gateFixture{now: &now}
	timeProvider := func() time.Time { return *fixture.now }

	cfg := config.DefaultBotConfig()
	history := fingerprint.NewHistoryStore(cfg.HistoryWindow, cfg.HistoryLimit,
		&fingerprint.HistoryStoreOpts{TimeProvider: timeProvider})
	fixture.blockList = blocklist.NewBlockList(cfg.BlockDuration,
		&blocklist.BlockListOpts{TimeProvider: timeProvider})
	fixture.challenges = challenge.NewManager(cfg.ChallengeTTL,
		&challenge.ManagerOpts{TimeProvider: timeProvider})
	scorer := botscore.NewScorer(cfg, history)

	gate := middleware.NewBotGateMiddleware(
		logrus.New(), cfg, scorer, fixture.blockList, fixture.challenges, settings,
	)

	app := fiber.New()
	app.Use(gate.Middleware())
	app.Get("/jobs", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Post("/jobs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"created": true})
	})
	fixture.app = app

	return fixture
}

func browserRequest(method string) *http.Request {
	req := httptest.NewRequest(method, "/jobs", nil)
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	return req
}

// mediumRiskRequest scores in the challenge band: missing user agent plus
// a missing accept-language header.
func mediumRiskRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Encoding", "gzip")
	return req
}

// highRiskRequest scores past the block threshold: automation user agent,
// no common browser headers, bogus AJAX marker and a long proxy chain.
func highRiskRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("User-Agent", "python-requests/2.31.0")
	req.Header.Set("X-Requested-With", "FetchBot")
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2, 10.0.0.3")
	return req
}

func challengeToken(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Challenge struct {
			Token   string `json:"token"`
			Message string `json:"message"`
		} `json:"challenge"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NotEmpty(t, payload.Challenge.Token)
	return payload.Challenge.Token
}

func TestBotGate_LowScoreAllows(t *testing.T) {
	fixture := newGateFixture(t, middleware.GateSettings{})

	resp, err := fixture.app.Test(browserRequest(http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBotGate_MediumScoreChallenges(t *testing.T) {
	fixture := newGateFixture(t, middleware.GateSettings{})

	resp, err := fixture.app.Test(mediumRiskRequest())
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	challengeToken(t, resp)
}

func TestBotGate_ChallengeRoundTrip(t *testing.T) {
	fixture := newGateFixture(t, middleware.GateSettings{})

	resp, err := fixture.app.Test(mediumRiskRequest())
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	token := challengeToken(t, resp)

	retry := mediumRiskRequest()
	retry.Header.Set(common.BotChallengeHeader, token)
	resp, err = fixture.app.Test(retry)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The token was consumed; replaying it earns a fresh challenge.
	replay := mediumRiskRequest()
	replay.Header.Set(common.BotChallengeHeader, token)
	resp, err = fixture.app.Test(replay)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.NotEqual(t, token, challengeToken(t, resp))
}

func TestBotGate_ExpiredChallengeRejected(t *testing.T) {
	fixture := newGateFixture(t, middleware.GateSettings{})

	resp, err := fixture.app.Test(mediumRiskRequest())
	require.NoError(t, err)
	token := challengeToken(t, resp)

	*fixture.now = fixture.now.Add(5*time.Minute + time.Second)

	retry := mediumRiskRequest()
	retry.Header.Set(common.BotChallengeHeader, token)
	resp, err = fixture.app.Test(retry)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestBotGate_HighScoreBlocks(t *testing.T) {
	fixture := newGateFixture(t, middleware.GateSettings{})

	resp, err := fixture.app.Test(highRiskRequest())
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The same source stays blocked even when a later request looks tame.
	tame := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	tame.Header.Set("User-Agent", "python-requests/2.31.0")
	tame.Header.Set("X-Forwarded-For", "10.0.0.1")
	tame.Header.Set("Accept", "text/html")
	tame.Header.Set("Accept-Language", "en-US")
	tame.Header.Set("Accept-Encoding", "gzip")
	resp, err = fixture.app.Test(tame)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The block expires after its configured duration.
	*fixture.now = fixture.now.Add(time.Hour + time.Second)
	resp, err = fixture.app.Test(tame)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBotGate_StrictMode(t *testing.T) {
	fixture := newGateFixture(t, middleware.GateSettings{Strict: true})

	t.Run("Clean Browser Allowed", func(t *testing.T) {
		resp, err := fixture.app.Test(browserRequest(http.MethodGet))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("Mild Signal Rejected Without Challenge", func(t *testing.T) {
		// Automation user agent alone stays below the standard challenge
		// threshold but crosses the strict one.
		req := browserRequest(http.MethodGet)
		req.Header.Set("User-Agent", "python-requests/2.31.0")

		resp, err := fixture.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "challenge")
	})
}

func TestBotGate_Honeypot(t *testing.T) {
	fixture := newGateFixture(t, middleware.GateSettings{HoneypotField: "website"})

	form := url.Values{}
	form.Set("title", "Fix my sink")
	form.Set("website", "https://spam.example")

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	req.Header.Set("User-Agent", chromeUA)

	resp, err := fixture.app.Test(req)
	require.NoError(t, err)

	// Deceptive success: the submitter must not learn it was caught.
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success"}`, string(body))

	// The source is blocked for subsequent requests.
	followup := browserRequest(http.MethodGet)
	resp, err = fixture.app.Test(followup)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestBotGate_HoneypotEmptyFieldPasses(t *testing.T) {
	fixture := newGateFixture(t, middleware.GateSettings{HoneypotField: "website"})

	form := url.Values{}
	form.Set("title", "Fix my sink")

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := fixture.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDecodeGateSettings(t *testing.T) {
	t.Run("Valid Settings", func(t *testing.T) {
		settings, err := middleware.DecodeGateSettings(map[string]interface{}{
			"strict":         true,
			"honeypot_field": "website",
		})
		require.NoError(t, err)
		assert.True(t, settings.Strict)
		assert.Equal(t, "website", settings.HoneypotField)
	})

	t.Run("Empty Settings", func(t *testing.T) {
		settings, err := middleware.DecodeGateSettings(map[string]interface{}{})
		require.NoError(t, err)
		assert.False(t, settings.Strict)
		assert.Empty(t, settings.HoneypotField)
	})
}
