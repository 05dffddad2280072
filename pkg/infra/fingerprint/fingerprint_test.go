package fingerprint_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasksats/shield/pkg/infra/fingerprint"
)

func TestFingerprint_SourceID(t *testing.T) {
	fp := fingerprint.Fingerprint{IP: "203.0.113.10", UserAgent: "Mozilla/5.0"}

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, fp.SourceID(), fp.SourceID())
		assert.Len(t, fp.SourceID(), 64)
	})

	t.Run("Differs By IP", func(t *testing.T) {
		other := fingerprint.Fingerprint{IP: "203.0.113.11", UserAgent: "Mozilla/5.0"}
		assert.NotEqual(t, fp.SourceID(), other.SourceID())
	})

	t.Run("Differs By UserAgent", func(t *testing.T) {
		other := fingerprint.Fingerprint{IP: "203.0.113.10", UserAgent: "curl/8.0"}
		assert.NotEqual(t, fp.SourceID(), other.SourceID())
	})
}

func captureFingerprint(t *testing.T, mutate func(req *http.Request)) fingerprint.Fingerprint {
	t.Helper()

	var captured fingerprint.Fingerprint
	app := fiber.New()
	app.Get("/test", func(c *fiber.Ctx) error {
		captured = fingerprint.FromRequest(c)
		return c.SendString("OK")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	mutate(req)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	return captured
}

func TestFromRequest_ForwardedForHeader(t *testing.T) {
	fp := captureFingerprint(t, func(req *http.Request) {
		req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
		req.Header.Set("User-Agent", "Mozilla/5.0")
	})

	assert.Equal(t, "198.51.100.7", fp.IP)
	assert.Equal(t, "Mozilla/5.0", fp.UserAgent)
}

func TestFromRequest_UnparseableHeaderFallsBack(t *testing.T) {
	fp := captureFingerprint(t, func(req *http.Request) {
		req.Header.Set("X-Forwarded-For", "not-an-ip")
	})

	assert.NotEqual(t, "not-an-ip", fp.IP)
	assert.NotEmpty(t, fp.IP)
}

func TestFromRequest_RealIPPreferred(t *testing.T) {
	fp := captureFingerprint(t, func(req *http.Request) {
		req.Header.Set("X-Real-IP", "192.0.2.44")
		req.Header.Set("X-Forwarded-For", "198.51.100.7")
	})

	assert.Equal(t, "192.0.2.44", fp.IP)
}
