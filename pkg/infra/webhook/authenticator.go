// Package webhook validates inbound payment-provider callbacks before their
// payload is trusted: header presence, timestamp freshness within the replay
// window, then the HMAC signature itself.
package webhook

import (
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tasksats/shield/pkg/infra/signature"
)

var (
	ErrMissingCredentials     = errors.New("webhook signature or timestamp header missing")
	ErrStaleOrFutureTimestamp = errors.New("webhook timestamp outside replay window")
	ErrInvalidSignature       = errors.New("webhook signature mismatch")
	ErrMisconfiguredSecret    = errors.New("webhook secret is not configured")
)

type Authenticator struct {
	secret       string
	replayWindow time.Duration
	production   bool
	logger       *logrus.Logger
	timeProvider func() time.Time
}

type AuthenticatorOpts struct {
	TimeProvider func() time.Time
}

func NewAuthenticator(
	logger *logrus.Logger,
	secret string,
	replayWindow time.Duration,
	production bool,
	opts *AuthenticatorOpts,
) *Authenticator {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &Authenticator{
		secret:       secret,
		replayWindow: replayWindow,
		production:   production,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

// Authenticate checks the signature and timestamp header values against the
// raw request body. A nil return means the body may be treated as authentic.
// With no secret configured the authenticator fails open in development and
// closed in production, where a forged callback moves real money.
func (a *Authenticator) Authenticate(signatureHex, timestampValue string, body []byte) error {
	if a.secret == "" {
		if a.production {
			return ErrMisconfiguredSecret
		}
		a.logger.Warn("webhook secret not configured, skipping signature verification")
		return nil
	}

	if signatureHex == "" || timestampValue == "" {
		return ErrMissingCredentials
	}

	timestamp, err := strconv.ParseInt(timestampValue, 10, 64)
	if err != nil {
		return ErrMissingCredentials
	}

	now := a.timeProvider().UnixMilli()
	skew := now - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > a.replayWindow.Milliseconds() {
		return ErrStaleOrFutureTimestamp
	}

	if !signature.Verify(a.secret, timestamp, body, signatureHex) {
		return ErrInvalidSignature
	}

	return nil
}

// Generate signs a payload with the configured secret at the current time.
// It is the companion signer used by the calling application and by tests.
func (a *Authenticator) Generate(body []byte) (string, int64) {
	timestamp := a.timeProvider().UnixMilli()
	return signature.Sign(a.secret, timestamp, body), timestamp
}
