// Package fingerprint derives a stable grouping key for the apparent source
// of a request and keeps a bounded sliding window of its recent activity.
// A fingerprint correlates requests; it never claims identity and is never
// used for authorization.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Fingerprint struct {
	IP        string
	UserAgent string
}

// SourceID returns the deterministic grouping key for this fingerprint.
func (f Fingerprint) SourceID() string {
	sum := sha256.Sum256([]byte(f.IP + "|" + f.UserAgent))
	return hex.EncodeToString(sum[:])
}

// FromRequest narrows the ambient header bag into a Fingerprint. The client
// address is taken from the first parseable IP in the usual proxy headers,
// falling back to the connection remote address.
func FromRequest(ctx *fiber.Ctx) Fingerprint {
	return Fingerprint{
		IP:        clientIP(ctx),
		UserAgent: strings.TrimSpace(ctx.Get(fiber.HeaderUserAgent)),
	}
}

func clientIP(ctx *fiber.Ctx) string {
	ipHeaders := []string{
		"X-Real-IP",
		"X-Forwarded-For",
		"True-Client-IP",
		"CF-Connecting-IP",
	}

	for _, header := range ipHeaders {
		if value := ctx.Get(header); value != "" {
			ips := strings.Split(value, ",")
			ip := strings.TrimSpace(ips[0])
			if parsedIP := net.ParseIP(ip); parsedIP != nil {
				return ip
			}
		}
	}
	return strings.TrimSpace(ctx.IP())
}
