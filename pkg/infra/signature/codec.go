// Package signature computes and verifies the HMAC-SHA256 signatures used
// to authenticate payment-provider webhook calls.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sign returns the lowercase hex HMAC-SHA256 of the canonical message
// "{timestamp}{body}" under secret. The timestamp is epoch milliseconds
// rendered as a decimal string.
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it against
// candidateHex in constant time. Malformed hex or a wrong length is a
// mismatch, never an error.
func Verify(secret string, timestamp int64, body []byte, candidateHex string) bool {
	candidate, err := hex.DecodeString(candidateHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), candidate)
}
