package bitunix

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the HMAC-SHA256 signature over queryString using secret,
// hex-encoded, per §6's requirement that requests are signed with
// HMAC-SHA256 over the query string using the API secret.
func Sign(secret, queryString string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}
