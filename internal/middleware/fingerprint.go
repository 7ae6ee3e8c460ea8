package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

const FingerprintHeader = "X-Device-Fingerprint"

// Fingerprint identifies the calling device. Clients that know their device
// id send it in X-Device-Fingerprint; otherwise it is derived from headers
// that stay stable between requests of the same browser.
func Fingerprint(r *http.Request) string {
	if fp := strings.TrimSpace(r.Header.Get(FingerprintHeader)); fp != "" {
		return fp
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
	}, "|")))
	return hex.EncodeToString(sum[:])
}
