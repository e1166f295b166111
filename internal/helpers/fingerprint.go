package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// DeviceFingerprint derives a stable identifier for the requesting device
// from its user agent. The HMAC salt keeps fingerprints deployment-specific
// so they cannot be correlated across installations.
func DeviceFingerprint(salt string, userAgent string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(userAgent))
	return hex.EncodeToString(mac.Sum(nil))
}

// ClientIP extracts the client address, honouring X-Forwarded-For set by a
// trusted proxy. The leftmost entry is the originating client.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
