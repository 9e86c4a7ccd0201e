package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the credentials required for signed requests against the
// Bitget REST API.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret, used raw as the HMAC key
	Passphrase string // API passphrase
}

// Configured reports whether every credential is present.
func (h *HMACAuth) Configured() bool {
	return h != nil && h.Key != "" && h.Secret != "" && h.Passphrase != ""
}

// Headers returns the HTTP headers for a signed request. requestPath must
// include the query string (with its leading '?') when one is sent.
// The signature is HMAC-SHA256(secret, timestamp+METHOD+requestPath+body)
// encoded as base64, with the timestamp in Unix milliseconds.
//
// Returned header keys:
//   - ACCESS-KEY
//   - ACCESS-SIGN
//   - ACCESS-TIMESTAMP
//   - ACCESS-PASSPHRASE
func (h *HMACAuth) Headers(method, requestPath, body string) map[string]string {
	return h.HeadersAt(method, requestPath, body, time.Now().UnixMilli())
}

// HeadersAt is like Headers but lets the caller supply the millisecond
// timestamp (useful for deterministic testing).
func (h *HMACAuth) HeadersAt(method, requestPath, body string, unixMilli int64) map[string]string {
	ts := strconv.FormatInt(unixMilli, 10)

	message := ts + method + requestPath + body
	sig := hmacSHA256Base64([]byte(h.Secret), message)

	return map[string]string{
		"ACCESS-KEY":        h.Key,
		"ACCESS-SIGN":       sig,
		"ACCESS-TIMESTAMP":  ts,
		"ACCESS-PASSPHRASE": h.Passphrase,
	}
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
