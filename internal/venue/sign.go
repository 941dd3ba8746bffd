package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"
)

// Credentials holds the venue API key material.
type Credentials struct {
	APIKey     string
	SecretKey  string
	Passphrase string
}

// sign computes the venue's request signature:
// base64(HMAC-SHA256(secret, timestamp + method + requestPath + body)).
func sign(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// authHeaders builds the signed header set for one request. The venue
// expects a millisecond timestamp.
func (c *Credentials) authHeaders(method, requestPath, body string) http.Header {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	h := http.Header{}
	h.Set("OK-ACCESS-KEY", c.APIKey)
	h.Set("OK-ACCESS-SIGN", sign(c.SecretKey, timestamp, method, requestPath, body))
	h.Set("OK-ACCESS-TIMESTAMP", timestamp)
	h.Set("OK-ACCESS-PASSPHRASE", c.Passphrase)
	h.Set("Content-Type", "application/json")
	return h
}
