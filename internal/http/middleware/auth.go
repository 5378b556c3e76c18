package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderWebhookSignature carries hex(HMAC-SHA256(secret, raw body)),
// optionally prefixed with "sha256=".
const HeaderWebhookSignature = "X-Webhook-Signature"

// maxWebhookBody bounds how much of a webhook body is buffered for signing.
const maxWebhookBody = 1 << 20

// WebhookSignature verifies the webhook signature against the raw body and
// restores the body for the handler. An empty secret disables the check.
func WebhookSignature(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	key := []byte(secret)

	return func(c *gin.Context) {
		sig := strings.TrimPrefix(strings.TrimSpace(c.GetHeader(HeaderWebhookSignature)), "sha256=")
		if sig == "" {
			unauthorized(c, "missing webhook signature")
			return
		}
		got, err := hex.DecodeString(sig)
		if err != nil {
			unauthorized(c, "invalid webhook signature")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": GetRequestID(c),
				"code":       "invalid_request",
				"message":    "unreadable body",
			})
			return
		}
		if len(body) > maxWebhookBody {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"request_id": GetRequestID(c),
				"code":       "invalid_request",
				"message":    "body too large",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !hmac.Equal(got, Sign(key, body)) {
			unauthorized(c, "invalid webhook signature")
			return
		}
		c.Next()
	}
}

// Sign returns the raw HMAC-SHA256 of body under key.
func Sign(key, body []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(body)
	return h.Sum(nil)
}

// AdminAuth guards the lead administration routes with a static bearer token.
func AdminAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		scheme, got, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || len(want) == 0 ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="leads"`)
			unauthorized(c, "invalid or missing bearer token")
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": GetRequestID(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}
