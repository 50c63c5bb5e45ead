package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RawBodyKey is the gin context key holding the unmodified request body.
// Signature verification must run over the exact bytes received; binding
// the JSON first and re-serializing it would silently break verification.
const RawBodyKey = "rawBody"

// ValidateSignature checks the X-Line-Signature value against an
// HMAC-SHA256 of the raw body under the channel secret.
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	if signature == "" || len(body) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignatureMiddleware captures the raw body and rejects requests that were
// not signed by the LINE platform. The raw bytes are stashed in the context
// so handlers can bind the JSON afterwards.
func SignatureMiddleware(channelSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if channelSecret == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "LINE_CHANNEL_SECRET is not set"})
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil || len(body) == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": "no raw body"})
			c.Abort()
			return
		}

		signature := c.GetHeader("X-Line-Signature")
		if signature == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "no signature"})
			c.Abort()
			return
		}

		if !ValidateSignature(channelSecret, body, signature) {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			c.Abort()
			return
		}

		c.Set(RawBodyKey, body)
		c.Next()
	}
}
