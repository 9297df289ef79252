package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	headerName = "X-API-Key"
	// Browsers cannot set headers on a WebSocket handshake.
	queryName = "api_key"
)

// providedKey reads the key from X-API-Key, a Bearer token, or, for
// WebSocket upgrades only, the api_key query parameter.
func providedKey(c *gin.Context) string {
	if key := c.GetHeader(headerName); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query(queryName)
	}
	return ""
}

// APIKeyMiddleware validates the API key of each request.
// If apiKey is empty, authentication is disabled.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := providedKey(c)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}
