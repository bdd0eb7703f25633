package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/camera-relay/internal/config"
	"github.com/jwalitptl/camera-relay/internal/handler"
)

// WebhookAuth enforces the shared bearer token on camera webhooks when
// auth is enabled. Cameras send a static secret; there is no per-user
// identity here.
func WebhookAuth(cfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.AuthEnabled {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AuthToken)) != 1 {
			log.Warn().
				Str("client_ip", c.ClientIP()).
				Str("path", c.Request.URL.Path).
				Msg("unauthorized webhook attempt")
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// IPAllowlist rejects webhook calls from addresses outside the
// configured list. An empty list allows all sources.
func IPAllowlist(allowed []string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, ip := range allowed {
		allowedSet[ip] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(allowedSet) == 0 {
			c.Next()
			return
		}
		if _, ok := allowedSet[c.ClientIP()]; !ok {
			log.Warn().
				Str("client_ip", c.ClientIP()).
				Msg("webhook attempt from non-allowlisted IP")
			c.JSON(http.StatusForbidden, handler.NewErrorResponse("IP not allowed"))
			c.Abort()
			return
		}
		c.Next()
	}
}
