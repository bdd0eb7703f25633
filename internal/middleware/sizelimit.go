package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/camera-relay/internal/handler"
)

// BodyLimit rejects webhook payloads whose declared length exceeds the
// limit. Camera payloads are small; anything larger is hostile or
// broken. Chunked bodies without a length are bounded again at read
// time by the handler.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, handler.NewErrorResponse("payload too large"))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
