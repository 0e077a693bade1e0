package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CorsMiddleware sets permissive CORS headers and answers every preflight request with an
// empty 204. It is the only preflight handler; routes do not register OPTIONS themselves.
// Credentials travel as bearer tokens, so cookies are never allowed cross-origin.
func CorsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Origin, X-Request-ID, Sec-WebSocket-Protocol")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Type, X-Request-ID, X-RateLimit-Remaining")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
