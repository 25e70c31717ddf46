package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS returns permissive cross-origin middleware. The API is designed to
// be called from browser-based frontends on arbitrary origins, so all
// origins are allowed. Preflight requests are answered directly.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
