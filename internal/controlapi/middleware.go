package controlapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowloom/flowloom/internal/logging"
)

// requestLogger adapts the teacher's net/http LoggingMiddleware into a gin
// middleware that writes through the structured Logger instead of the
// standard library's bare log package.
func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if logger == nil {
			return
		}
		logger.Info("control api request", map[string]any{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

// cors adapts the teacher's net/http CORSMiddleware to gin: this is a
// local monitoring/control surface, not a public API, so the allow-all
// origin policy is kept as-is.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
