package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig lists the browser origins allowed to call the gateway.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// DefaultCORSConfig allows every origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{AllowOrigins: []string{"*"}, MaxAge: time.Hour}
}

const (
	corsMethods = "GET, POST, OPTIONS"
	// Last-Event-ID is sent by EventSource clients reconnecting to a stream.
	corsHeaders = "Accept, Authorization, Content-Type, Last-Event-ID, " + RequestIDHeader
)

// CORS answers preflight requests and lets browsers read the request ID of
// every response, including event streams.
func CORS(config CORSConfig) gin.HandlerFunc {
	anyOrigin := slices.Contains(config.AllowOrigins, "*")
	maxAge := strconv.Itoa(int(config.MaxAge.Seconds()))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case anyOrigin:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(config.AllowOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", corsMethods)
		c.Header("Access-Control-Allow-Headers", corsHeaders)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		if config.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", maxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
