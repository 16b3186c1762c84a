package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig controls the cross-origin policy. An empty AllowOrigins list
// rejects every cross-origin request; origins must be configured explicitly.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig allows no origins until configured.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID", "Accept", "Origin", "Cache-Control"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// CORS applies DefaultCORSConfig.
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig answers preflight requests and stamps CORS headers for
// allowed origins. Preflights always get 204 so they never surface as 404s.
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	wildcard := false
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
			break
		}
	}

	allowedOrigin := func(origin string) string {
		if wildcard {
			return "*"
		}
		for _, o := range cfg.AllowOrigins {
			if o == origin {
				return origin
			}
		}
		return ""
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		allowed := allowedOrigin(origin)

		if allowed != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowed)
			// credentials with a wildcard origin is rejected by browsers
			if cfg.AllowCredentials && allowed != "*" {
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			c.Writer.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
			c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
			if len(cfg.ExposeHeaders) > 0 {
				c.Writer.Header().Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
			}
			if cfg.MaxAge > 0 {
				c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
