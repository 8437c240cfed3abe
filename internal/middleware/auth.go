package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wager-escrow-backend/internal/services"
)

func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("account_id", claims.AccountID)

		c.Next()
	}
}

// limitFor maps a request to its rate bucket. Fund movements and player
// game writes are throttled; admin settlement routes under /api/admin are
// not, so adjudicators never queue behind the player limit.
func limitFor(path, method string) (int, time.Duration, bool) {
	switch {
	case strings.Contains(path, "/escrow/deposit"), strings.Contains(path, "/escrow/withdraw"):
		return services.DefaultRateLimitFunds, time.Minute, true
	case strings.HasPrefix(path, "/api/games") && method == http.MethodPost:
		return services.DefaultRateLimitGames, time.Minute, true
	}
	return 0, 0, false
}

func RateLimitMiddleware(redisService *services.RedisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, exists := c.Get("account_id")
		if !exists {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		limit, window, limited := limitFor(path, c.Request.Method)
		if !limited {
			c.Next()
			return
		}

		allowed, err := redisService.CheckRateLimit(account.(string), path, limit, window)
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
