package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"cinecritic/internal/redis"
	"cinecritic/internal/services"
	"cinecritic/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// Limiter is satisfied by *redis.RateLimiter.
type Limiter interface {
	AllowComment(ctx context.Context, userID string) (*redis.RateLimitResult, error)
	AllowRefresh(ctx context.Context, ip string) (*redis.RateLimitResult, error)
}

// RefreshRateLimitMiddleware limits token endpoints per client IP. A nil
// limiter disables it.
func RefreshRateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		result, err := limiter.AllowRefresh(c.Request.Context(), c.ClientIP())
		if !allow(c, result, err, "too many refresh attempts") {
			return
		}
		c.Next()
	}
}

// CommentRateLimitMiddleware limits comment posting per user. It must run
// after AuthMiddleware; a nil limiter disables it.
func CommentRateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}
		result, err := limiter.AllowComment(c.Request.Context(), userID)
		if !allow(c, result, err, "comment rate limit exceeded") {
			return
		}
		c.Next()
	}
}

func allow(c *gin.Context, result *redis.RateLimitResult, err error, message string) bool {
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("rate limit error", httpdto.CodeInternal))
		c.Abort()
		return false
	}
	setRateLimitHeaders(c, result)
	if !result.Allowed {
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(message, httpdto.CodeRateLimited))
		c.Abort()
		return false
	}
	return true
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(int(result.ResetIn.Round(time.Second).Seconds())))
}
