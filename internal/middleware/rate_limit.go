package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/loadlink/loadlink-backend/internal/utils"
)

// RateLimit rejects clients that exceed the limiter's window with 429
func RateLimit(limiter *services.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := limiter.Check(c.Request.Context(), "ip", utils.GetRealIP(c))
		if err == nil {
			c.Next()
			return
		}

		var rlErr *services.RateLimitError
		if !errors.As(err, &rlErr) {
			c.Next()
			return
		}

		retryAfter := int(time.Until(rlErr.RetryAfter).Seconds()) + 1
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"detail":      rlErr.Message,
			"code":        "RATE_LIMIT_EXCEEDED",
			"retry_after": retryAfter,
		})
	}
}
