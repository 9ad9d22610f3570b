package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/unisupport/portal/internal/persistence"
	apperrors "github.com/unisupport/portal/pkg/util/errorutil"
)

// RateLimiter implements fixed-window per-IP limits backed by Redis. When
// Redis is unreachable the limiter fails open: losing rate limiting is
// preferable to refusing every request.
type RateLimiter struct {
	redis  *persistence.Redis
	logger *zap.Logger
}

// NewRateLimiter constructs the limiter.
func NewRateLimiter(redisStore *persistence.Redis, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{redis: redisStore, logger: logger}
}

// Limit returns a middleware that allows at most max requests per client IP
// within the window. The scope keeps counters for different routes apart.
func (rl *RateLimiter) Limit(scope string, max int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl == nil || rl.redis == nil || rl.redis.Client == nil || max <= 0 {
			return c.Next()
		}
		ctx := c.UserContext()
		key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, c.IP(), time.Now().Unix()/int64(window.Seconds()))

		count, err := rl.redis.Client.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			if err := rl.redis.Client.Expire(ctx, key, window).Err(); err != nil {
				rl.logger.Warn("rate limiter expire failed", zap.Error(err))
			}
		}
		if count > int64(max) {
			return apperrors.NewDomainError("RATE_LIMITED",
				"too many requests from this IP, please try again later",
				http.StatusTooManyRequests, nil)
		}
		return c.Next()
	}
}
