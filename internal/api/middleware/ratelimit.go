package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "orggraph_limiter"

// NewRateLimiter creates a Gin middleware allowing requests per period for
// each client IP. Counters live in Redis when client is non-nil, so several
// server instances share one budget; otherwise they are kept in memory.
// A requests value of zero disables rate limiting.
func NewRateLimiter(requests int64, period time.Duration, client *redis.Client) (gin.HandlerFunc, error) {
	if requests == 0 {
		return func(c *gin.Context) { c.Next() }, nil
	}
	if period <= 0 {
		return nil, fmt.Errorf("invalid rate limit period %v", period)
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  requests,
	}

	var store limiter.Store
	if client != nil {
		var err error
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:   rateLimitPrefix,
			MaxRetry: limiter.DefaultMaxRetry,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}

	instance := limiter.New(store, rate)
	return mgin.NewMiddleware(instance), nil
}

// NewRedisClient parses a redis:// URL into a client for the shared limiter store.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
