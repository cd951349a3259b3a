package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginmiddleware "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"tripbooking/internal/logger"
)

// RateLimit throttles a route per actor (or per client IP before auth).
// With a redis client the counters are shared across instances; otherwise
// they live in process memory.
func RateLimit(rdb *redis.Client, routeID, format string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(format)
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", routeID, err)
	}

	opts := limiter.StoreOptions{
		Prefix:          "rate_limiter:" + routeID,
		MaxRetry:        3,
		CleanUpInterval: rate.Period,
	}
	var store limiter.Store
	if rdb != nil {
		store, err = redisstore.NewStoreWithOptions(rdb, opts)
		if err != nil {
			return nil, fmt.Errorf("rate limit %s: redis store: %w", routeID, err)
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}

	return ginmiddleware.NewMiddleware(limiter.New(store, rate),
		ginmiddleware.WithKeyGetter(rateKey),
		ginmiddleware.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "too many requests",
				"code":       "rate_limited",
				"message":    "too many requests, retry later",
				"request_id": GetRequestID(c),
			})
		}),
		ginmiddleware.WithErrorHandler(func(c *gin.Context, err error) {
			// fail open
			logger.Event(GetRequestID(c), "http", "rate_limit").WithError(err).Warn("rate limiter unavailable")
			c.Next()
		}),
	), nil
}

func rateKey(c *gin.Context) string {
	if a, ok := lookupActor(c); ok {
		return "actor:" + a.ID
	}
	return "ip:" + c.ClientIP()
}
