package api

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	intconfig "tripbooking/internal/config"
	h "tripbooking/internal/http/handlers"
	"tripbooking/internal/http/middleware"
	"tripbooking/internal/logger"
)

// NewRouter wires middleware and routes. rdb may be nil, in which case the
// payment rate limiter keeps its counters in memory.
func NewRouter(env intconfig.Env, rdb *redis.Client) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.WarnLogger.WithError(err).Warn("failed to set trusted proxies")
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"code":   "not_found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	auth := middleware.Auth(env.JWTSecret)
	payLimit, err := middleware.RateLimit(rdb, "payments_pay", env.PaymentRateLimit)
	if err != nil {
		logger.WarnLogger.WithError(err).Warn("payment rate limit disabled")
		payLimit = func(c *gin.Context) { c.Next() }
	}

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", h.DBCheck)
		api.GET("/routes", h.Routes)

		api.GET("/trips/public", h.ListPublicTrips)

		trips := api.Group("/trips", auth)
		trips.GET("", h.ListMyTrips)
		trips.POST("", h.CreateTrip)
		trips.GET("/earnings", h.GetEarnings)
		trips.GET("/:id", h.GetTrip)
		trips.PUT("/:id", h.UpdateTrip)
		trips.DELETE("/:id", h.DeleteTrip)

		bookings := api.Group("/bookings", auth)
		bookings.GET("", h.ListMyBookings)
		bookings.POST("", h.CreateBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.GET("/:id/payments", h.GetBookingPayments)
		bookings.GET("/:id/receipt", h.GetBookingReceipt)

		payments := api.Group("/payments", auth)
		payments.POST("/pay", payLimit, h.PayBooking)
	}

	h.SetRouter(r)
	return r
}
