package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	intconfig "tripbooking/internal/config"
	"tripbooking/internal/db"
	"tripbooking/internal/gateway"
	router "tripbooking/internal/http"
	"tripbooking/internal/http/handlers"
	"tripbooking/internal/logger"
	"tripbooking/internal/services"
)

func main() {
	env := intconfig.LoadEnv()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}
	logger.Init(env.LogDir, env.GinMode)
	log := logger.InfoLogger

	if err := env.Validate(); err != nil {
		logger.ErrorLogger.WithError(err).Fatal("invalid configuration")
	}

	if env.JWTSecret == "" {
		if gin.Mode() == gin.ReleaseMode {
			logger.ErrorLogger.Fatal("JWT_SECRET is required in release mode")
		}
		logger.WarnLogger.Warn("JWT_SECRET not set; authenticated routes will reject every request")
	}

	conn, err := intconfig.ConnectDB(env)
	if err != nil {
		logger.ErrorLogger.WithError(err).Fatal("database connection failed")
	}
	defer intconfig.CloseDB()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureSchema(schemaCtx, conn); err != nil {
		cancelSchema()
		logger.ErrorLogger.WithError(err).Fatal("schema migration failed")
	}
	cancelSchema()

	rdb := connectRedis(env.RedisURL)
	if rdb != nil {
		defer rdb.Close()
	}

	waafi := gateway.NewWaafiClient(gateway.WaafiConfig{
		BaseURL:     env.Waafi.BaseURL,
		MerchantUID: env.Waafi.MerchantUID,
		APIUserID:   env.Waafi.APIUserID,
		APIKey:      env.Waafi.APIKey,
		Timeout:     env.Waafi.Timeout,
	})
	handlers.Configure(handlers.Deps{
		Gateway:     waafi,
		Currency:    env.PaymentCurrency,
		MaxDeclines: env.PaymentMaxDeclines,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := services.Sweeper{StaleAfter: env.SubmissionStaleAfter, Interval: env.SweepInterval}
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           router.NewRouter(env, rdb),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		// a payment request may wait on the gateway for the full payment timeout
		WriteTimeout: env.Waafi.Timeout + 20*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorLogger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorLogger.WithError(err).Error("graceful shutdown failed")
	}
	<-sweepDone
	log.Info("server stopped")
}

// connectRedis returns nil when REDIS_URL is unset or unreachable; the rate
// limiter then falls back to memory.
func connectRedis(url string) *redis.Client {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.WarnLogger.WithError(err).Warn("invalid REDIS_URL, using in-memory rate limiter")
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WarnLogger.WithError(err).Warn("redis unreachable, using in-memory rate limiter")
		_ = rdb.Close()
		return nil
	}
	return rdb
}
