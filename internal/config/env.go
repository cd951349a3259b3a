package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LedgerWriteTimeout bounds each write of a payment outcome after the
// gateway has answered.
const LedgerWriteTimeout = 15 * time.Second

type Env struct {
	AppAddr string
	GinMode string

	DBDSN          string
	DBMaxOpenConns int

	JWTSecret          string
	CORSAllowedOrigins []string

	RedisURL         string
	PaymentRateLimit string

	Waafi WaafiEnv

	PaymentCurrency      string
	PaymentMaxDeclines   int
	SubmissionStaleAfter time.Duration
	SweepInterval        time.Duration

	LogDir string
}

// WaafiEnv holds merchant credentials for the mobile-money gateway.
type WaafiEnv struct {
	BaseURL     string
	MerchantUID string
	APIUserID   string
	APIKey      string
	Timeout     time.Duration
}

// LoadEnv reads .env when present, then the process environment.
func LoadEnv() Env {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("config: .env not loaded: %v", err)
	}

	return Env{
		AppAddr: getString("APP_ADDR", ":8080"),
		GinMode: getString("GIN_MODE", ""),

		DBDSN:          getString("DB_DSN", "root:@tcp(127.0.0.1:3306)/trip_booking"),
		DBMaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),

		JWTSecret:          getString("JWT_SECRET", ""),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),

		RedisURL:         getString("REDIS_URL", ""),
		PaymentRateLimit: getString("PAYMENT_RATE_LIMIT", "5-M"),

		Waafi: WaafiEnv{
			BaseURL:     getString("WAAFI_BASE_URL", "https://api.waafipay.net/asm"),
			MerchantUID: getString("WAAFI_MERCHANT_UID", ""),
			APIUserID:   getString("WAAFI_API_USER_ID", ""),
			APIKey:      getString("WAAFI_API_KEY", ""),
			Timeout:     getDuration("PAYMENT_TIMEOUT", 30*time.Second),
		},

		PaymentCurrency:      getString("PAYMENT_CURRENCY", "USD"),
		PaymentMaxDeclines:   getInt("PAYMENT_MAX_DECLINES", 3),
		SubmissionStaleAfter: getDuration("SUBMISSION_STALE_AFTER", 2*time.Minute),
		SweepInterval:        getDuration("SWEEP_INTERVAL", time.Minute),

		LogDir: getString("LOG_DIR", "logs"),
	}
}

// Validate rejects settings under which the sweeper could release a
// submission whose gateway call or outcome write is still running.
func (e Env) Validate() error {
	if floor := e.Waafi.Timeout + LedgerWriteTimeout; e.SubmissionStaleAfter <= floor {
		return fmt.Errorf("SUBMISSION_STALE_AFTER=%s must exceed PAYMENT_TIMEOUT+%s (%s)",
			e.SubmissionStaleAfter, LedgerWriteTimeout, floor)
	}
	return nil
}

func getString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logrus.Warnf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logrus.Warnf("config: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getList(key string) []string {
	out := []string{}
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
