package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string

	// PostgresDSN selects the durable store. When empty the server runs on
	// in-memory stores (local development and tests).
	PostgresDSN string

	// RedisURL enables the shared token revocation list. When empty the
	// in-memory revocation list is used.
	RedisURL string

	// ReviewTimeout bounds the approve/reject transaction.
	ReviewTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SHIFTGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	reviewTimeout := 5 * time.Second
	if raw := os.Getenv("SHIFTGATE_REVIEW_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			reviewTimeout = d
		}
	}

	return Server{
		Addr:          addr,
		LogLevel:      os.Getenv("SHIFTGATE_LOG_LEVEL"),
		JWTSigningKey: jwtSigningKey,
		PostgresDSN:   os.Getenv("SHIFTGATE_POSTGRES_DSN"),
		RedisURL:      os.Getenv("SHIFTGATE_REDIS_URL"),
		ReviewTimeout: reviewTimeout,
	}
}
