package config

import (
	"os"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr string

	// PostgresURL selects Postgres-backed stores when set; empty keeps the
	// in-memory stores.
	PostgresURL string

	// RedisURL selects the Redis OTP session store when set.
	RedisURL string

	// JWTSigningKey signs supervisor session tokens.
	JWTSigningKey string

	// SupervisorID and SupervisorPassword seed the bootstrap supervisor
	// account on startup.
	SupervisorID       string
	SupervisorPassword string
}

// OTPTTL is the hard expiry for one-time verification codes.
var OTPTTL = 10 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SARATHI_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("SARATHI_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development fallback only.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	supervisorID := os.Getenv("SARATHI_SUPERVISOR_ID")
	if supervisorID == "" {
		supervisorID = "supervisor"
	}
	supervisorPassword := os.Getenv("SARATHI_SUPERVISOR_PASSWORD")
	if supervisorPassword == "" {
		supervisorPassword = "change-me"
	}

	return Server{
		Addr:               addr,
		PostgresURL:        os.Getenv("SARATHI_POSTGRES_URL"),
		RedisURL:           os.Getenv("SARATHI_REDIS_URL"),
		JWTSigningKey:      jwtSigningKey,
		SupervisorID:       supervisorID,
		SupervisorPassword: supervisorPassword,
	}
}
