package config

import (
	"os"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	Environment   string
	DatabaseURL   string
	RedisAddr     string
	KafkaBrokers  string
	JWTSigningKey string
	AdminToken    string
	GrantTTL      time.Duration
	SeedDemoData  bool
}

// DefaultGrantTTL is the default lifetime of a cross-jurisdiction access grant.
var DefaultGrantTTL = 30 * 24 * time.Hour

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CUSTODIA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	grantTTL := DefaultGrantTTL
	if v := os.Getenv("CUSTODIA_GRANT_TTL"); v != "" {
		if duration, err := time.ParseDuration(v); err == nil {
			grantTTL = duration
		}
	}

	jwtSigningKey := os.Getenv("CUSTODIA_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	environment := os.Getenv("CUSTODIA_ENV")
	if environment == "" {
		environment = "development"
	}

	return Server{
		Addr:          addr,
		Environment:   environment,
		DatabaseURL:   os.Getenv("CUSTODIA_DATABASE_URL"),
		RedisAddr:     os.Getenv("CUSTODIA_REDIS_ADDR"),
		KafkaBrokers:  os.Getenv("CUSTODIA_KAFKA_BROKERS"),
		JWTSigningKey: jwtSigningKey,
		AdminToken:    os.Getenv("CUSTODIA_ADMIN_TOKEN"),
		GrantTTL:      grantTTL,
		SeedDemoData:  os.Getenv("CUSTODIA_SEED_DEMO") == "true",
	}
}
