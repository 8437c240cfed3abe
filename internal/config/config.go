package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wager-escrow-backend/internal/models"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret  string
	APIAuthKey string

	CustodianURL     string
	CustodianAPIKey  string
	CustodianTimeout time.Duration

	PrincipalAccount   string
	AdjudicatorAccount string
	CommissionRateBps  int64

	AuditInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		APIAuthKey: os.Getenv("API_AUTH_KEY"),

		CustodianURL:     os.Getenv("CUSTODIAN_URL"),
		CustodianAPIKey:  os.Getenv("CUSTODIAN_API_KEY"),
		CustodianTimeout: getEnvDuration("CUSTODIAN_TIMEOUT", 10*time.Second),

		PrincipalAccount:   os.Getenv("PRINCIPAL_ACCOUNT"),
		AdjudicatorAccount: os.Getenv("ADJUDICATOR_ACCOUNT"),
		CommissionRateBps:  getEnvInt64("COMMISSION_RATE_BPS", 500),

		AuditInterval: getEnvDuration("AUDIT_INTERVAL", 5*time.Minute),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	// Token issuance refuses every request when the key is empty, so an
	// unset key means a server nobody can log in to.
	if cfg.APIAuthKey == "" {
		return nil, fmt.Errorf("API_AUTH_KEY is required")
	}
	if cfg.PrincipalAccount == "" {
		return nil, fmt.Errorf("PRINCIPAL_ACCOUNT is required")
	}
	if cfg.CustodianURL == "" {
		return nil, fmt.Errorf("CUSTODIAN_URL is required")
	}
	if cfg.CommissionRateBps < 0 || cfg.CommissionRateBps > models.MaxCommissionRateBps {
		return nil, fmt.Errorf("COMMISSION_RATE_BPS must be between 0 and %d", models.MaxCommissionRateBps)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
