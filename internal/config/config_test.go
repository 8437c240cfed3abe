package config_test

import (
	"testing"
	"time"

	"wager-escrow-backend/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("API_AUTH_KEY", "test-api-key")
	t.Setenv("PRINCIPAL_ACCOUNT", "acct_principal")
	t.Setenv("CUSTODIAN_URL", "http://localhost:9090")
	t.Setenv("COMMISSION_RATE_BPS", "")
	t.Setenv("CUSTODIAN_TIMEOUT", "")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PrincipalAccount != "acct_principal" {
		t.Errorf("Expected principal acct_principal, got %s", cfg.PrincipalAccount)
	}
	if cfg.CommissionRateBps != 500 {
		t.Errorf("Expected default rate 500, got %d", cfg.CommissionRateBps)
	}
	if cfg.CustodianTimeout != 10*time.Second {
		t.Errorf("Expected default custodian timeout 10s, got %v", cfg.CustodianTimeout)
	}
}

func TestLoadRequiresAuthKeys(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	if _, err := config.Load(); err == nil {
		t.Error("Expected error for missing JWT_SECRET")
	}

	setRequiredEnv(t)
	t.Setenv("API_AUTH_KEY", "")

	if _, err := config.Load(); err == nil {
		t.Error("Expected error for missing API_AUTH_KEY")
	}
}

func TestLoadRejectsExcessiveRate(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("COMMISSION_RATE_BPS", "1600")

	if _, err := config.Load(); err == nil {
		t.Error("Expected error for rate above 1500 bps")
	}
}
