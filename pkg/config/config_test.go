package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvAppEnv, "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if !cfg.Payments.PlatformFeePercentage.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected fee 2, got %s", cfg.Payments.PlatformFeePercentage)
	}
	if !cfg.Payments.MinPaymentAmount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected min 5, got %s", cfg.Payments.MinPaymentAmount)
	}
	if !cfg.Payments.MaxPaymentAmount.Equal(decimal.NewFromInt(1000000)) {
		t.Fatalf("expected max 1000000, got %s", cfg.Payments.MaxPaymentAmount)
	}
	if got := cfg.Payments.PollInterval(); got != 5*time.Second {
		t.Fatalf("expected poll interval 5s, got %v", got)
	}
	if got := cfg.Payments.PendingTimeout(); got != 5*time.Minute {
		t.Fatalf("expected pending timeout 5m, got %v", got)
	}
	if cfg.Payments.CountryCode != "ZM" || cfg.Payments.CurrencyCode != "ZMW" {
		t.Fatalf("unexpected locale defaults %q/%q", cfg.Payments.CountryCode, cfg.Payments.CurrencyCode)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvPlatformFeePercentage, "3.5")
	t.Setenv(EnvPollIntervalMS, "250")
	t.Setenv(EnvCountryCode, "ke")
	t.Setenv(EnvAPIBaseURL, "https://api.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Payments.PlatformFeePercentage.String() != "3.5" {
		t.Fatalf("expected fee 3.5, got %s", cfg.Payments.PlatformFeePercentage)
	}
	if got := cfg.Payments.PollInterval(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	if cfg.Payments.CountryCode != "KE" {
		t.Fatalf("expected normalized country, got %q", cfg.Payments.CountryCode)
	}
	if cfg.Payments.APIBaseURL != "https://api.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Payments.APIBaseURL)
	}
}

func TestLoad_RejectsInvalidPayments(t *testing.T) {
	cases := map[string][2]string{
		"fee above 100": {EnvPlatformFeePercentage, "101"},
		"negative fee":  {EnvPlatformFeePercentage, "-1"},
		"zero min":      {EnvMinPaymentAmount, "0"},
		"min above max": {EnvMinPaymentAmount, "2000000"},
		"zero poll":     {EnvPollIntervalMS, "0"},
		"bad currency":  {EnvCurrencyCode, "ZK"},
		"zero timeout":  {EnvPendingTimeoutMS, "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}
}
