package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Name != "marketguard" {
		t.Errorf("expected default name marketguard, got %q", cfg.Name)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected default environment development, got %q", cfg.Environment)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Exchange.BaseURL != "https://whitebit.com" {
		t.Errorf("expected default base URL, got %q", cfg.Exchange.BaseURL)
	}
	if len(cfg.RateLimits) == 0 {
		t.Error("expected default rate limits")
	}
}

func TestConfig_DefaultRateLimits(t *testing.T) {
	limits := DefaultRateLimits()

	public, ok := limits["public"]
	if !ok {
		t.Fatal("expected public endpoint")
	}
	if public[0].MaxRequests != 100 || public[0].PeriodSeconds != 10 {
		t.Errorf("expected 100 per 10s, got %d per %vs", public[0].MaxRequests, public[0].PeriodSeconds)
	}
	if _, ok := limits["get_orderbook"]; !ok {
		t.Error("expected get_orderbook endpoint")
	}
	if _, ok := limits["get_recent_trades"]; !ok {
		t.Error("expected get_recent_trades endpoint")
	}
}

func TestRuleConfig_Period(t *testing.T) {
	r := RuleConfig{MaxRequests: 10, PeriodSeconds: 0.5}
	if got := r.Period(); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
}

func TestConfig_ValidateRejectsBadEnvironment(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Environment = "qa"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown environment")
	}
}

func TestConfig_ValidateRejectsBadRule(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.RateLimits = map[string][]RuleConfig{
		"public": {{MaxRequests: 0, PeriodSeconds: 10}},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero max_requests")
	}
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
name: testguard
environment: staging
server:
  port: 9090
rate_limits:
  public:
    - max_requests: 42
      period_seconds: 5
operations:
  get_orderbook:
    ttl_seconds: 2
    single_flight: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg Config
	if err := Load(&cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}

	if cfg.Name != "testguard" {
		t.Errorf("expected name testguard, got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment staging, got %q", cfg.Environment)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.RateLimits["public"][0].MaxRequests != 42 {
		t.Errorf("expected public cap 42, got %d", cfg.RateLimits["public"][0].MaxRequests)
	}

	op, ok := cfg.Operations["get_orderbook"]
	if !ok {
		t.Fatal("expected get_orderbook override")
	}
	if op.TTLSeconds != 2 {
		t.Errorf("expected ttl override 2, got %v", op.TTLSeconds)
	}
	if op.SingleFlight == nil || !*op.SingleFlight {
		t.Error("expected single_flight override true")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	var cfg Config
	if err := Load(&cfg, WithConfigFile(filepath.Join(t.TempDir(), "absent.yml"))); err != nil {
		t.Fatalf("expected defaults without config file, got %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MARKETGUARD_SERVER_PORT", "7070")

	var cfg Config
	if err := Load(&cfg, WithConfigFile(filepath.Join(t.TempDir(), "absent.yml"))); err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected env override 7070, got %d", cfg.Server.Port)
	}
}
