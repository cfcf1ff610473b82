package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		HTTP:    HTTPConfig{Port: 8080},
		Backend: BackendConfig{BaseURL: "http://localhost:9200/esre"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_Backend(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr string
	}{
		{"missing", "", "backend.base_url is required"},
		{"relative", "/esre", "must be an absolute URL"},
		{"no host", "http://", "must be an absolute URL"},
		{"ok", "https://esre.internal", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Backend.BaseURL = tt.baseURL

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CacheRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled cache without addrs")
	}

	cfg.Cache.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_JudgeRequiresKey(t *testing.T) {
	cfg := validConfig()
	cfg.Judge.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled judge without api key")
	}
}

func TestValidate_JudgeBudget(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*JudgeConfig)
		wantErr bool
	}{
		{"warn", func(j *JudgeConfig) { j.BudgetAction = "warn" }, false},
		{"reject", func(j *JudgeConfig) { j.BudgetAction = "reject" }, false},
		{"unknown action", func(j *JudgeConfig) { j.BudgetAction = "drop" }, true},
		{"negative daily", func(j *JudgeConfig) { j.DailyTokenLimit = -1 }, true},
		{"negative monthly", func(j *JudgeConfig) { j.MonthlyTokenLimit = -5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg.Judge)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Backend.Timeout() != 4*time.Second {
		t.Errorf("expected backend timeout 4s, got %s", cfg.Backend.Timeout())
	}
	if cfg.Cache.TTL() != 5*time.Minute {
		t.Errorf("expected cache TTL 5m, got %s", cfg.Cache.TTL())
	}
	if cfg.Cache.KeyPrefix != "esre-console:" {
		t.Errorf("expected KeyPrefix='esre-console:', got %q", cfg.Cache.KeyPrefix)
	}
	if cfg.Judge.BudgetAction != "warn" {
		t.Errorf("expected budget action warn, got %q", cfg.Judge.BudgetAction)
	}
	if cfg.Judge.Concurrency != 4 {
		t.Errorf("expected judge concurrency 4, got %d", cfg.Judge.Concurrency)
	}
	if cfg.Judge.RatePerSec != 2 {
		t.Errorf("expected judge rate 2/s, got %v", cfg.Judge.RatePerSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Backend: BackendConfig{TimeoutMS: 1500},
		Cache:   CacheConfig{KeyPrefix: "custom:", TTLSec: 60},
		Judge:   JudgeConfig{Model: "local-llm", Concurrency: 1},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Backend.TimeoutMS != 1500 {
		t.Errorf("expected TimeoutMS=1500, got %d", cfg.Backend.TimeoutMS)
	}
	if cfg.Cache.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Cache.KeyPrefix)
	}
	if cfg.Judge.Model != "local-llm" || cfg.Judge.Concurrency != 1 {
		t.Errorf("judge overridden: %+v", cfg.Judge)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("ESRE_TEST_BACKEND", "http://backend:8080")
	t.Setenv("ESRE_TEST_EMPTY", "")

	data := []byte(`
http:
  port: ${ESRE_TEST_PORT:-8090}
backend:
  base_url: ${ESRE_TEST_BACKEND}
  api_key: ${ESRE_TEST_EMPTY:-fallback}
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 8090 {
		t.Errorf("port = %d, want 8090", cfg.HTTP.Port)
	}
	if cfg.Backend.BaseURL != "http://backend:8080" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.APIKey != "fallback" {
		t.Errorf("api_key = %q, want fallback", cfg.Backend.APIKey)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("http:\n  port: 8080\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoad_Local(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.HTTP.Port == 0 || cfg.Backend.BaseURL == "" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load("does-not-exist"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
