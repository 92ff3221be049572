package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Breaker.FailureThreshold != 5 || cfg.Breaker.SuccessThreshold != 3 {
		t.Errorf("unexpected breaker thresholds %d/%d", cfg.Breaker.FailureThreshold, cfg.Breaker.SuccessThreshold)
	}
	if cfg.Breaker.RecoveryTimeout != 60*time.Second {
		t.Errorf("expected recovery timeout 60s, got %v", cfg.Breaker.RecoveryTimeout)
	}
	if cfg.Supervisor.MaxRetries != 3 || cfg.Supervisor.InitialBackoff != time.Second {
		t.Errorf("unexpected supervisor retry defaults %d/%v", cfg.Supervisor.MaxRetries, cfg.Supervisor.InitialBackoff)
	}
	if cfg.Supervisor.CallTimeout != 15*time.Second {
		t.Errorf("expected call timeout 15s, got %v", cfg.Supervisor.CallTimeout)
	}
	if cfg.Memory.ConsolidationThreshold != 5 {
		t.Errorf("expected consolidation threshold 5, got %d", cfg.Memory.ConsolidationThreshold)
	}
	if cfg.Memory.ShortTermTTL != 7*24*time.Hour || cfg.Memory.LongTermTTL != 90*24*time.Hour || cfg.Memory.ArchivedTTL != 365*24*time.Hour {
		t.Errorf("unexpected memory TTLs %v/%v/%v", cfg.Memory.ShortTermTTL, cfg.Memory.LongTermTTL, cfg.Memory.ArchivedTTL)
	}
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "assistant.yaml")

	content := `
server:
  port: "9090"
breaker:
  failure_threshold: 2
  recovery_timeout: 5s
stream:
  chunk_delay: 0s
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Breaker.FailureThreshold != 2 {
		t.Errorf("expected failure threshold 2, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.RecoveryTimeout != 5*time.Second {
		t.Errorf("expected recovery timeout 5s, got %v", cfg.Breaker.RecoveryTimeout)
	}
	if cfg.Stream.ChunkDelay != 0 {
		t.Errorf("expected zero chunk delay, got %v", cfg.Stream.ChunkDelay)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.Breaker.SuccessThreshold != 3 {
		t.Errorf("expected default success threshold, got %d", cfg.Breaker.SuccessThreshold)
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/assistant.yaml"); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port, got %s", cfg.Server.Port)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ASSISTANT_PORT", "7070")
	t.Setenv("LITELLM_URL", "http://litellm:4000")
	t.Setenv("ASSISTANT_BREAKER_FAILURE_THRESHOLD", "7")
	t.Setenv("ASSISTANT_SUPERVISOR_BACKOFF", "250ms")
	t.Setenv("ASSISTANT_MEMORY_SEMANTIC", "true")
	t.Setenv("ASSISTANT_CACHE_L1_SIZE_MB", "128")
	t.Setenv("ASSISTANT_NOTIFY_EVENTS", "booking_created, order_created ,")
	t.Setenv("ASSISTANT_PG_MAX_CONNS", "not-a-number")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.LiteLLM.URL != "http://litellm:4000" {
		t.Errorf("expected litellm url override, got %s", cfg.LiteLLM.URL)
	}
	if cfg.Breaker.FailureThreshold != 7 {
		t.Errorf("expected failure threshold 7, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Supervisor.InitialBackoff != 250*time.Millisecond {
		t.Errorf("expected backoff 250ms, got %v", cfg.Supervisor.InitialBackoff)
	}
	if !cfg.Memory.SemanticEnabled {
		t.Error("expected semantic memory enabled")
	}
	if cfg.Cache.L1MaxSizeMB != 128 {
		t.Errorf("expected l1 size 128, got %d", cfg.Cache.L1MaxSizeMB)
	}
	if strings.Join(cfg.Notify.Events, "|") != "booking_created|order_created" {
		t.Errorf("unexpected events %v", cfg.Notify.Events)
	}
	// Invalid values are ignored.
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected default max_conns on invalid env, got %d", cfg.Postgres.MaxConns)
	}
}

func TestLoadFromDotenv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("ASSISTANT_LLM_MODEL=groq/llama-3.1-8b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("ASSISTANT_LLM_MODEL") })

	cfg, err := LoadFrom(filepath.Join(dir, "missing.yaml"), envPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.LiteLLM.Model != "groq/llama-3.1-8b" {
		t.Errorf("expected model from dotenv, got %s", cfg.LiteLLM.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server.port is required"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres"; c.Postgres.DSN = "" }, "postgres.dsn is required"},
		{"zero failure threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }, "breaker.failure_threshold"},
		{"zero success threshold", func(c *Config) { c.Breaker.SuccessThreshold = 0 }, "breaker.success_threshold"},
		{"zero recovery timeout", func(c *Config) { c.Breaker.RecoveryTimeout = 0 }, "breaker.recovery_timeout"},
		{"negative retries", func(c *Config) { c.Supervisor.MaxRetries = -1 }, "supervisor.max_retries"},
		{"tiny consolidation", func(c *Config) { c.Memory.ConsolidationThreshold = 1 }, "memory.consolidation_threshold"},
		{"unknown l2", func(c *Config) { c.Cache.L2 = "memcached" }, "cache.l2"},
		{"redis l2 without url", func(c *Config) { c.Cache.L2 = "redis" }, "redis.url is required"},
		{"nats l2 without url", func(c *Config) { c.Cache.L2 = "nats" }, "nats.url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
