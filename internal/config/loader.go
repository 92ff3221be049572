package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "assistant.yaml"

// DefaultEnvFile is the optional dotenv file loaded before the environment overlay.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; missing files are not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile, DefaultEnvFile)
}

// LoadFrom returns a Config loaded from the given YAML and dotenv paths using
// the hierarchy: defaults < YAML < dotenv < ENV.
func LoadFrom(yamlPath, envPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadDotenv(envPath); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadDotenv populates the process environment from a dotenv file.
// Variables already present in the environment win.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "ASSISTANT_PORT")
	setString(&cfg.Server.CORSOrigin, "ASSISTANT_CORS_ORIGIN")
	setFloat(&cfg.Server.RateLimitRPS, "ASSISTANT_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "ASSISTANT_RATE_LIMIT_BURST")
	setDuration(&cfg.Server.IdempotencyTTL, "ASSISTANT_IDEMPOTENCY_TTL")
	setString(&cfg.Store.Driver, "ASSISTANT_STORE_DRIVER")
	setBool(&cfg.Store.Seed, "ASSISTANT_STORE_SEED")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ASSISTANT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ASSISTANT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "ASSISTANT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "ASSISTANT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "ASSISTANT_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "ASSISTANT_LLM_MODEL")
	setString(&cfg.LiteLLM.EmbeddingModel, "ASSISTANT_EMBEDDING_MODEL")
	setDuration(&cfg.LiteLLM.Timeout, "ASSISTANT_LLM_TIMEOUT")
	setString(&cfg.Logging.Level, "ASSISTANT_LOG_LEVEL")
	setString(&cfg.Logging.Format, "ASSISTANT_LOG_FORMAT")
	setString(&cfg.Logging.Service, "ASSISTANT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "ASSISTANT_LOG_ASYNC")

	// Breaker + supervisor
	setInt(&cfg.Breaker.FailureThreshold, "ASSISTANT_BREAKER_FAILURE_THRESHOLD")
	setInt(&cfg.Breaker.SuccessThreshold, "ASSISTANT_BREAKER_SUCCESS_THRESHOLD")
	setDuration(&cfg.Breaker.RecoveryTimeout, "ASSISTANT_BREAKER_RECOVERY_TIMEOUT")
	setInt(&cfg.Supervisor.MaxRetries, "ASSISTANT_SUPERVISOR_MAX_RETRIES")
	setDuration(&cfg.Supervisor.InitialBackoff, "ASSISTANT_SUPERVISOR_BACKOFF")
	setDuration(&cfg.Supervisor.CallTimeout, "ASSISTANT_SUPERVISOR_CALL_TIMEOUT")
	setDuration(&cfg.Supervisor.RecoveryWindow, "ASSISTANT_SUPERVISOR_RECOVERY_WINDOW")

	// Memory
	setDuration(&cfg.Memory.ShortTermTTL, "ASSISTANT_MEMORY_SHORT_TTL")
	setDuration(&cfg.Memory.LongTermTTL, "ASSISTANT_MEMORY_LONG_TTL")
	setDuration(&cfg.Memory.ArchivedTTL, "ASSISTANT_MEMORY_ARCHIVED_TTL")
	setInt(&cfg.Memory.ConsolidationThreshold, "ASSISTANT_MEMORY_CONSOLIDATION_THRESHOLD")
	setBool(&cfg.Memory.SemanticEnabled, "ASSISTANT_MEMORY_SEMANTIC")
	setDuration(&cfg.Memory.JanitorInterval, "ASSISTANT_MEMORY_JANITOR_INTERVAL")

	// Stream
	setInt(&cfg.Stream.ChunkWords, "ASSISTANT_STREAM_CHUNK_WORDS")
	setDuration(&cfg.Stream.ChunkDelay, "ASSISTANT_STREAM_CHUNK_DELAY")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "ASSISTANT_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2, "ASSISTANT_CACHE_L2")
	setString(&cfg.Cache.L2Bucket, "ASSISTANT_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.CatalogTTL, "ASSISTANT_CACHE_CATALOG_TTL")
	setDuration(&cfg.Cache.SessionTTL, "ASSISTANT_CACHE_SESSION_TTL")

	// Notify
	setString(&cfg.Notify.WebhookURL, "ASSISTANT_WEBHOOK_URL")
	setString(&cfg.Notify.WebhookSecret, "ASSISTANT_WEBHOOK_SECRET")
	setString(&cfg.Notify.SlackWebhookURL, "ASSISTANT_SLACK_WEBHOOK_URL")
	setString(&cfg.Notify.DiscordWebhookURL, "ASSISTANT_DISCORD_WEBHOOK_URL")
	setString(&cfg.Notify.ChatUsername, "ASSISTANT_NOTIFY_USERNAME")
	setList(&cfg.Notify.Events, "ASSISTANT_NOTIFY_EVENTS")
	setInt(&cfg.Notify.MaxInFlight, "ASSISTANT_NOTIFY_MAX_IN_FLIGHT")

	// Telemetry + MCP
	setBool(&cfg.OTEL.Enabled, "ASSISTANT_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.MCP.Enabled, "ASSISTANT_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "ASSISTANT_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "ASSISTANT_MCP_API_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Driver {
	case "memory":
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("store.driver must be memory or postgres, got %q", cfg.Store.Driver)
	}
	if cfg.Breaker.FailureThreshold < 1 {
		return errors.New("breaker.failure_threshold must be >= 1")
	}
	if cfg.Breaker.SuccessThreshold < 1 {
		return errors.New("breaker.success_threshold must be >= 1")
	}
	if cfg.Breaker.RecoveryTimeout <= 0 {
		return errors.New("breaker.recovery_timeout must be positive")
	}
	if cfg.Supervisor.MaxRetries < 0 {
		return errors.New("supervisor.max_retries must be >= 0")
	}
	if cfg.Memory.ConsolidationThreshold < 2 {
		return errors.New("memory.consolidation_threshold must be >= 2")
	}
	switch cfg.Cache.L2 {
	case "", "redis", "nats":
	default:
		return fmt.Errorf("cache.l2 must be redis, nats or empty, got %q", cfg.Cache.L2)
	}
	if cfg.Cache.L2 == "redis" && cfg.Redis.URL == "" {
		return errors.New("redis.url is required when cache.l2 is redis")
	}
	if cfg.Cache.L2 == "nats" && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when cache.l2 is nats")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
