package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seu-repo/ai-maga/internal/adapter/vault"
)

const vaultTimeout = 5 * time.Second

// secretKeys are the config keys a Vault secret may override. Vault fields use
// the underscore form, e.g. "yandex_api_key".
var secretKeys = []string{
	"jwt.secret",
	"redis.url",
	"queue.nats_url",
	"queue.rabbitmq_url",
	"yandex.api_key",
	"yandex.iam_token",
	"yandexgpt.api_key",
	"yandexgpt.iam_token",
	"openai.api_key",
	"hh.token",
}

// Load reads config.yaml from ./configs, . or /app/configs, applies APP_* overrides and the
// optional Vault overlay, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.AddConfigPath("/app/configs")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	v.RegisterAlias("translation.default_lang", "orchestrator.default_translate_lang")

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	_ = v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	_ = v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	_ = v.BindEnv("queue.nats_url", "NATS_URL", "APP_QUEUE_NATS_URL")
	_ = v.BindEnv("queue.rabbitmq_url", "RABBITMQ_URL", "APP_QUEUE_RABBITMQ_URL")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET", "APP_JWT_SECRET")
	_ = v.BindEnv("yandex.api_key", "YANDEX_API_KEY", "APP_YANDEX_API_KEY")
	_ = v.BindEnv("yandex.folder_id", "YANDEX_FOLDER_ID", "APP_YANDEX_FOLDER_ID")
	_ = v.BindEnv("yandexgpt.api_key", "YANDEX_API_KEY", "APP_YANDEXGPT_API_KEY")
	_ = v.BindEnv("yandexgpt.folder_id", "YANDEX_FOLDER_ID", "APP_YANDEXGPT_FOLDER_ID")
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY", "APP_OPENAI_API_KEY")
	_ = v.BindEnv("hh.token", "HH_TOKEN", "APP_HH_TOKEN")
	_ = v.BindEnv("vault.address", "VAULT_ADDR", "APP_VAULT_ADDRESS")
	_ = v.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Vault.Enabled {
		if err := overlayVault(v, cfg.Vault); err != nil {
			return nil, err
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overlayVault(v *viper.Viper, cfg VaultConfig) error {
	sm, err := vault.NewSecretManager(cfg.Address, cfg.Token)
	if err != nil {
		return fmt.Errorf("vault client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), vaultTimeout)
	defer cancel()

	secrets, err := sm.ReadSecrets(ctx, cfg.Path)
	if err != nil {
		return fmt.Errorf("read vault secrets: %w", err)
	}
	applySecrets(v, secrets)
	return nil
}

// applySecrets sets every known secret key present in secrets. Empty values
// are ignored so a half-filled secret does not blank out env configuration.
func applySecrets(v *viper.Viper, secrets map[string]string) {
	for _, key := range secretKeys {
		if val := secrets[strings.ReplaceAll(key, ".", "_")]; val != "" {
			v.Set(key, val)
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ai-maga")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 120*time.Second)
	v.SetDefault("http.body_limit", 8*1024*1024)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.sampling.enabled", false)
	v.SetDefault("logging.sampling.initial", 100)
	v.SetDefault("logging.sampling.thereafter", 100)

	v.SetDefault("redis.url", "")

	v.SetDefault("queue.driver", "nats")
	v.SetDefault("queue.nats_url", "nats://localhost:4222")
	v.SetDefault("queue.rabbitmq_url", "")
	v.SetDefault("queue.subject_prefix", "maga")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "ai-maga")
	v.SetDefault("jwt.token_ttl", 24*time.Hour)

	v.SetDefault("auth.allowed_users", []string{})
	v.SetDefault("auth.default_role", "user")

	v.SetDefault("nlu.confidence_threshold", 0.5)
	v.SetDefault("nlu.llm_timeout", 10*time.Second)

	v.SetDefault("orchestrator.max_steps", 6)
	v.SetDefault("orchestrator.time_budget", 15*time.Second)
	v.SetDefault("orchestrator.plan_retention", 10*time.Minute)
	v.SetDefault("orchestrator.cleanup_interval", time.Minute)
	v.SetDefault("orchestrator.default_translate_lang", "en")

	v.SetDefault("rate_limiting.enabled", true)
	v.SetDefault("rate_limiting.backend", "redis")
	v.SetDefault("rate_limiting.cleanup_interval", 5*time.Minute)

	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.failure_threshold", 5)

	v.SetDefault("http_client.timeout", 10*time.Second)
	v.SetDefault("http_client.retry_max", 2)
	v.SetDefault("http_client.retry_wait_min", 200*time.Millisecond)
	v.SetDefault("http_client.retry_wait_max", 2*time.Second)

	v.SetDefault("llm.provider", "yandexgpt")
	v.SetDefault("yandexgpt.endpoint", "")
	v.SetDefault("yandexgpt.folder_id", "")
	v.SetDefault("yandexgpt.model", "yandexgpt-lite/latest")
	v.SetDefault("yandexgpt.api_key", "")
	v.SetDefault("yandexgpt.iam_token", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.requests_per_second", 0)

	v.SetDefault("yandex.folder_id", "")
	v.SetDefault("yandex.api_key", "")
	v.SetDefault("yandex.iam_token", "")
	v.SetDefault("yandex.voice", "ermil")
	v.SetDefault("yandex.voice_en", "john")
	v.SetDefault("yandex.audio_format", "oggopus")

	v.SetDefault("hh.base_url", "https://api.hh.ru")
	v.SetDefault("hh.token", "")
	v.SetDefault("hh.default_area", 1)
	v.SetDefault("hh.per_page", 10)
	v.SetDefault("hh.user_agent", "ai-maga/0.1")

	v.SetDefault("device.subject_prefix", "maga.device")
	v.SetDefault("scheduler.subject_prefix", "maga")
	v.SetDefault("scheduler.timezone", "Europe/Moscow")

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "http://127.0.0.1:8200")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.path", "secret/data/ai-maga")

	v.SetDefault("opentelemetry.enabled", false)
	v.SetDefault("opentelemetry.service_name", "ai-maga")
	v.SetDefault("opentelemetry.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("opentelemetry.sample_ratio", 1.0)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Validate rejects values the services would silently clamp or misbehave on.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if t := c.NLU.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("nlu.confidence_threshold %.2f not in [0,1]", t))
	}
	if c.NLU.LLMTimeout < 0 {
		errs = append(errs, errors.New("nlu.llm_timeout must not be negative"))
	}
	if c.Orchestrator.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.max_steps %d must be at least 1", c.Orchestrator.MaxSteps))
	}
	if c.Orchestrator.TimeBudget <= 0 {
		errs = append(errs, errors.New("orchestrator.time_budget must be positive"))
	}
	switch c.RateLimiting.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("rate_limiting.backend %q is not redis or memory", c.RateLimiting.Backend))
	}
	switch c.LLM.Provider {
	case "yandexgpt", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not yandexgpt or openai", c.LLM.Provider))
	}
	switch c.Queue.Driver {
	case "nats", "rabbitmq":
	default:
		errs = append(errs, fmt.Errorf("queue.driver %q is not nats or rabbitmq", c.Queue.Driver))
	}

	return errors.Join(errs...)
}
