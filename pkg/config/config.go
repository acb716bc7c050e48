package config

import (
	"time"

	"github.com/seu-repo/ai-maga/internal/adapter/ai/openai"
	"github.com/seu-repo/ai-maga/internal/adapter/ai/yandexgpt"
	"github.com/seu-repo/ai-maga/internal/adapter/external/hh"
	"github.com/seu-repo/ai-maga/internal/adapter/external/scheduler"
	"github.com/seu-repo/ai-maga/internal/adapter/external/yandex"
	"github.com/seu-repo/ai-maga/internal/adapter/queue"
	"github.com/seu-repo/ai-maga/internal/adapter/ratelimit"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/ai-maga/internal/observability/telemetry"
	"github.com/seu-repo/ai-maga/internal/service/auth"
	"github.com/seu-repo/ai-maga/internal/service/nlu"
	"github.com/seu-repo/ai-maga/internal/service/orchestrator"
)

// Config is the full service configuration.
type Config struct {
	App            AppConfig                         `mapstructure:"app"`
	HTTP           HTTPConfig                        `mapstructure:"http"`
	Logging        LoggingConfig                     `mapstructure:"logging"`
	Redis          RedisConfig                       `mapstructure:"redis"`
	Queue          queue.Config                      `mapstructure:"queue"`
	JWT            auth.JWTConfig                    `mapstructure:"jwt"`
	Auth           auth.RBACConfig                   `mapstructure:"auth"`
	NLU            nlu.Config                        `mapstructure:"nlu"`
	Orchestrator   orchestrator.Config               `mapstructure:"orchestrator"`
	RateLimiting   RateLimitingConfig                `mapstructure:"rate_limiting"`
	CircuitBreaker circuitbreaker.Settings           `mapstructure:"circuit_breaker"`
	HTTPClient     circuitbreaker.HTTPClientSettings `mapstructure:"http_client"`
	LLM            LLMConfig                         `mapstructure:"llm"`
	YandexGPT      yandexgpt.Config                  `mapstructure:"yandexgpt"`
	OpenAI         openai.Config                     `mapstructure:"openai"`
	Yandex         yandex.Config                     `mapstructure:"yandex"`
	HH             hh.Config                         `mapstructure:"hh"`
	Device         DeviceConfig                      `mapstructure:"device"`
	Scheduler      scheduler.Config                  `mapstructure:"scheduler"`
	Vault          VaultConfig                       `mapstructure:"vault"`
	OpenTelemetry  telemetry.TracingConfig           `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig                  `mapstructure:"prometheus"`
	CORS           CORSConfig                        `mapstructure:"cors"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type LoggingConfig struct {
	Level    string          `mapstructure:"level"`
	Format   string          `mapstructure:"format"`
	Output   string          `mapstructure:"output"`
	Sampling LoggingSampling `mapstructure:"sampling"`
}

type LoggingSampling struct {
	Enabled    bool `mapstructure:"enabled"`
	Initial    int  `mapstructure:"initial"`
	Thereafter int  `mapstructure:"thereafter"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RateLimitingConfig selects the limiter backend. Policies override the defaults per group.
type RateLimitingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "redis" or "memory". Redis falls back to memory on errors.
	Backend         string             `mapstructure:"backend"`
	CleanupInterval time.Duration      `mapstructure:"cleanup_interval"`
	Policies        ratelimit.Policies `mapstructure:"policies"`
}

type LLMConfig struct {
	// Provider is "yandexgpt" or "openai".
	Provider string `mapstructure:"provider"`
}

type DeviceConfig struct {
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// VaultConfig enables reading secrets from Vault at startup.
type VaultConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	// Path is a KV v2 data path, e.g. "secret/data/ai-maga".
	Path string `mapstructure:"path"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}
