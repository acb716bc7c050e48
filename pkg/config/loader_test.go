package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 0.5, cfg.NLU.ConfidenceThreshold)
	assert.Equal(t, 10*time.Second, cfg.NLU.LLMTimeout)
	assert.Equal(t, 6, cfg.Orchestrator.MaxSteps)
	assert.Equal(t, 15*time.Second, cfg.Orchestrator.TimeBudget)
	assert.Equal(t, "en", cfg.Orchestrator.DefaultTranslateLang)
	assert.Equal(t, "redis", cfg.RateLimiting.Backend)
	assert.Equal(t, uint32(5), cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, "nats", cfg.Queue.Driver)
	assert.Equal(t, "https://api.hh.ru", cfg.HH.BaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ORCHESTRATOR_MAX_STEPS", "3")
	t.Setenv("APP_ORCHESTRATOR_TIME_BUDGET", "800ms")
	t.Setenv("APP_NLU_CONFIDENCE_THRESHOLD", "0.7")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("APP_AUTH_ALLOWED_USERS", "42,43")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Orchestrator.MaxSteps)
	assert.Equal(t, 800*time.Millisecond, cfg.Orchestrator.TimeBudget)
	assert.Equal(t, 0.7, cfg.NLU.ConfidenceThreshold)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, []string{"42", "43"}, cfg.Auth.AllowedUsers)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("APP_NLU_CONFIDENCE_THRESHOLD", "1.5")
	t.Setenv("APP_RATE_LIMITING_BACKEND", "memcached")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nlu.confidence_threshold")
	assert.Contains(t, err.Error(), "rate_limiting.backend")
}

func TestApplySecrets(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "env")
	v.Set("openai.api_key", "env-key")

	applySecrets(v, map[string]string{
		"jwt_secret":     "vault",
		"openai_api_key": "",
		"unrelated":      "x",
	})

	assert.Equal(t, "vault", v.GetString("jwt.secret"))
	assert.Equal(t, "env-key", v.GetString("openai.api_key"), "empty secrets do not override")
	assert.False(t, v.IsSet("unrelated"))
}
