package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/seu-repo/ai-maga/pkg/config"
)

func TestNew_Level(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "warn", Format: "json", Output: "stderr"}, "production")
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, "production")
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Format: "xml"}, "production")
	assert.Error(t, err)
}

func TestNew_DevelopmentDefaults(t *testing.T) {
	log, err := New(config.LoggingConfig{Output: "stderr"}, "development")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}
