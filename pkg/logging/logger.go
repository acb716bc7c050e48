package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seu-repo/ai-maga/pkg/config"
)

// New builds the process logger. Development environments get the console
// encoder and stack traces on warnings.
func New(cfg config.LoggingConfig, environment string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if environment == "development" {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	switch cfg.Format {
	case "":
	case "json", "console":
		zcfg.Encoding = cfg.Format
	default:
		return nil, fmt.Errorf("logging.format %q is not json or console", cfg.Format)
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Output != "" {
		zcfg.OutputPaths = []string{cfg.Output}
	}

	zcfg.Sampling = nil
	if cfg.Sampling.Enabled {
		zcfg.Sampling = &zap.SamplingConfig{
			Initial:    cfg.Sampling.Initial,
			Thereafter: cfg.Sampling.Thereafter,
		}
	}

	return zcfg.Build()
}
