package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level   string
	Outputs []string
}

// New builds a JSON logger writing to the configured outputs
func New(c Config) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Encoding = "json"
	cfg.Level = zap.NewAtomicLevelAt(level)
	if len(c.Outputs) > 0 {
		cfg.OutputPaths = c.Outputs
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return base.Sugar(), nil
}

// Nop returns a logger that discards everything
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
