package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the process logger for the given environment.
// Production environments get JSON output at INFO; everything else gets
// console output at DEBUG.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "production", "staging":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
