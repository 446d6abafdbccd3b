// Package logging builds the zap loggers used by the service and the CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is shared by every logger New returns so verbosity can be changed
// at runtime.
var Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// New returns a JSON production logger at the given level ("debug", "info",
// "warn", "error"). An empty level keeps the current one.
func New(level string) (*zap.Logger, error) {
	if level != "" {
		if err := SetLevel(level); err != nil {
			return nil, err
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = Level
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build(zap.AddCaller())
}

// NewConsole returns a human readable logger for command line use.
func NewConsole(level string) (*zap.Logger, error) {
	if level != "" {
		if err := SetLevel(level); err != nil {
			return nil, err
		}
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = Level
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func SetLevel(level string) error {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	Level.SetLevel(l)
	return nil
}
