// Package logging builds the zap loggers shared by the command-line tools.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envLevel = "KVCACHE_LOG_LEVEL"

// New returns a production JSON logger on stderr. verbose lowers the level to
// debug; KVCACHE_LOG_LEVEL, when set, takes precedence over both.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if raw := strings.TrimSpace(os.Getenv(envLevel)); raw != "" {
		level, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("logging: invalid %s: %w", envLevel, err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}
	return config.Build()
}
