// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// New returns a development logger writing to stdout when debug is set, a
// production JSON logger otherwise.
func New(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stdout"}
		logger, err = cfg.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

// DebugFromEnv reads LOG_DEBUG; "1" and "true" enable debug output.
func DebugFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_DEBUG"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// OrNop returns l, or a logger that discards everything when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
