// Package picolog wraps the teacher's zap-sugared-logger convention
// (cmd/server/main.go, threaded as Logger *zap.SugaredLogger through
// every internal/* component) with a nil-safe default so library code
// never has to guard a caller who passed no logger at all.
package picolog

import "go.uber.org/zap"

// New builds a production zap.SugaredLogger, matching the teacher's
// cmd/server/main.go bootstrap (zap.NewProduction().Sugar()).
func New() (*zap.SugaredLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, for callers (tests,
// library consumers with no logging opinion) that don't want to set
// one up.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// OrNop returns logger unchanged if non-nil, else a Nop logger. Every
// package in this module that accepts a *zap.SugaredLogger runs its
// constructor argument through this so "logger: nil" is always safe.
func OrNop(logger *zap.SugaredLogger) *zap.SugaredLogger {
	if logger == nil {
		return Nop()
	}
	return logger
}
