// Package obslog constructs the single zap logger shared across
// stratloop's components, the way the rest of the retrieval pack wires
// structured logging at startup and passes it down by construction.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style console logger. verbose raises the level
// to debug; otherwise info and above are emitted.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// Noop returns a logger that discards everything, for tests and fakes.
func Noop() *zap.Logger {
	return zap.NewNop()
}
