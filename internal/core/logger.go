package core

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init initializes zap's global logger
// After calling this, we use zap.L() directly.
func Init(pretty bool) error {
	var config zap.Config

	if pretty {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// LogDispatch logs one dispatched command using zap's global logger
func LogDispatch(kind string, duration float64, responded bool) {
	zap.L().Debug("Dispatched command",
		zap.String("kind", kind),
		zap.Float64("duration_seconds", duration),
		zap.Bool("responded", responded))
}

// LogPanicRecovery logs a panic recovered at a fault boundary
func LogPanicRecovery(component string, recovered any) {
	zap.L().Error("Recovered from panic",
		zap.String("component", component),
		zap.Any("panic", recovered))
}

// LogDeferredError logs an error returned from a deferred cleanup call.
// Useful for defer conn.Close() style cleanups where the error matters
// but cannot change control flow.
func LogDeferredError(fn func() error) {
	if err := fn(); err != nil {
		zap.L().Warn("Deferred cleanup failed", zap.Error(err))
	}
}
