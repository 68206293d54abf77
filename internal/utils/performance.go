package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Slow-operation thresholds for OperationTimer.
const (
	slowOperation     = 10 * time.Second
	verySlowOperation = 30 * time.Second
)

// OperationTimer provides a defer-friendly way to measure operation duration.
// The returned func logs and returns the elapsed time.
//
// Usage:
//
//	func MyFunction() {
//	    defer utils.OperationTimer("my_function", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() time.Duration {
	start := time.Now()

	return func() time.Duration {
		duration := time.Since(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		switch {
		case duration > verySlowOperation:
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected (>30s)")
		case duration > slowOperation:
			log.Info().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Operation took longer than expected (>10s)")
		}

		return duration
	}
}
