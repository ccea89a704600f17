package worker

import (
	"time"

	"github.com/okian/repsense/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithSinkTimeout bounds each sink call.
func WithSinkTimeout(d time.Duration) Option {
	return func(w *Dispatcher) {
		if d > 0 {
			w.sinkTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(logger logger.Logger) Option {
	return func(w *Dispatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}
