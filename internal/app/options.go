package service

import (
	"time"

	"github.com/okian/repsense/internal/adapters/mq/worker"
	"github.com/okian/repsense/internal/config"
	"github.com/okian/repsense/internal/domain/capability"
	"github.com/okian/repsense/internal/domain/cue"
	"github.com/okian/repsense/internal/domain/telemetry"
	"github.com/okian/repsense/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConfig applies every tunable from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = *cfg
		}
	}
}

// WithProber sets the capability prober consulted at each Start.
func WithProber(p capability.Prober) Option {
	return func(s *Service) { s.prober = p }
}

// WithSink adds a named cue sink. Sinks are called off the tick path in the
// order they were added.
func WithSink(name string, sink cue.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, worker.Sink{Name: name, Sink: sink})
		}
	}
}

// WithPublisher sets the companion telemetry publisher.
func WithPublisher(p telemetry.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithPublishTimeout bounds each telemetry publish made from the tick.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithRules replaces the exercise's rule set.
func WithRules(rules []cue.Rule) Option {
	return func(s *Service) { s.rules = rules }
}

// WithManualTicks disables the internal ticker; callers drive Tick.
func WithManualTicks() Option {
	return func(s *Service) { s.manual = true }
}

// WithClock replaces the wall clock used for session-relative tick times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
