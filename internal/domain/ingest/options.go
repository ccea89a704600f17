package ingest

import (
	"time"

	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
)

// Default synchronizer configuration.
const (
	DefaultCapacity = 8
	DefaultMaxSkew  = 50 * time.Millisecond
)

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithCapacity sets the per-source ring capacity.
func WithCapacity(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithMaxSkew sets how far behind a tick a sample may be and still be used.
func WithMaxSkew(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.maxSkew = d
		}
	}
}

// WithSources restricts ingestion to the given sources for the session.
func WithSources(set model.SourceSet) Option {
	return func(s *Synchronizer) { s.enabled = set }
}

// WithLogger sets the synchronizer logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}
