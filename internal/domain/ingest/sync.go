// Package ingest buffers asynchronous sensor samples per source and aligns
// them to the fixed fusion tick.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"
)

// Drop reasons reported to metrics.
const (
	reasonStale      = "stale"
	reasonOverflow   = "overflow"
	reasonOutOfOrder = "out_of_order"
	reasonDisabled   = "disabled"
	reasonInvalid    = "invalid"
)

// Frame is the set of per-source samples chosen for one tick. Absent
// sources are nil.
type Frame struct {
	Tick    time.Duration
	Samples [len(model.Sources)]*model.SensorSample
	Present model.SourceSet
	// Stale holds sources whose candidate sample was too old and dropped.
	Stale model.SourceSet
}

// Pose returns the camera skeleton or nil.
func (f *Frame) Pose() *model.PoseFrame {
	if s := f.Samples[model.SourceCamera]; s != nil {
		return s.Pose
	}
	return nil
}

// Motion returns the orientation reading of src or nil.
func (f *Frame) Motion(src model.Source) *model.MotionFrame {
	if src < 0 || int(src) >= len(f.Samples) {
		return nil
	}
	if s := f.Samples[src]; s != nil {
		return s.Motion
	}
	return nil
}

// SourceStats counts per-source ingestion outcomes.
type SourceStats struct {
	Ingested   uint64 `json:"ingested"`
	Used       uint64 `json:"used"`
	Stale      uint64 `json:"stale"`
	Overflow   uint64 `json:"overflow"`
	OutOfOrder uint64 `json:"outOfOrder"`
	Rejected   uint64 `json:"rejected"`
	Buffered   int    `json:"buffered"`
}

type lane struct {
	ring  *Ring[model.SensorSample]
	last  time.Duration
	seen  bool
	stats SourceStats
}

// Synchronizer owns the per-source buffers. Push may be called from sensor
// callbacks concurrently with Align on the tick goroutine.
type Synchronizer struct {
	mu      sync.Mutex
	lanes   [len(model.Sources)]*lane
	enabled model.SourceSet

	capacity int
	maxSkew  time.Duration
	logger   logger.Logger
}

// NewSynchronizer returns a Synchronizer accepting every source by default.
func NewSynchronizer(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		enabled:  model.AllSources,
		capacity: DefaultCapacity,
		maxSkew:  DefaultMaxSkew,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("ingest")
	}
	for i := range s.lanes {
		s.lanes[i] = &lane{ring: NewRing[model.SensorSample](s.capacity)}
	}
	return s
}

// MaxSkew returns the stale threshold.
func (s *Synchronizer) MaxSkew() time.Duration { return s.maxSkew }

// Enabled returns the sources accepted this session.
func (s *Synchronizer) Enabled() model.SourceSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Push buffers one sample. Samples from disabled sources and samples whose
// timestamp does not advance are rejected.
func (s *Synchronizer) Push(sample model.SensorSample) error {
	src := sample.Source.String()
	if err := sample.Validate(); err != nil {
		metrics.RecordSampleDropped(src, reasonInvalid)
		return fmt.Errorf("%w: %w", ErrInvalidSample, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.lanes[sample.Source]
	if !s.enabled.Has(sample.Source) {
		l.stats.Rejected++
		metrics.RecordSampleDropped(src, reasonDisabled)
		return fmt.Errorf("%w: %s", ErrSourceDisabled, src)
	}
	if l.seen && sample.Timestamp <= l.last {
		l.stats.OutOfOrder++
		metrics.RecordSampleDropped(src, reasonOutOfOrder)
		return fmt.Errorf("%w: %s at %s after %s", ErrOutOfOrder, src, sample.Timestamp, l.last)
	}
	l.last, l.seen = sample.Timestamp, true

	if l.ring.Push(sample) {
		l.stats.Overflow++
		metrics.RecordSampleDropped(src, reasonOverflow)
	}
	l.stats.Ingested++
	metrics.RecordSampleIngested(src)
	return nil
}

// Align picks, per source, the newest sample stamped at or before tick.
// It is used when no older than MaxSkew; otherwise it is dropped as stale
// and the source is absent this tick. Selected and older samples are
// consumed; samples stamped after tick stay for later ticks.
func (s *Synchronizer) Align(ctx context.Context, tick time.Duration) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := Frame{Tick: tick}
	for _, src := range model.Sources {
		l := s.lanes[src]
		idx := -1
		for i := 0; i < l.ring.Len(); i++ {
			if l.ring.At(i).Timestamp > tick {
				break
			}
			idx = i
		}
		if idx >= 0 {
			candidate := l.ring.At(idx)
			for i := 0; i < idx; i++ {
				if tick-l.ring.At(i).Timestamp > s.maxSkew {
					l.stats.Stale++
					metrics.RecordSampleDropped(src.String(), reasonStale)
				}
			}
			l.ring.DropOldest(idx + 1)
			if age := tick - candidate.Timestamp; age > s.maxSkew {
				l.stats.Stale++
				f.Stale = f.Stale.With(src)
				metrics.RecordSampleDropped(src.String(), reasonStale)
				s.logger.Debug(ctx, "stale sample dropped",
					logger.String("source", src.String()),
					logger.Duration("age", age),
					logger.Error(model.NewError("ingest.align", model.KindStaleFrameDropped, src.String())),
				)
			} else {
				c := candidate
				f.Samples[src] = &c
				f.Present = f.Present.With(src)
				l.stats.Used++
			}
		}
		l.stats.Buffered = l.ring.Len()
		metrics.UpdateBufferFill(src.String(), l.ring.Len())
	}
	return f
}

// Restrict disables sources outside set and discards their buffers.
func (s *Synchronizer) Restrict(set model.SourceSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = set
	for _, src := range model.Sources {
		if !set.Has(src) {
			s.lanes[src].ring.Clear()
		}
	}
}

// Drain discards every buffered sample and forgets per-source ordering so a
// new session can start from any timestamp.
func (s *Synchronizer) Drain() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lanes {
		n += l.ring.Len()
		l.ring.Clear()
		l.seen = false
		l.last = 0
		l.stats.Buffered = 0
	}
	return n
}

// Stats returns per-source counters keyed by source name.
func (s *Synchronizer) Stats() map[string]SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]SourceStats, len(s.lanes))
	for _, src := range model.Sources {
		st := s.lanes[src].stats
		st.Buffered = s.lanes[src].ring.Len()
		out[src.String()] = st
	}
	return out
}
