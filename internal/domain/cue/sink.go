package cue

import (
	"context"
	"sync"

	"github.com/okian/repsense/internal/domain/ingest"
)

// Sink receives emitted cues. Speech, haptic and UI layers implement it.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Recorder is a Sink keeping the most recent events in a bounded ring.
type Recorder struct {
	mu   sync.Mutex
	ring *ingest.Ring[Event]
}

// NewRecorder keeps up to n events.
func NewRecorder(n int) *Recorder {
	return &Recorder{ring: ingest.NewRing[Event](n)}
}

// Emit stores ev, evicting the oldest when full.
func (r *Recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.ring.Push(ev)
	r.mu.Unlock()
	return nil
}

// Events returns the stored events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ring.Slice()
}

// Clear drops every stored event.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.ring.Clear()
	r.mu.Unlock()
}
