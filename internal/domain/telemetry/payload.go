// Package telemetry builds the summary payload sent to companion devices.
//
// The legacy fields (isTracking, reps, tracking) are always present so older
// consumers decode new payloads unchanged; fusion fields are additive.
package telemetry

import (
	"context"
	"encoding/json"

	"github.com/okian/repsense/internal/domain/fusion"
	"github.com/okian/repsense/internal/domain/phase"
)

// Tracking is the legacy coarse tracking status.
type Tracking string

const (
	TrackingActive   Tracking = "active"
	TrackingDegraded Tracking = "degraded"
	TrackingLost     Tracking = "lost"
)

// Payload is one companion telemetry message.
type Payload struct {
	IsTracking      bool     `json:"isTracking"`
	Reps            int      `json:"reps"`
	Tracking        Tracking `json:"tracking"`
	Confidence      float64  `json:"confidence"`
	DegradationMode string   `json:"degradationMode"`
	Phase           string   `json:"phase"`
	Exercise        string   `json:"exercise"`
	TimestampMS     int64    `json:"timestamp_ms"`
}

// Build summarises one tick.
func Build(family phase.Family, st fusion.BodyState, current phase.Phase, reps int) Payload {
	p := Payload{
		IsTracking:      st.Tracking(),
		Reps:            reps,
		Tracking:        TrackingActive,
		Confidence:      st.Confidence,
		DegradationMode: string(st.Mode),
		Phase:           string(current),
		Exercise:        string(family),
		TimestampMS:     st.Timestamp.Milliseconds(),
	}
	switch {
	case !p.IsTracking:
		p.Tracking = TrackingLost
	case st.Degraded:
		p.Tracking = TrackingDegraded
	}
	return p
}

// Encode returns the JSON wire form.
func (p Payload) Encode() ([]byte, error) { return json.Marshal(p) }

// Publisher delivers payloads to a companion transport.
type Publisher interface {
	Publish(ctx context.Context, p Payload) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, p Payload) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, p Payload) error { return f(ctx, p) }

// Cadence reports every n-th call as due. The first call is always due.
type Cadence struct {
	every int
	n     int
}

// NewCadence returns a Cadence firing every n calls; n < 1 fires every call.
func NewCadence(n int) *Cadence {
	if n < 1 {
		n = 1
	}
	return &Cadence{every: n}
}

// Due advances the cadence and reports whether this call should publish.
func (c *Cadence) Due() bool {
	due := c.n == 0
	c.n++
	if c.n >= c.every {
		c.n = 0
	}
	return due
}

// Reset makes the next call due.
func (c *Cadence) Reset() { c.n = 0 }
