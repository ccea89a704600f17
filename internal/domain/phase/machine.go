// Package phase tracks movement phases and counts reps from fused body
// states, one hysteresis-guarded state machine per movement family.
package phase

import (
	"context"
	"fmt"

	"github.com/okian/repsense/internal/domain/fusion"
	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"
)

// Default hysteresis in ticks.
const (
	DefaultHysteresis         = 3
	DefaultDegradedHysteresis = 5
)

// Result is the outcome of one Step.
type Result struct {
	Phase        Phase
	Previous     Phase
	Transitioned bool
	RepDelta     int
	Reps         int
	// Invalid is the rejected edge, set on the tick it is reported.
	Invalid *Edge
	Err     error
}

// Machine is one session's state machine. It is driven from the tick
// goroutine and is not safe for concurrent use.
type Machine struct {
	profile Profile
	phase   Phase
	reps    int

	pending  Phase
	count    int
	reported bool

	hysteresis         int
	degradedHysteresis int
	logger             logger.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithHysteresis sets the consecutive ticks required to commit, in normal
// and degraded output.
func WithHysteresis(normal, degraded int) Option {
	return func(m *Machine) {
		if normal > 0 {
			m.hysteresis = normal
		}
		if degraded > 0 {
			m.degradedHysteresis = degraded
		}
	}
}

// WithLogger sets the machine logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMachine validates p and returns a machine in its initial phase.
func NewMachine(p Profile, opts ...Option) (*Machine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		profile:            p,
		phase:              p.Initial,
		hysteresis:         DefaultHysteresis,
		degradedHysteresis: DefaultDegradedHysteresis,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.degradedHysteresis < m.hysteresis {
		m.degradedHysteresis = m.hysteresis
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("phase")
	}
	return m, nil
}

// Profile returns the machine's movement profile.
func (m *Machine) Profile() Profile { return m.profile }

// Phase returns the committed phase.
func (m *Machine) Phase() Phase { return m.phase }

// Reps returns the rep count.
func (m *Machine) Reps() int { return m.reps }

// Step advances the machine by one tick. A target phase is committed only
// after it has been requested for the hysteresis window; targets without a
// declared edge are held and reported once.
func (m *Machine) Step(ctx context.Context, st fusion.BodyState) Result {
	res := Result{Phase: m.phase, Previous: m.phase, Reps: m.reps}

	v, ok := st.Feature(m.profile.Feature)
	if !ok || !st.Mode.Supported() {
		m.clearPending()
		return res
	}
	target, ok := m.profile.Resolve(m.phase, v)
	if !ok || target == m.phase {
		m.clearPending()
		return res
	}

	if target != m.pending {
		m.pending, m.count, m.reported = target, 0, false
	}
	m.count++

	need := m.hysteresis
	if st.Degraded {
		need = m.degradedHysteresis
	}
	if m.count < need {
		return res
	}

	edge := Edge{m.phase, target}
	if !m.profile.Allows(edge) {
		if !m.reported {
			m.reported = true
			res.Invalid = &edge
			res.Err = model.NewError("phase.step", model.KindInvalidPhaseTransition,
				fmt.Sprintf("%s: %s", m.profile.Family, edge))
			metrics.RecordInvalidTransition(string(m.profile.Family))
			m.logger.Debug(ctx, "invalid phase transition rejected",
				logger.String("family", string(m.profile.Family)),
				logger.String("edge", edge.String()))
		}
		return res
	}

	m.phase = target
	m.clearPending()
	res.Phase = target
	res.Transitioned = true
	metrics.RecordPhaseTransition(string(m.profile.Family), string(edge.From), string(edge.To))
	if edge == m.profile.RepEdge {
		m.reps++
		res.RepDelta = 1
		metrics.RecordRep(string(m.profile.Family))
	}
	res.Reps = m.reps
	return res
}

func (m *Machine) clearPending() {
	m.pending, m.count, m.reported = "", 0, false
}

// Reset returns to the initial phase with zero reps.
func (m *Machine) Reset() {
	m.phase = m.profile.Initial
	m.reps = 0
	m.clearPending()
}
