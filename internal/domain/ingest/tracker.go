package ingest

import "github.com/okian/repsense/internal/domain/model"

// Edge marks a transition across the unsupported boundary.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeEnterUnsupported
	EdgeExitUnsupported
)

func (e Edge) String() string {
	switch e {
	case EdgeEnterUnsupported:
		return "enter"
	case EdgeExitUnsupported:
		return "exit"
	default:
		return "none"
	}
}

// Transition is the result of observing one tick's present sources.
type Transition struct {
	Mode     model.DegradationMode
	Previous model.DegradationMode
	Changed  bool
	Edge     Edge
}

// Tracker maps present sources to a degradation mode and reports edges into
// and out of unsupported exactly once each.
type Tracker struct {
	mode model.DegradationMode
}

// NewTracker returns a tracker with no prior mode.
func NewTracker() *Tracker { return &Tracker{} }

// Mode returns the last observed mode.
func (t *Tracker) Mode() model.DegradationMode { return t.mode }

// Observe records present and returns the resulting transition.
func (t *Tracker) Observe(present model.SourceSet) Transition {
	next := model.ModeFor(present)
	tr := Transition{Mode: next, Previous: t.mode, Changed: next != t.mode}
	switch {
	case next == model.ModeUnsupported && t.mode != model.ModeUnsupported:
		tr.Edge = EdgeEnterUnsupported
	case next != model.ModeUnsupported && t.mode == model.ModeUnsupported:
		tr.Edge = EdgeExitUnsupported
	}
	t.mode = next
	return tr
}

// Reset forgets the prior mode.
func (t *Tracker) Reset() { t.mode = "" }
