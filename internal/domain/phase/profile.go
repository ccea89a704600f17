package phase

import (
	"fmt"
	"math"
	"slices"

	"github.com/okian/repsense/internal/domain/features"
)

// Family names a movement pattern.
type Family string

const (
	Squat           Family = "squat"
	Hinge           Family = "hinge"
	Lunge           Family = "lunge"
	HorizontalPress Family = "horizontal_press"
	VerticalPress   Family = "vertical_press"
)

// Phase is a state in a family's graph.
type Phase string

// Range is a half-open interval [Min, Max) of the driving feature.
type Range struct {
	Min, Max float64
}

func (r Range) contains(v float64) bool { return v >= r.Min && v < r.Max }

func (r Range) overlaps(o Range) bool { return r.Min < o.Max && o.Min < r.Max }

// PhaseSpec binds a phase to the feature range it occupies. Two phases may
// share a range when the graph tells them apart: the same knee angle is
// descending on the way down and ascending on the way up.
type PhaseSpec struct {
	Name  Phase
	Range Range
}

// Edge is a directed transition.
type Edge struct {
	From, To Phase
}

func (e Edge) String() string { return string(e.From) + "->" + string(e.To) }

// Profile is one movement family expressed as data.
type Profile struct {
	Family  Family
	Feature features.Name
	Initial Phase
	Phases  []PhaseSpec
	Edges   []Edge
	// RepEdge is the canonical rep-completion transition.
	RepEdge Edge
}

// Validate checks that ranges either match exactly or do not overlap, that
// every edge joins known phases, and that the rep edge is declared. Phases
// sharing a range are told apart by the edges out of the current phase.
func (p Profile) Validate() error {
	known := map[Phase]Range{}
	for _, ph := range p.Phases {
		if _, dup := known[ph.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate phase %s", ErrInvalidProfile, p.Family, ph.Name)
		}
		if ph.Range.Min >= ph.Range.Max {
			return fmt.Errorf("%w: %s: empty range for %s", ErrInvalidProfile, p.Family, ph.Name)
		}
		for other, r := range known {
			if r != ph.Range && r.overlaps(ph.Range) {
				return fmt.Errorf("%w: %s: %s overlaps %s", ErrInvalidProfile, p.Family, ph.Name, other)
			}
		}
		known[ph.Name] = ph.Range
	}
	if _, ok := known[p.Initial]; !ok {
		return fmt.Errorf("%w: %s: unknown initial phase %s", ErrInvalidProfile, p.Family, p.Initial)
	}
	rep := false
	for _, e := range p.Edges {
		if _, ok := known[e.From]; !ok {
			return fmt.Errorf("%w: %s: edge %s from unknown phase", ErrInvalidProfile, p.Family, e)
		}
		if _, ok := known[e.To]; !ok {
			return fmt.Errorf("%w: %s: edge %s to unknown phase", ErrInvalidProfile, p.Family, e)
		}
		rep = rep || e == p.RepEdge
	}
	if !rep {
		return fmt.Errorf("%w: %s: rep edge %s not declared", ErrInvalidProfile, p.Family, p.RepEdge)
	}
	return nil
}

// Allows reports whether e is a declared edge.
func (p Profile) Allows(e Edge) bool {
	for _, d := range p.Edges {
		if d == e {
			return true
		}
	}
	return false
}

// Resolve returns the phase that value v requests from current. When several
// phases share v's range, the one reachable from current wins; when none is
// reachable, the first is returned so the caller can reject it.
func (p Profile) Resolve(current Phase, v float64) (Phase, bool) {
	var first Phase
	found := false
	for _, ph := range p.Phases {
		if !ph.Range.contains(v) {
			continue
		}
		if ph.Name == current || p.Allows(Edge{current, ph.Name}) {
			return ph.Name, true
		}
		if !found {
			first, found = ph.Name, true
		}
	}
	return first, found
}

var (
	inf  = math.Inf(1)
	ninf = math.Inf(-1)
)

// cycle builds the common four-phase pattern: a resting phase, an eccentric
// phase, a turnaround phase and a concentric phase, with the rep counted on
// turnaround -> concentric.
func cycle(f Family, feature features.Name, rest, down, turn, up Phase, restAt, turnAt float64) Profile {
	var restR, turnR Range
	mid := Range{math.Min(restAt, turnAt), math.Max(restAt, turnAt)}
	if restAt > turnAt {
		restR, turnR = Range{restAt, inf}, Range{ninf, turnAt}
	} else {
		restR, turnR = Range{ninf, restAt}, Range{turnAt, inf}
	}
	return Profile{
		Family:  f,
		Feature: feature,
		Initial: rest,
		Phases: []PhaseSpec{
			{rest, restR},
			{down, mid},
			{turn, turnR},
			{up, mid},
		},
		Edges: []Edge{
			{rest, down},
			{down, turn},
			{down, rest},
			{turn, up},
			{up, rest},
		},
		RepEdge: Edge{turn, up},
	}
}

var profiles = map[Family]Profile{
	Squat:           cycle(Squat, features.KneeAngle, "standing", "descending", "bottom", "ascending", 160, 100),
	Hinge:           cycle(Hinge, features.HipAngle, "standing", "hinging", "bottom", "extending", 165, 110),
	Lunge:           cycle(Lunge, features.FrontKneeAngle, "standing", "lowering", "bottom", "rising", 155, 105),
	HorizontalPress: cycle(HorizontalPress, features.ElbowAngle, "lockout", "lowering", "bottom", "pressing", 155, 95),
	VerticalPress:   verticalPress(),
}

// verticalPress starts in the rack with the elbows bent, presses to a
// lockout and lowers back. The rep is counted when the press leaves the rack.
func verticalPress() Profile {
	mid := Range{95, 160}
	return Profile{
		Family:  VerticalPress,
		Feature: features.ElbowAngle,
		Initial: "rack",
		Phases: []PhaseSpec{
			{"rack", Range{ninf, 95}},
			{"pressing", mid},
			{"lockout", Range{160, inf}},
			{"lowering", mid},
		},
		Edges: []Edge{
			{"rack", "pressing"},
			{"pressing", "lockout"},
			{"pressing", "rack"},
			{"lockout", "lowering"},
			{"lowering", "rack"},
		},
		RepEdge: Edge{"rack", "pressing"},
	}
}

// Lookup returns the profile of family.
func Lookup(family string) (Profile, error) {
	p, ok := profiles[Family(family)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	p.Phases = slices.Clone(p.Phases)
	p.Edges = slices.Clone(p.Edges)
	return p, nil
}

// Families lists the built-in families.
func Families() []Family {
	return []Family{Squat, Hinge, Lunge, HorizontalPress, VerticalPress}
}
