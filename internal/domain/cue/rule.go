package cue

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/repsense/internal/config"
	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/phase"
)

// Channel is a presentation target. Formatting for a channel belongs to the
// consumer; events only name their targets.
type Channel string

const (
	ChannelSpeech Channel = "speech"
	ChannelHaptic Channel = "haptic"
	ChannelBanner Channel = "banner"
)

// Severity orders cue urgency.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseSeverity maps a name to a Severity.
func ParseSeverity(v string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	}
	return 0, fmt.Errorf("%w: unknown severity %q", ErrInvalidRule, v)
}

// Op compares a feature against a threshold.
type Op string

const (
	Above Op = "above"
	Below Op = "below"
)

// Condition is violated when Feature is Op Threshold.
type Condition struct {
	Feature   features.Name
	Op        Op
	Threshold float64
}

func (c Condition) violated(cache *features.Cache) (float64, bool) {
	v, ok := cache.Get(c.Feature)
	if !ok {
		return 0, false
	}
	switch c.Op {
	case Above:
		return v, v > c.Threshold
	case Below:
		return v, v < c.Threshold
	}
	return v, false
}

// Rule is one declarative coaching rule.
type Rule struct {
	ID        string
	Priority  int
	Channels  []Channel
	Severity  Severity
	Condition Condition
	// Phases limits the rule to these phases; empty means any phase.
	Phases []phase.Phase
	// MinConfidence is the fused confidence a state needs for the rule to
	// apply; zero applies at any confidence.
	MinConfidence float64
	Persistence   time.Duration
	Cooldown      time.Duration
}

// Validate checks a single rule.
func (r Rule) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: empty id", ErrInvalidRule)
	case r.Condition.Feature == "":
		return fmt.Errorf("%w: %s: no feature", ErrInvalidRule, r.ID)
	case r.Condition.Op != Above && r.Condition.Op != Below:
		return fmt.Errorf("%w: %s: unknown op %q", ErrInvalidRule, r.ID, r.Condition.Op)
	case len(r.Channels) == 0:
		return fmt.Errorf("%w: %s: no channels", ErrInvalidRule, r.ID)
	case r.Persistence < 0 || r.Cooldown < 0:
		return fmt.Errorf("%w: %s: negative window", ErrInvalidRule, r.ID)
	case r.MinConfidence < 0 || r.MinConfidence > 1:
		return fmt.Errorf("%w: %s: min confidence outside [0,1]", ErrInvalidRule, r.ID)
	}
	return nil
}

func (r Rule) appliesIn(p phase.Phase) bool {
	return len(r.Phases) == 0 || slices.Contains(r.Phases, p)
}

func (r Rule) trusts(confidence float64) bool { return confidence >= r.MinConfidence }

// RulesFromConfig converts file-loaded rules.
func RulesFromConfig(in []config.CueRule) ([]Rule, error) {
	out := make([]Rule, 0, len(in))
	for _, c := range in {
		sev, err := ParseSeverity(c.Severity)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.ID, err)
		}
		r := Rule{
			ID:            c.ID,
			Priority:      c.Priority,
			Severity:      sev,
			Condition:     Condition{Feature: features.Name(c.Feature), Op: Op(strings.ToLower(c.Op)), Threshold: c.Threshold},
			MinConfidence: c.MinConfidence,
			Persistence:   time.Duration(c.PersistenceMS) * time.Millisecond,
			Cooldown:      time.Duration(c.CooldownMS) * time.Millisecond,
		}
		for _, ch := range c.Channels {
			r.Channels = append(r.Channels, Channel(strings.ToLower(ch)))
		}
		for _, p := range c.Phases {
			r.Phases = append(r.Phases, phase.Phase(p))
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DefaultRules returns the built-in rule set of family.
func DefaultRules(family phase.Family) []Rule {
	voice := []Channel{ChannelSpeech, ChannelBanner}
	touch := []Channel{ChannelSpeech, ChannelHaptic}
	switch family {
	case phase.Squat:
		working := []phase.Phase{"descending", "bottom", "ascending"}
		return []Rule{
			{ID: "squat_knee_cave", Priority: 3, Channels: touch, Severity: SeverityWarning,
				Condition: Condition{features.KneeWidthRatio, Below, 0.75}, Phases: working,
				Persistence: 300 * time.Millisecond, Cooldown: 5 * time.Second},
			{ID: "squat_chest_up", Priority: 2, Channels: voice, Severity: SeverityWarning,
				Condition: Condition{features.TorsoLean, Above, 50}, Phases: working,
				Persistence: 400 * time.Millisecond, Cooldown: 6 * time.Second},
			{ID: "squat_eyes_forward", Priority: 1, Channels: []Channel{ChannelBanner}, Severity: SeverityInfo,
				Condition: Condition{features.HeadPitchDelta, Below, -25},
				Persistence: 500 * time.Millisecond, Cooldown: 8 * time.Second},
		}
	case phase.Hinge:
		working := []phase.Phase{"hinging", "bottom", "extending"}
		return []Rule{
			{ID: "hinge_soft_knees", Priority: 2, Channels: voice, Severity: SeverityWarning,
				Condition: Condition{features.KneeAngle, Below, 140}, Phases: working,
				Persistence: 300 * time.Millisecond, Cooldown: 5 * time.Second},
			{ID: "hinge_neutral_neck", Priority: 1, Channels: []Channel{ChannelBanner}, Severity: SeverityInfo,
				Condition: Condition{features.HeadPitchDelta, Above, 25}, Phases: working,
				Persistence: 500 * time.Millisecond, Cooldown: 8 * time.Second},
		}
	case phase.Lunge:
		return []Rule{
			{ID: "lunge_upright", Priority: 2, Channels: voice, Severity: SeverityWarning,
				Condition: Condition{features.TorsoLean, Above, 25}, Phases: []phase.Phase{"lowering", "bottom", "rising"},
				Persistence: 300 * time.Millisecond, Cooldown: 5 * time.Second},
			{ID: "lunge_eyes_forward", Priority: 1, Channels: []Channel{ChannelBanner}, Severity: SeverityInfo,
				Condition: Condition{features.HeadPitchDelta, Below, -25},
				Persistence: 500 * time.Millisecond, Cooldown: 8 * time.Second},
		}
	case phase.HorizontalPress:
		return []Rule{
			{ID: "press_stack_wrists", Priority: 2, Channels: touch, Severity: SeverityWarning,
				Condition: Condition{features.WristRotationDelta, Above, 30}, Phases: []phase.Phase{"lowering", "bottom", "pressing"},
				MinConfidence: 0.5, Persistence: 300 * time.Millisecond, Cooldown: 5 * time.Second},
		}
	case phase.VerticalPress:
		return []Rule{
			{ID: "overhead_ribs_down", Priority: 3, Channels: touch, Severity: SeverityCritical,
				Condition: Condition{features.TorsoLean, Above, 15}, Phases: []phase.Phase{"pressing", "lockout"},
				Persistence: 250 * time.Millisecond, Cooldown: 5 * time.Second},
			{ID: "overhead_stack_wrists", Priority: 1, Channels: []Channel{ChannelBanner}, Severity: SeverityInfo,
				Condition: Condition{features.WristRotationDelta, Above, 35},
				Persistence: 400 * time.Millisecond, Cooldown: 8 * time.Second},
		}
	}
	return nil
}
