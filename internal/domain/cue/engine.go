// Package cue turns sustained form violations into coaching events with
// persistence windows, per-rule cooldowns and priority arbitration.
package cue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/repsense/internal/domain/fusion"
	"github.com/okian/repsense/internal/domain/phase"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"
)

// Event is one emitted cue.
type Event struct {
	ID        string        `json:"id"`
	RuleID    string        `json:"ruleId"`
	Priority  int           `json:"priority"`
	Channels  []Channel     `json:"channels"`
	Severity  Severity      `json:"severity"`
	Timestamp time.Duration `json:"timestamp"`
	Phase     phase.Phase   `json:"phase"`
	Value     float64       `json:"value"`
	Degraded  bool          `json:"degraded"`
}

type timer struct {
	violating      bool
	violationStart time.Duration
	emitted        bool
	lastEmitted    time.Duration
	value          float64
}

// Engine evaluates a fixed rule set once per tick. It is driven from the
// tick goroutine and is not safe for concurrent use.
type Engine struct {
	rules  []Rule
	timers []timer
	logger logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine validates rules. Rule order breaks priority ties.
func NewEngine(rules []Rule, opts ...Option) (*Engine, error) {
	seen := map[string]bool{}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidRule, r.ID)
		}
		seen[r.ID] = true
	}
	e := &Engine{
		rules:  append([]Rule(nil), rules...),
		timers: make([]timer, len(rules)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("cue")
	}
	return e, nil
}

// Rules returns the configured rules.
func (e *Engine) Rules() []Rule { return append([]Rule(nil), e.rules...) }

// Evaluate updates every rule's violation timer from st and returns at most
// one event: the highest-priority rule whose violation has persisted for its
// window and whose own cooldown has expired.
func (e *Engine) Evaluate(ctx context.Context, st fusion.BodyState, current phase.Phase) (Event, bool) {
	now := st.Timestamp
	best := -1
	for i, r := range e.rules {
		t := &e.timers[i]
		v, bad := r.Condition.violated(st.Features)
		if !bad || !r.appliesIn(current) || !r.trusts(st.Confidence) || !st.Mode.Supported() {
			t.violating = false
			continue
		}
		if !t.violating {
			t.violating = true
			t.violationStart = now
		}
		t.value = v
		if now-t.violationStart < r.Persistence {
			continue
		}
		if t.emitted && now-t.lastEmitted < r.Cooldown {
			continue
		}
		if best < 0 || r.Priority > e.rules[best].Priority {
			best = i
		}
	}
	if best < 0 {
		return Event{}, false
	}

	r, t := e.rules[best], &e.timers[best]
	t.emitted = true
	t.lastEmitted = now

	sev := r.Severity
	if st.Degraded {
		sev = SeverityInfo
	}
	ev := Event{
		ID:        uuid.NewString(),
		RuleID:    r.ID,
		Priority:  r.Priority,
		Channels:  append([]Channel(nil), r.Channels...),
		Severity:  sev,
		Timestamp: now,
		Phase:     current,
		Value:     t.value,
		Degraded:  st.Degraded,
	}
	metrics.RecordCueEmitted(r.ID)
	e.logger.Debug(ctx, "cue emitted",
		logger.String("rule", r.ID),
		logger.Int("priority", r.Priority),
		logger.String("severity", sev.String()))
	return ev, true
}

// Reset clears every timer for a new session.
func (e *Engine) Reset() {
	for i := range e.timers {
		e.timers[i] = timer{}
	}
}
