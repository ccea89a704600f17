// Package features is the single authoritative set of geometric computations
// performed on a fused tick. Each feature is computed at most once per tick
// into a Cache; downstream stages read the cache and never touch raw joints.
package features

import (
	"fmt"

	"github.com/okian/repsense/internal/domain/model"
)

// Name identifies a feature.
type Name string

// Input is everything a tick's features may be derived from.
type Input struct {
	Pose      *model.PoseFrame
	Watch     *model.MotionFrame
	Headphone *model.MotionFrame
	Reference *Reference
}

// ComputeFunc derives one value. It returns false when its inputs are
// missing this tick.
type ComputeFunc func(s *Scope) (float64, bool)

// Feature is one registry entry.
type Feature struct {
	Name    Name
	Compute ComputeFunc
}

// Registry owns the ordered feature list.
type Registry struct {
	features []Feature
	index    map[Name]int
	hook     func(Name)
}

// Option configures a Registry.
type Option func(*Registry)

// WithComputeHook is called once for every feature evaluation.
func WithComputeHook(fn func(Name)) Option {
	return func(r *Registry) { r.hook = fn }
}

// WithoutDefaults starts from an empty registry.
func WithoutDefaults() Option {
	return func(r *Registry) {
		r.features = nil
		r.index = map[Name]int{}
	}
}

// NewRegistry returns a registry holding the built-in features.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{index: map[Name]int{}}
	for _, f := range builtins() {
		_ = r.Register(f)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends f.
func (r *Registry) Register(f Feature) error {
	if f.Name == "" || f.Compute == nil {
		return ErrInvalidFeature
	}
	if _, ok := r.index[f.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFeature, f.Name)
	}
	r.index[f.Name] = len(r.features)
	r.features = append(r.features, f)
	return nil
}

// Names lists registered features in evaluation order.
func (r *Registry) Names() []Name {
	out := make([]Name, len(r.features))
	for i, f := range r.features {
		out[i] = f.Name
	}
	return out
}

// Len returns the number of registered features.
func (r *Registry) Len() int { return len(r.features) }

// Compute evaluates every feature exactly once and returns the filled cache.
func (r *Registry) Compute(in Input) *Cache {
	s := &Scope{
		in:    in,
		reg:   r,
		cache: newCache(len(r.features)),
		state: make([]evalState, len(r.features)),
	}
	for i := range r.features {
		s.eval(i)
	}
	return s.cache
}

type evalState uint8

const (
	pending evalState = iota
	running
	done
)

// Scope is the evaluation context of one Compute call. Dependencies between
// features resolve through Value, which reuses already computed results.
type Scope struct {
	in    Input
	reg   *Registry
	cache *Cache
	state []evalState
}

// Input returns the tick input.
func (s *Scope) Input() Input { return s.in }

// Value returns another feature's value, computing it first if needed.
// Cyclic lookups report unavailable.
func (s *Scope) Value(name Name) (float64, bool) {
	i, ok := s.reg.index[name]
	if !ok {
		return 0, false
	}
	s.eval(i)
	return s.cache.Get(name)
}

func (s *Scope) vec(x, y, z Name) (model.Vec3, bool) {
	vx, okx := s.Value(x)
	vy, oky := s.Value(y)
	vz, okz := s.Value(z)
	return model.Vec3{X: vx, Y: vy, Z: vz}, okx && oky && okz
}

func (s *Scope) eval(i int) {
	if s.state[i] != pending {
		return
	}
	s.state[i] = running
	f := s.reg.features[i]
	if s.reg.hook != nil {
		s.reg.hook(f.Name)
	}
	if v, ok := f.Compute(s); ok {
		s.cache.values[f.Name] = v
	}
	s.state[i] = done
}
