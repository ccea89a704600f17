// Package model contains the domain types passed between pipeline stages:
// sensor sources and samples, degradation modes, geometry primitives and the
// error taxonomy.
package model

import (
	"fmt"
	"strings"
)

// Source identifies a sensor stream.
type Source int

const (
	SourceCamera Source = iota
	SourceWatch
	SourceHeadphone
	sourceCount
)

// Sources lists every source in canonical order.
var Sources = [...]Source{SourceCamera, SourceWatch, SourceHeadphone}

var sourceNames = [...]string{"camera", "watch", "headphone"}

func (s Source) String() string {
	if s < 0 || s >= sourceCount {
		return "unknown"
	}
	return sourceNames[s]
}

// ParseSource maps a source name to its Source.
func ParseSource(name string) (Source, bool) {
	for i, n := range sourceNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Source(i), true
		}
	}
	return 0, false
}

// Auxiliary reports whether s augments the camera anchor.
func (s Source) Auxiliary() bool { return s == SourceWatch || s == SourceHeadphone }

// SourceSet is a bitmask of sources.
type SourceSet uint8

// AllSources contains camera, watch and headphone.
const AllSources = SourceSet(1<<SourceCamera | 1<<SourceWatch | 1<<SourceHeadphone)

// NewSourceSet builds a set from sources.
func NewSourceSet(sources ...Source) SourceSet {
	var s SourceSet
	for _, src := range sources {
		s = s.With(src)
	}
	return s
}

func (s SourceSet) Has(src Source) bool             { return s&(1<<src) != 0 }
func (s SourceSet) With(src Source) SourceSet       { return s | 1<<src }
func (s SourceSet) Without(src Source) SourceSet    { return s &^ (1 << src) }
func (s SourceSet) Intersect(o SourceSet) SourceSet { return s & o }
func (s SourceSet) Empty() bool                     { return s&AllSources == 0 }

// Len returns the number of sources in the set.
func (s SourceSet) Len() int {
	n := 0
	for _, src := range Sources {
		if s.Has(src) {
			n++
		}
	}
	return n
}

func (s SourceSet) String() string {
	if s.Empty() {
		return "none"
	}
	parts := make([]string, 0, len(Sources))
	for _, src := range Sources {
		if s.Has(src) {
			parts = append(parts, src.String())
		}
	}
	return strings.Join(parts, "+")
}

// AllSubsets returns the seven non-empty subsets of AllSources.
func AllSubsets() []SourceSet {
	out := make([]SourceSet, 0, 7)
	for s := SourceSet(1); s <= AllSources; s++ {
		out = append(out, s)
	}
	return out
}

// MarshalText encodes the source by name.
func (s Source) MarshalText() ([]byte, error) {
	if s < 0 || s >= sourceCount {
		return nil, fmt.Errorf("unknown source %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a source name.
func (s *Source) UnmarshalText(b []byte) error {
	v, ok := ParseSource(string(b))
	if !ok {
		return fmt.Errorf("unknown source %q", string(b))
	}
	*s = v
	return nil
}
