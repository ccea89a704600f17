package capability

import "sync"

// Reachability is the wearable connection progression. Values are ordered;
// a device only ever moves forward within a session.
type Reachability int

const (
	Unavailable Reachability = iota
	PairedOnly
	InstalledNotReachable
	Ready
)

func (r Reachability) String() string {
	switch r {
	case Unavailable:
		return "unavailable"
	case PairedOnly:
		return "paired_only"
	case InstalledNotReachable:
		return "installed_not_reachable"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// ParseReachability maps a reachability name to its value.
func ParseReachability(name string) (Reachability, bool) {
	for r := Unavailable; r <= Ready; r++ {
		if r.String() == name {
			return r, true
		}
	}
	return Unavailable, false
}

// ReachabilityState tracks the progression from edge-triggered platform
// events. It is safe for concurrent use.
type ReachabilityState struct {
	mu      sync.Mutex
	current Reachability
}

// Current returns the latest state.
func (s *ReachabilityState) Current() Reachability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Advance moves to next if it is further along the progression. It reports
// whether the state changed; regressions and repeats are ignored.
func (s *ReachabilityState) Advance(next Reachability) bool {
	if next < Unavailable || next > Ready {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if next <= s.current {
		return false
	}
	s.current = next
	return true
}

// Reset returns the state to Unavailable for a new session.
func (s *ReachabilityState) Reset() {
	s.mu.Lock()
	s.current = Unavailable
	s.mu.Unlock()
}
