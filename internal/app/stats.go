package service

import (
	"context"
	"slices"
	"time"

	"github.com/okian/repsense/internal/domain/calibration"
	"github.com/okian/repsense/internal/domain/model"
)

// Status is what the host tells the user about the session.
type Status struct {
	SessionID           string             `json:"sessionId,omitempty"`
	Started             bool               `json:"started"`
	Exercise            string             `json:"exercise"`
	Mode                string             `json:"mode"`
	Sources             string             `json:"sources"`
	FallbackModeEnabled bool               `json:"fallbackModeEnabled"`
	Wearable            string             `json:"wearable"`
	Calibration         calibration.Status `json:"calibration"`
	Phase               string             `json:"phase"`
	Reps                int                `json:"reps"`
	Confidence          float64            `json:"confidence"`
	Degraded            bool               `json:"degraded"`
	// Error carries the last capability or calibration failure.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Status returns the session status.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mode := s.tracker.Mode()
	if mode == "" {
		mode = s.report.Mode
	}
	st := Status{
		SessionID:           s.sessionID,
		Started:             s.started,
		Exercise:            string(s.family),
		Mode:                string(mode),
		Sources:             s.report.Sources.String(),
		FallbackModeEnabled: s.report.FallbackModeEnabled,
		Wearable:            s.wearable.Current().String(),
		Calibration:         s.calibrator.Status(),
		Phase:               string(s.machine.Phase()),
		Reps:                s.machine.Reps(),
		Confidence:          s.last.Confidence,
		Degraded:            s.last.Degraded,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
		st.ErrorKind = string(model.KindOf(s.lastErr))
	}
	return st
}

// LatencyP95 returns the 95th percentile of recent tick latencies.
func (s *Service) LatencyP95() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return percentile(s.latencies.Slice(), 0.95)
}

func percentile(values []time.Duration, q float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	slices.Sort(values)
	idx := int(q*float64(len(values))+0.5) - 1
	idx = max(0, min(idx, len(values)-1))
	return values[idx]
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":            s.started,
		"exercise":           string(s.family),
		"tickHz":             s.cfg.TickHz,
		"ticks":              s.counters.ticks,
		"cuesEmitted":        s.counters.cues,
		"cuesDropped":        s.counters.cuesDropped,
		"invalidTransitions": s.counters.invalidTransitions,
		"driftDetections":    s.counters.drift,
		"telemetryPublished": s.counters.telemetryPublished,
		"telemetryErrors":    s.counters.telemetryErrors,
		"sources":            s.sync.Stats(),
	}

	if s.started {
		lat := s.latencies.Slice()
		stats["p95LatencyMs"] = float64(percentile(lat, 0.95).Microseconds()) / 1000
		stats["mode"] = string(s.tracker.Mode())
		stats["confidence"] = s.last.Confidence
		stats["queueLength"] = s.queue.Len(context.Background())
	}

	return stats
}
