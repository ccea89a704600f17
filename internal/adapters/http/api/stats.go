package api

import (
	"net/http"

	service "github.com/okian/repsense/internal/app"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatusProvider reports what the host shows the user about the session.
type StatusProvider interface {
	Status() service.Status
}

// StatsHandler handles stats and status requests.
type StatsHandler struct {
	stats  StatsProvider
	status StatusProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats StatsProvider, status StatusProvider) *StatsHandler {
	return &StatsHandler{stats: stats, status: status}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}

// HandleStatus handles GET /status requests.
func (h *StatsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.status.Status())
}
