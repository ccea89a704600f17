// Package api exposes the session service over HTTP: sample ingestion,
// session control, status and metrics, plus the cue stream.
package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Session is the bundle of service operations the handlers depend on.
type Session interface {
	Ingester
	Controller
	StatsProvider
	StatusProvider
}

// Server wires HTTP routes for the session API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	samplesHandler *SamplesHandler
	sessionHandler *SessionHandler
	cues           http.Handler
}

// NewServer creates a new API server. cues, when non-nil, serves the cue
// websocket stream.
func NewServer(session Session, cues http.Handler) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(session, session),
		samplesHandler: NewSamplesHandler(session),
		sessionHandler: NewSessionHandler(session),
		cues:           cues,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/status", MetricsMiddleware(s.statsHandler.HandleStatus, "status"))
	mux.HandleFunc("/samples", MetricsMiddleware(s.samplesHandler.HandlePostSample, "samples"))
	mux.HandleFunc("/calibrate", MetricsMiddleware(s.sessionHandler.HandleCalibrate, "calibrate"))
	mux.HandleFunc("/wearable", MetricsMiddleware(s.sessionHandler.HandleWearable, "wearable"))
	if s.cues != nil {
		// Not wrapped: the upgrade needs the raw ResponseWriter's Hijacker.
		mux.Handle("/ws/cues", s.cues)
	}
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
