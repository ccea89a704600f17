package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/repsense/internal/app"
	"github.com/okian/repsense/internal/domain/capability"
	"github.com/okian/repsense/internal/domain/model"
)

// Controller drives session-level actions.
type Controller interface {
	ObserveWearable(ctx context.Context, r capability.Reachability) bool
	Recalibrate(ctx context.Context) error
}

// SessionHandler handles calibration and wearable events.
type SessionHandler struct {
	ctl Controller
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(ctl Controller) *SessionHandler {
	return &SessionHandler{ctl: ctl}
}

// HandleCalibrate handles POST /calibrate requests.
func (h *SessionHandler) HandleCalibrate(w http.ResponseWriter, r *http.Request) {
	const op = "api.calibrate"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	err := h.ctl.Recalibrate(r.Context())
	switch kind := model.KindOf(err); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "calibrating"})
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusConflict, "not_started", WrapKind(op, ErrConflict, err))
	case kind != "":
		writeError(w, http.StatusConflict, string(kind), WrapKind(op, ErrConflict, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
	}
}

type wearableRequest struct {
	Reachability string `json:"reachability"`
}

type wearableResponse struct {
	Advanced bool `json:"advanced"`
}

// HandleWearable handles POST /wearable edge events from the platform.
func (h *SessionHandler) HandleWearable(w http.ResponseWriter, r *http.Request) {
	const op = "api.wearable"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req wearableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	next, ok := capability.ParseReachability(req.Reachability)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, errors.New("unknown reachability "+req.Reachability)))
		return
	}
	writeJSON(w, http.StatusOK, wearableResponse{Advanced: h.ctl.ObserveWearable(r.Context(), next)})
}
