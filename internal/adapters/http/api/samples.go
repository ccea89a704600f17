package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/repsense/internal/app"
	"github.com/okian/repsense/internal/domain/ingest"
	"github.com/okian/repsense/internal/domain/model"
)

const maxSampleBody = 64 << 10

// Ingester accepts sensor samples for the running session.
type Ingester interface {
	Ingest(sample model.SensorSample) error
}

// SamplesHandler handles sensor sample uploads.
type SamplesHandler struct {
	ingester Ingester
}

// NewSamplesHandler creates a new samples handler.
func NewSamplesHandler(ingester Ingester) *SamplesHandler {
	return &SamplesHandler{ingester: ingester}
}

// keypointRequest is one joint on the wire.
type keypointRequest struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Confidence float64 `json:"confidence"`
}

type quatRequest struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// sampleRequest is the body of POST /samples. Camera samples carry joints
// keyed by name; joints left out are treated as undetected. Watch and
// headphone samples carry an orientation quaternion.
type sampleRequest struct {
	Source      string                     `json:"source"`
	TimestampMS float64                    `json:"timestamp_ms"`
	Joints      map[string]keypointRequest `json:"joints,omitempty"`
	Orientation *quatRequest               `json:"orientation,omitempty"`
}

func (req sampleRequest) toSample() (model.SensorSample, error) {
	src, ok := model.ParseSource(req.Source)
	if !ok {
		return model.SensorSample{}, fmt.Errorf("unknown source %q", req.Source)
	}
	if req.TimestampMS < 0 {
		return model.SensorSample{}, errors.New("timestamp_ms must not be negative")
	}
	s := model.SensorSample{
		Source:    src,
		Timestamp: time.Duration(req.TimestampMS * float64(time.Millisecond)),
	}
	switch src {
	case model.SourceCamera:
		if len(req.Joints) == 0 {
			return model.SensorSample{}, errors.New("camera sample requires joints")
		}
		pose := &model.PoseFrame{}
		for name, kp := range req.Joints {
			j, ok := model.ParseJoint(name)
			if !ok {
				return model.SensorSample{}, fmt.Errorf("unknown joint %q", name)
			}
			pose.Joints[j] = model.Keypoint{
				Position:   model.Vec3{X: kp.X, Y: kp.Y, Z: kp.Z},
				Confidence: kp.Confidence,
			}
		}
		s.Pose = pose
	default:
		if req.Orientation == nil {
			return model.SensorSample{}, fmt.Errorf("%s sample requires orientation", src)
		}
		q := req.Orientation
		s.Motion = &model.MotionFrame{Orientation: model.Quat{W: q.W, X: q.X, Y: q.Y, Z: q.Z}}
	}
	return s, nil
}

// HandlePostSample handles POST /samples requests.
func (h *SamplesHandler) HandlePostSample(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_sample"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req sampleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSampleBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sample, err := req.toSample()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	switch err := h.ingester.Ingest(sample); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusConflict, "not_started", WrapKind(op, ErrConflict, err))
	case errors.Is(err, ingest.ErrSourceDisabled):
		writeError(w, http.StatusConflict, "source_disabled", WrapKind(op, ErrConflict, err))
	case errors.Is(err, ingest.ErrOutOfOrder):
		writeError(w, http.StatusConflict, "out_of_order", WrapKind(op, ErrConflict, err))
	case errors.Is(err, ingest.ErrInvalidSample):
		writeError(w, http.StatusBadRequest, "invalid_sample", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
	}
}
