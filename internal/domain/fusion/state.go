package fusion

import (
	"time"

	"github.com/okian/repsense/internal/domain/features"
	"github.com/okian/repsense/internal/domain/model"
)

// BodyState is the single fused estimate of one tick. It is handed to
// downstream stages by value and its feature cache has no setters, so
// consumers cannot alter it.
type BodyState struct {
	Timestamp  time.Duration
	Features   *features.Cache
	Confidence float64
	Mode       model.DegradationMode
	Present    model.SourceSet

	// Degraded is set when Confidence is below the engine's low threshold
	// or the mode is unsupported.
	Degraded bool

	CameraConfidence float64
	// Consistency is the mean agreement of auxiliary devices with the
	// camera, or -1 when no device could be checked.
	Consistency    float64
	ProfileVersion int
}

// Tracking reports whether the state carries usable features.
func (b BodyState) Tracking() bool {
	return b.Mode.Supported() && b.Features.Len() > 0
}

// Feature reads one cached value.
func (b BodyState) Feature(name features.Name) (float64, bool) {
	return b.Features.Get(name)
}
