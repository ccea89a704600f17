package model

// DegradationMode is the operating behavior assigned to a set of present
// sources.
type DegradationMode string

const (
	ModeVisualOnly     DegradationMode = "visual_only"
	ModeVisualWearable DegradationMode = "visual_wearable"
	ModeVisualHead     DegradationMode = "visual_head"
	ModeFullFusion     DegradationMode = "full_fusion"
	ModeUnsupported    DegradationMode = "unsupported"
)

// Modes lists every mode, used for gauges and docs.
var Modes = []DegradationMode{ModeVisualOnly, ModeVisualWearable, ModeVisualHead, ModeFullFusion, ModeUnsupported}

// ModeFor maps present sources to their mode. Any set without the camera is
// unsupported.
func ModeFor(present SourceSet) DegradationMode {
	if !present.Has(SourceCamera) {
		return ModeUnsupported
	}
	watch, head := present.Has(SourceWatch), present.Has(SourceHeadphone)
	switch {
	case watch && head:
		return ModeFullFusion
	case watch:
		return ModeVisualWearable
	case head:
		return ModeVisualHead
	default:
		return ModeVisualOnly
	}
}

// Supported reports whether the pipeline can track in this mode.
func (m DegradationMode) Supported() bool { return m != ModeUnsupported && m != "" }

// ConfidenceCeiling caps fused confidence for the mode. Visual-only fusion
// has no cross-source check, so its ceiling is reduced.
func (m DegradationMode) ConfidenceCeiling() float64 {
	switch m {
	case ModeFullFusion:
		return 1.0
	case ModeVisualWearable, ModeVisualHead:
		return 0.9
	case ModeVisualOnly:
		return 0.75
	default:
		return 0
	}
}

// ModeNames returns the string form of Modes.
func ModeNames() []string {
	out := make([]string, len(Modes))
	for i, m := range Modes {
		out[i] = string(m)
	}
	return out
}
