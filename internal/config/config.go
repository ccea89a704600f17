// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New(); Load layers a YAML file and env vars on top.
// - Durations are expressed in milliseconds and tick rates in Hz so that
//   env overrides stay flat scalars.
package config

import "time"

// CueRule is the declarative, file-loadable form of a coaching rule.
// Condition fields are interpreted by the cue package.
type CueRule struct {
	ID            string   `koanf:"id"`
	Priority      int      `koanf:"priority"`
	Channels      []string `koanf:"channels"`
	Severity      string   `koanf:"severity"`
	Feature       string   `koanf:"feature"`
	Op            string   `koanf:"op"` // "above" or "below"
	Threshold     float64  `koanf:"threshold"`
	Phases        []string `koanf:"phases"`
	MinConfidence float64  `koanf:"min_confidence"`
	PersistenceMS int      `koanf:"persistence_ms"`
	CooldownMS    int      `koanf:"cooldown_ms"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the host HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// Exercise selects the movement family for the session.
	Exercise string `koanf:"exercise"`

	// TickHz is the fusion tick rate.
	TickHz int `koanf:"tick_hz"`

	// MaxSkewTicks is the stale-sample window in tick periods.
	MaxSkewTicks float64 `koanf:"max_skew_ticks"`

	// BufferCapacity bounds each per-source sample ring.
	BufferCapacity int `koanf:"buffer_capacity"`

	// HysteresisTicks and DegradedHysteresisTicks set how many consecutive
	// qualifying ticks commit a phase transition.
	HysteresisTicks         int `koanf:"hysteresis_ticks"`
	DegradedHysteresisTicks int `koanf:"degraded_hysteresis_ticks"`

	// LowConfidence is the fused confidence below which output is degraded.
	LowConfidence float64 `koanf:"low_confidence"`

	// CameraWeight and ConsistencyWeight tune confidence fusion.
	CameraWeight      float64 `koanf:"camera_weight"`
	ConsistencyWeight float64 `koanf:"consistency_weight"`

	// Calibration tunables.
	NeutralFrames        int     `koanf:"neutral_frames"`
	NeutralMinConfidence float64 `koanf:"neutral_min_confidence"`
	CalibrationTimeoutMS int     `koanf:"calibration_timeout_ms"`
	DriftThresholdDeg    float64 `koanf:"drift_threshold_deg"`

	// Capability probe results reported by the host platform. Wearable is
	// one of unavailable, paired_only, installed_not_reachable, ready.
	CameraAvailable    bool   `koanf:"camera_available"`
	HeadphoneAvailable bool   `koanf:"headphone_available"`
	Wearable           string `koanf:"wearable"`

	// TelemetryEveryTicks sets the companion telemetry cadence.
	TelemetryEveryTicks int `koanf:"telemetry_every_ticks"`

	// MQTT companion transport; an empty broker disables publishing.
	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTClientID string `koanf:"mqtt_client_id"`
	MQTTTopic    string `koanf:"mqtt_topic"`

	// CueRules replaces the built-in rule set of the exercise when non-empty.
	CueRules []CueRule `koanf:"cue_rules"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9090",
		Exercise:                "squat",
		TickHz:                  30,
		MaxSkewTicks:            1.5,
		BufferCapacity:          8,
		HysteresisTicks:         3,
		DegradedHysteresisTicks: 5,
		LowConfidence:           0.4,
		CameraWeight:            0.7,
		ConsistencyWeight:       0.3,
		NeutralFrames:           20,
		NeutralMinConfidence:    0.8,
		CalibrationTimeoutMS:    5000,
		DriftThresholdDeg:       20,
		CameraAvailable:         true,
		HeadphoneAvailable:      true,
		Wearable:                "unavailable",
		TelemetryEveryTicks:     15,
		MQTTClientID:            "repsense-core",
		MQTTTopic:               "repsense/telemetry",
	}
}

// TickPeriod returns the duration of one fusion tick.
func (c *Config) TickPeriod() time.Duration {
	if c.TickHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.TickHz)
}

// MaxSkew returns the stale-sample threshold as a duration.
func (c *Config) MaxSkew() time.Duration {
	return time.Duration(c.MaxSkewTicks * float64(c.TickPeriod()))
}

// CalibrationTimeout returns the neutral-capture timeout.
func (c *Config) CalibrationTimeout() time.Duration {
	return time.Duration(c.CalibrationTimeoutMS) * time.Millisecond
}
