package motion

import (
	"errors"
	"fmt"
	"strings"
)

// Preset names accepted by PresetByName
const (
	PresetDefault = "default"
	PresetTuned   = "tuned"
)

// ErrUnknownPreset is returned by PresetByName for unrecognized names
var ErrUnknownPreset = errors.New("unknown motion preset")

// Config holds the tunable parameters of the estimator. It is a value type and
// is copied into the estimator at construction, so later changes by the caller
// never reach a running estimator.
type Config struct {
	// FilterAlpha is the low-pass coefficient for the gravity estimate,
	// g = alpha*g + (1-alpha)*raw. Range [0,1].
	FilterAlpha float64 `yaml:"filter_alpha" json:"filterAlpha"`

	// AccelSmoothingAlpha smooths the raw horizontal magnitude into the
	// diagnostic filtered signal. Range [0,1].
	AccelSmoothingAlpha float64 `yaml:"accel_smoothing_alpha" json:"accelSmoothingAlpha"`

	// MotionStartThreshold is the level above which moving time accumulates. Must be > 0.
	MotionStartThreshold float64 `yaml:"motion_start_threshold" json:"motionStartThreshold"`

	// MotionStopThreshold is the level below which still time accumulates.
	// Must be >= 0 and should sit below MotionStartThreshold.
	MotionStopThreshold float64 `yaml:"motion_stop_threshold" json:"motionStopThreshold"`

	// StartDelayMs is the sustained moving time required to flip STILL to MOVING.
	StartDelayMs int64 `yaml:"start_delay_ms" json:"startDelayMs"`

	// StopDelayMs is the sustained still time required to flip MOVING to STILL.
	StopDelayMs int64 `yaml:"stop_delay_ms" json:"stopDelayMs"`

	// RMSAlpha smooths the windowed RMS. Range [0,1], default 0.3.
	RMSAlpha float64 `yaml:"rms_alpha" json:"rmsAlpha"`

	// SpikeThreshold is the smoothed RMS above which a sample is treated as a
	// handling spike. Must be > 0, default 1.5.
	SpikeThreshold float64 `yaml:"spike_threshold" json:"spikeThreshold"`
}

// DefaultConfig returns the conservative preset
func DefaultConfig() Config {
	return Config{
		FilterAlpha:          0.8,
		AccelSmoothingAlpha:  0.3,
		MotionStartThreshold: 0.5,
		MotionStopThreshold:  0.3,
		StartDelayMs:         3000,
		StopDelayMs:          1500,
		RMSAlpha:             0.3,
		SpikeThreshold:       1.5,
	}
}

// TunedConfig returns the preset validated against recorded walking and
// desk datasets. It reacts faster to walking and holds MOVING longer through
// short pauses such as traffic lights.
func TunedConfig() Config {
	return Config{
		FilterAlpha:          0.9,
		AccelSmoothingAlpha:  0.2,
		MotionStartThreshold: 0.35,
		MotionStopThreshold:  0.18,
		StartDelayMs:         2000,
		StopDelayMs:          4000,
		RMSAlpha:             0.3,
		SpikeThreshold:       1.5,
	}
}

// PresetByName resolves a preset name (case-insensitive)
func PresetByName(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetDefault:
		return DefaultConfig(), nil
	case PresetTuned:
		return TunedConfig(), nil
	default:
		return Config{}, fmt.Errorf("%w: %q (must be %s or %s)", ErrUnknownPreset, name, PresetDefault, PresetTuned)
	}
}

// ConfigError describes a parameter outside its documented range
type ConfigError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid motion config: %s=%g %s", e.Field, e.Value, e.Reason)
}

// Validate checks the documented ranges. The estimator never calls it; it is
// available to callers that want to reject bad configuration up front.
func (c Config) Validate() error {
	alphas := []struct {
		name  string
		value float64
	}{
		{"filter_alpha", c.FilterAlpha},
		{"accel_smoothing_alpha", c.AccelSmoothingAlpha},
		{"rms_alpha", c.RMSAlpha},
	}
	for _, a := range alphas {
		if !(a.value >= 0 && a.value <= 1) {
			return &ConfigError{Field: a.name, Value: a.value, Reason: "must be within [0,1]"}
		}
	}

	if !(c.MotionStartThreshold > 0) {
		return &ConfigError{Field: "motion_start_threshold", Value: c.MotionStartThreshold, Reason: "must be > 0"}
	}
	if !(c.MotionStopThreshold >= 0) {
		return &ConfigError{Field: "motion_stop_threshold", Value: c.MotionStopThreshold, Reason: "must be >= 0"}
	}
	if c.MotionStopThreshold >= c.MotionStartThreshold {
		return &ConfigError{Field: "motion_stop_threshold", Value: c.MotionStopThreshold,
			Reason: fmt.Sprintf("must be below motion_start_threshold (%g)", c.MotionStartThreshold)}
	}
	if c.StartDelayMs < 0 {
		return &ConfigError{Field: "start_delay_ms", Value: float64(c.StartDelayMs), Reason: "must be >= 0"}
	}
	if c.StopDelayMs < 0 {
		return &ConfigError{Field: "stop_delay_ms", Value: float64(c.StopDelayMs), Reason: "must be >= 0"}
	}
	if !(c.SpikeThreshold > 0) {
		return &ConfigError{Field: "spike_threshold", Value: c.SpikeThreshold, Reason: "must be > 0"}
	}

	return nil
}
