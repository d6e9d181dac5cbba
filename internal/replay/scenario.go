package replay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/saaga0h/motion-gate/internal/motion"
)

const (
	defaultIntervalMs = 50
	standardGravity   = 9.81
)

// Scenario describes synthetic motion as a sequence of segments
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Preset      string    `yaml:"preset"`
	StartMs     int64     `yaml:"start_ms"`
	Segments    []Segment `yaml:"segments"`
}

// Segment is a stretch of constant-amplitude shaking on the X axis.
// Amplitude 0 is rest. Spike, when set, replaces the middle sample's X value.
type Segment struct {
	Description string   `yaml:"description"`
	DurationMs  int64    `yaml:"duration_ms"`
	IntervalMs  int64    `yaml:"interval_ms"`
	Amplitude   float64  `yaml:"amplitude"`
	Gravity     *float64 `yaml:"gravity,omitempty"`
	Spike       *float64 `yaml:"spike,omitempty"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return LoadScenarioFromBytes(data)
}

// LoadScenarioFromBytes loads a scenario from byte data
func LoadScenarioFromBytes(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	return &scenario, nil
}

// Validate performs validation checks on a loaded scenario
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if s.Preset != "" {
		if _, err := motion.PresetByName(s.Preset); err != nil {
			return err
		}
	}

	if len(s.Segments) == 0 {
		return fmt.Errorf("at least one segment is required")
	}

	for i, seg := range s.Segments {
		if seg.DurationMs <= 0 {
			return fmt.Errorf("segment %d: duration_ms must be positive", i)
		}
		if seg.IntervalMs < 0 {
			return fmt.Errorf("segment %d: interval_ms cannot be negative", i)
		}
		if seg.Amplitude < 0 {
			return fmt.Errorf("segment %d: amplitude cannot be negative", i)
		}
	}

	return nil
}

// Expand turns the segments into samples. The X axis alternates between
// +amplitude and -amplitude so the horizontal magnitude stays at amplitude.
func (s *Scenario) Expand() []Sample {
	var samples []Sample
	ts := s.StartMs

	for _, seg := range s.Segments {
		interval := seg.IntervalMs
		if interval == 0 {
			interval = defaultIntervalMs
		}
		gravity := standardGravity
		if seg.Gravity != nil {
			gravity = *seg.Gravity
		}

		n := int(seg.DurationMs / interval)
		for i := 0; i < n; i++ {
			x := seg.Amplitude
			if i%2 == 1 && x != 0 {
				x = -x
			}
			if seg.Spike != nil && i == n/2 {
				x = *seg.Spike
			}
			samples = append(samples, Sample{Timestamp: ts, X: x, Z: gravity})
			ts += interval
		}
	}

	return samples
}
