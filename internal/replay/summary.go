package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"
)

// Summary condenses a replay for reports
type Summary struct {
	Name           string       `json:"name"`
	Samples        int          `json:"samples"`
	DurationMs     int64        `json:"duration_ms"`
	Transitions    int          `json:"transitions"`
	MovingFraction float64      `json:"moving_fraction"`
	MeanRMS        float64      `json:"mean_rms"`
	StdDevRMS      float64      `json:"stddev_rms"`
	MaxRMS         float64      `json:"max_rms"`
	Events         []Transition `json:"events"`
}

// Summarize computes sample statistics of a replay
func Summarize(name string, result *Result) Summary {
	summary := Summary{
		Name:        name,
		Samples:     len(result.States),
		Transitions: len(result.Transitions),
		Events:      result.Transitions,
	}
	if len(result.States) == 0 {
		return summary
	}

	first, last := result.States[0], result.States[len(result.States)-1]
	summary.DurationMs = last.Timestamp - first.Timestamp

	rms := make([]float64, len(result.States))
	moving := 0
	for i, s := range result.States {
		rms[i] = s.RMSAccel
		if s.IsMoving {
			moving++
		}
		summary.MaxRMS = max(summary.MaxRMS, s.RMSAccel)
	}
	summary.MovingFraction = float64(moving) / float64(len(result.States))

	if len(rms) > 1 {
		summary.MeanRMS, summary.StdDevRMS = stat.MeanStdDev(rms, nil)
	} else {
		summary.MeanRMS = rms[0]
	}

	return summary
}

// SaveSummary saves a JSON summary of a replay
func SaveSummary(summary Summary, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
