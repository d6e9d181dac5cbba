package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sample is one recorded accelerometer reading
type Sample struct {
	Timestamp int64 // Unix milliseconds
	X, Y, Z   float64
}

// Dataset is a named sequence of samples, optionally tied to a preset
type Dataset struct {
	Name    string
	Preset  string
	Samples []Sample
}

// LoadFile loads a dataset from a CSV recording or a YAML scenario,
// chosen by file extension
func LoadFile(path string) (*Dataset, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		scen, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		return &Dataset{Name: scen.Name, Preset: scen.Preset, Samples: scen.Expand()}, nil

	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset: %w", err)
		}
		defer f.Close()

		samples, err := LoadCSV(f)
		if err != nil {
			return nil, err
		}
		return &Dataset{Name: name, Samples: samples}, nil

	default:
		return nil, fmt.Errorf("unsupported dataset format %q (expected .csv, .yaml or .yml)", filepath.Ext(path))
	}
}

// LoadCSV reads timestamp,x,y,z rows. A leading header row is skipped.
func LoadCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var samples []Sample
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "timestamp") {
			continue
		}

		sample, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, sample)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset contains no samples")
	}
	return samples, nil
}

func parseRecord(record []string) (Sample, error) {
	ts, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid timestamp %q", record[0])
	}

	var axes [3]float64
	for i := range axes {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid axis value %q", record[i+1])
		}
		axes[i] = v
	}

	return Sample{Timestamp: int64(math.Round(ts)), X: axes[0], Y: axes[1], Z: axes[2]}, nil
}
