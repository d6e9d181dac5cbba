package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/saaga0h/motion-gate/internal/gating"
	"github.com/saaga0h/motion-gate/pkg/mqtt"
)

// Recorder captures live accelerometer messages into a dataset
type Recorder struct {
	client    mqtt.Client
	processor *gating.Processor
	logger    *slog.Logger

	mu      sync.Mutex
	samples []Sample
}

// NewRecorder creates a recorder on a connected client
func NewRecorder(client mqtt.Client, logger *slog.Logger) *Recorder {
	return &Recorder{
		client:    client,
		processor: gating.NewProcessor(logger),
		logger:    logger,
	}
}

// Start subscribes to the raw accelerometer topic of a device
func (r *Recorder) Start(deviceID string) error {
	topic := mqtt.RawAccelerometerTopic(deviceID)
	if err := r.client.Subscribe(topic, 1, r.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	r.logger.Info("Recording samples", "topic", topic)
	return nil
}

func (r *Recorder) handleMessage(msg mqtt.Message) {
	sample, err := r.processor.ParseSample(msg.Topic(), msg.Payload())
	if err != nil {
		r.logger.Warn("Skipping unparsable sample", "topic", msg.Topic(), "error", err)
		return
	}

	r.mu.Lock()
	r.samples = append(r.samples, Sample{Timestamp: sample.Timestamp, X: sample.X, Y: sample.Y, Z: sample.Z})
	r.mu.Unlock()
}

// Samples returns a copy of the recorded samples
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

// WriteCSV writes the recording in the format LoadCSV reads
func (r *Recorder) WriteCSV(w io.Writer) error {
	return WriteCSV(w, r.Samples())
}

// WriteCSV writes samples as timestamp,x,y,z rows with a header
func WriteCSV(w io.Writer, samples []Sample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "x", "y", "z"}); err != nil {
		return err
	}

	for _, s := range samples {
		record := []string{
			strconv.FormatInt(s.Timestamp, 10),
			strconv.FormatFloat(s.X, 'g', -1, 64),
			strconv.FormatFloat(s.Y, 'g', -1, 64),
			strconv.FormatFloat(s.Z, 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
