package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/motion-gate/pkg/mqtt"
)

// Publisher streams a dataset to the broker as live accelerometer messages
type Publisher struct {
	client mqtt.Client
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPublisher creates a publisher on a connected client
func NewPublisher(client mqtt.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Publish sends every sample to the device's raw topic. Gaps between samples
// are kept, divided by speed; speed <= 0 publishes without pauses.
func (p *Publisher) Publish(ctx context.Context, deviceID string, samples []Sample, speed float64) error {
	topic := mqtt.RawAccelerometerTopic(deviceID)

	for i, s := range samples {
		if i > 0 && speed > 0 {
			gap := time.Duration(float64(s.Timestamp-samples[i-1].Timestamp)/speed) * time.Millisecond
			if gap > 0 {
				if err := p.sleep(ctx, gap); err != nil {
					return err
				}
			}
		}

		payload, err := json.Marshal(map[string]interface{}{
			"data": map[string]interface{}{
				"x":         s.X,
				"y":         s.Y,
				"z":         s.Z,
				"timestamp": s.Timestamp,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}

		// Publish with QoS 1 to ensure delivery
		if err := p.client.Publish(topic, 1, false, payload); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", topic, err)
		}
	}

	p.logger.Info("Published dataset", "topic", topic, "samples", len(samples))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
