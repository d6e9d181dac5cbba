package gating

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/saaga0h/motion-gate/internal/motion"
	"github.com/saaga0h/motion-gate/pkg/mqtt"
)

// Processor handles parsing of device messages and building of outgoing payloads
type Processor struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a new message processor
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{
		logger: logger,
		now:    time.Now,
	}
}

// Sample is one parsed accelerometer reading
type Sample struct {
	DeviceID  string
	X, Y, Z   float64
	Timestamp int64 // Unix milliseconds, device clock
}

// Fix is one parsed GPS fix report
type Fix struct {
	DeviceID  string
	Latitude  float64
	Longitude float64
	AccuracyM float64
	Timestamp int64 // Unix milliseconds, 0 when the device did not send one
}

type samplePayload struct {
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Z         *float64 `json:"z"`
	Timestamp *float64 `json:"timestamp"`
}

type fixPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Timestamp *float64 `json:"timestamp"`
}

// ParseSample parses an accelerometer message.
// Topic pattern: motiongate/raw/accelerometer/{device}
// Payload: {"data":{"x":..,"y":..,"z":..,"timestamp":ms}} or the bare inner object.
// A missing timestamp falls back to the receive time.
func (p *Processor) ParseSample(topic string, payload []byte) (*Sample, error) {
	deviceID := mqtt.DeviceFromTopic(topic)
	if deviceID == "" {
		p.logger.Warn("Invalid topic format", "topic", topic)
		return nil, fmt.Errorf("invalid topic format: %s (expected device id as last level)", topic)
	}

	var data samplePayload
	if err := unmarshalData(payload, &data); err != nil {
		return nil, err
	}
	if data.X == nil || data.Y == nil || data.Z == nil {
		return nil, fmt.Errorf("sample from %s is missing an axis", deviceID)
	}

	ts := p.now().UnixMilli()
	if data.Timestamp != nil {
		ts = int64(math.Round(*data.Timestamp))
	}

	return &Sample{
		DeviceID:  deviceID,
		X:         *data.X,
		Y:         *data.Y,
		Z:         *data.Z,
		Timestamp: ts,
	}, nil
}

// ParseFix parses a GPS fix report.
// Topic pattern: motiongate/gps/fix/{device}
func (p *Processor) ParseFix(topic string, payload []byte) (*Fix, error) {
	deviceID := mqtt.DeviceFromTopic(topic)
	if deviceID == "" {
		return nil, fmt.Errorf("invalid topic format: %s (expected device id as last level)", topic)
	}

	var data fixPayload
	if err := unmarshalData(payload, &data); err != nil {
		return nil, err
	}
	if data.Latitude == nil || data.Longitude == nil {
		return nil, fmt.Errorf("fix from %s is missing coordinates", deviceID)
	}
	if math.Abs(*data.Latitude) > 90 || math.Abs(*data.Longitude) > 180 {
		return nil, fmt.Errorf("fix from %s has out of range coordinates", deviceID)
	}

	fix := &Fix{
		DeviceID:  deviceID,
		Latitude:  *data.Latitude,
		Longitude: *data.Longitude,
		AccuracyM: data.Accuracy,
	}
	if data.Timestamp != nil {
		fix.Timestamp = int64(math.Round(*data.Timestamp))
	}
	return fix, nil
}

// unmarshalData decodes the "data" wrapper when present, else the payload itself
func unmarshalData(payload []byte, v interface{}) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	body := payload
	if len(wrapper.Data) > 0 && !bytes.Equal(wrapper.Data, []byte("null")) {
		body = wrapper.Data
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// BuildStatePayload creates the retained state message for a device
func (p *Processor) BuildStatePayload(deviceID string, state motion.State) ([]byte, error) {
	payload := map[string]interface{}{
		"data":         state,
		"device_id":    deviceID,
		"state":        state.Label(),
		"published_at": p.now().UTC().Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state payload: %w", err)
	}
	return data, nil
}

// BuildGPSRequestPayload creates the payload asking a device for a location fix
func (p *Processor) BuildGPSRequestPayload(deviceID, requestID string, state motion.State) ([]byte, error) {
	payload := map[string]interface{}{
		"request_id":   requestID,
		"device_id":    deviceID,
		"reason":       "motion_started",
		"requested_at": state.Timestamp,
		"rms_accel":    state.RMSAccel,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GPS request payload: %w", err)
	}
	return data, nil
}
