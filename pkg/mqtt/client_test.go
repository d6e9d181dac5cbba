package mqtt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/motion-gate/pkg/config"
)

const testBrokerPort = 18831

// startBroker spins up an in-process MQTT broker
func startBroker(t *testing.T, port int) {
	t.Helper()

	server := mochi.New(nil)
	require.NoError(t, server.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		Address: fmt.Sprintf("127.0.0.1:%d", port),
	})))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { server.Close() })
}

func newTestClient(t *testing.T, port int, clientID string) Client {
	t.Helper()

	cfg := config.NewConfig()
	cfg.MQTTBroker = "127.0.0.1"
	cfg.MQTTPort = port
	cfg.MQTTClientID = clientID

	client := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(client.Disconnect)
	return client
}

func TestClientRoundTrip(t *testing.T) {
	startBroker(t, testBrokerPort)

	sub := newTestClient(t, testBrokerPort, "test-subscriber")
	pub := newTestClient(t, testBrokerPort, "test-publisher")
	assert.True(t, sub.IsConnected())

	received := make(chan Message, 1)
	require.NoError(t, sub.Subscribe(TopicRawAccelerometer, 0, func(msg Message) {
		received <- msg
	}))

	payload := []byte(`{"data":{"x":0.1,"y":0.2,"z":9.8,"timestamp":1000}}`)
	require.NoError(t, pub.Publish(RawAccelerometerTopic("phone-1"), 0, false, payload))

	select {
	case msg := <-received:
		assert.Equal(t, "motiongate/raw/accelerometer/phone-1", msg.Topic())
		assert.Equal(t, payload, msg.Payload())
		assert.False(t, msg.Retained())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestClientRetainedState(t *testing.T) {
	startBroker(t, testBrokerPort+1)

	pub := newTestClient(t, testBrokerPort+1, "test-state-publisher")
	require.NoError(t, pub.Publish(StateTopic("phone-1"), 1, true, []byte(`{"isMoving":true}`)))

	// A late subscriber still sees the retained state
	sub := newTestClient(t, testBrokerPort+1, "test-state-subscriber")
	received := make(chan Message, 1)
	require.NoError(t, sub.Subscribe(StateTopic("+"), 1, func(msg Message) {
		received <- msg
	}))

	select {
	case msg := <-received:
		assert.Equal(t, "motiongate/state/phone-1", msg.Topic())
		assert.True(t, msg.Retained())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for retained message")
	}
}

func TestConnectTimeout(t *testing.T) {
	cfg := config.NewConfig()
	cfg.MQTTBroker = "127.0.0.1"
	cfg.MQTTPort = testBrokerPort + 2 // nothing listening

	client := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := client.Connect(ctx)
	assert.Error(t, err)
}

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, "motiongate/gps/request/phone-1", GPSRequestTopic("phone-1"))
	assert.Equal(t, "motiongate/gps/fix/phone-1", GPSFixTopic("phone-1"))

	tests := []struct {
		topic string
		want  string
	}{
		{"motiongate/raw/accelerometer/phone-1", "phone-1"},
		{"motiongate/gps/fix/tracker", "tracker"},
		{"motiongate/raw/accelerometer/", ""},
		{"nodevice", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeviceFromTopic(tt.topic), tt.topic)
	}

	assert.True(t, IsGPSFixTopic(GPSFixTopic("a")))
	assert.False(t, IsGPSFixTopic(RawAccelerometerTopic("a")))
}
