package gating

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saaga0h/motion-gate/internal/chart"
	"github.com/saaga0h/motion-gate/internal/diag"
	"github.com/saaga0h/motion-gate/internal/motion"
	"github.com/saaga0h/motion-gate/pkg/config"
	"github.com/saaga0h/motion-gate/pkg/mqtt"
	"github.com/saaga0h/motion-gate/pkg/postgres"
	"github.com/saaga0h/motion-gate/pkg/redis"
)

const (
	// inboxSize bounds messages waiting for the processing loop
	inboxSize = 1024

	storageTimeout = 5 * time.Second
)

// Agent receives accelerometer samples, runs one motion estimator per device,
// publishes the motion state and asks devices for a GPS fix when they start moving
type Agent struct {
	mqtt        mqtt.Client
	redis       redis.Client
	postgres    postgres.Client
	processor   *Processor
	storage     *Storage
	transitions *TransitionStore
	registry    *Registry
	limiter     *RequestLimiter
	cfg         *config.Config
	logger      *slog.Logger

	inbox chan mqtt.Message

	// quit stops run; running tracks it so Stop closes stores only after
	// the message in flight has finished
	quit     chan struct{}
	quitOnce sync.Once
	running  sync.WaitGroup
}

// NewAgent creates a new motion agent. pgClient may be nil, which disables
// the Postgres transition log.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client,
	cfg *config.Config, estimatorCfg motion.Config, sink diag.Sink, logger *slog.Logger) *Agent {
	a := &Agent{
		mqtt:      mqttClient,
		redis:     redisClient,
		postgres:  pgClient,
		processor: NewProcessor(logger),
		storage:   NewStorage(redisClient, cfg, logger),
		limiter:   NewRequestLimiter(int64(cfg.MinGPSRequestIntervalMs)),
		cfg:       cfg,
		logger:    logger,
		inbox:     make(chan mqtt.Message, inboxSize),
		quit:      make(chan struct{}),
	}
	if pgClient != nil {
		a.transitions = NewTransitionStore(pgClient, logger)
	}
	a.registry = NewRegistry(estimatorCfg, cfg.MaxStateHistory, sink, a.observe)
	return a
}

// Registry returns the per-device trackers
func (a *Agent) Registry() *Registry {
	return a.registry
}

// Start connects to the brokers and stores, subscribes, and processes
// messages until ctx is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting motion agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress())

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	if a.postgres != nil {
		if err := a.postgres.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if err := a.transitions.EnsureSchema(ctx); err != nil {
			return err
		}
	} else {
		a.logger.Info("Postgres not configured, transition log disabled")
	}

	a.running.Add(1)
	go a.run(ctx)

	for _, topic := range a.cfg.AccelTopics {
		if err := a.mqtt.Subscribe(topic, 0, a.handleMessage); err != nil {
			a.logger.Error("Failed to subscribe to topic", "topic", topic, "error", err)
			// Continue subscribing to other topics even if one fails
			continue
		}
	}
	if err := a.mqtt.Subscribe(mqtt.TopicGPSFix, 1, a.handleMessage); err != nil {
		a.logger.Error("Failed to subscribe to topic", "topic", mqtt.TopicGPSFix, "error", err)
	}

	a.logger.Info("Motion agent started and ready to receive samples",
		"subscribed_topics", strings.Join(a.cfg.AccelTopics, ", "))

	<-ctx.Done()
	a.logger.Info("Motion agent stopping")

	return nil
}

// Stop disconnects from the broker, waits for the processing loop to
// finish its current message, then closes the stores
func (a *Agent) Stop() error {
	a.logger.Info("Stopping motion agent")

	a.mqtt.Disconnect()

	a.quitOnce.Do(func() { close(a.quit) })
	a.running.Wait()

	if a.postgres != nil {
		if err := a.postgres.Disconnect(); err != nil {
			a.logger.Error("Error closing Postgres connection", "error", err)
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Motion agent stopped")
	return nil
}

// handleMessage queues a message for the processing loop. The MQTT client
// calls it on its delivery goroutine, which must not block on publishes.
func (a *Agent) handleMessage(msg mqtt.Message) {
	select {
	case a.inbox <- msg:
	default:
		a.logger.Warn("Inbox full, dropping message", "topic", msg.Topic())
	}
}

// run processes queued messages one at a time so each device sees its
// samples in arrival order
func (a *Agent) run(ctx context.Context) {
	defer a.running.Done()
	for {
		select {
		case <-a.quit:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case msg := <-a.inbox:
			a.processMessage(msg)
		case <-a.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) processMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	if mqtt.IsGPSFixTopic(topic) {
		a.handleFix(topic, payload)
		return
	}
	a.handleSample(topic, payload)
}

func (a *Agent) handleSample(topic string, payload []byte) {
	sample, err := a.processor.ParseSample(topic, payload)
	if err != nil {
		a.logger.Error("Failed to parse sample", "topic", topic, "error", err)
		return
	}

	a.registry.GetOrCreate(sample.DeviceID).Process(*sample)
}

func (a *Agent) handleFix(topic string, payload []byte) {
	fix, err := a.processor.ParseFix(topic, payload)
	if err != nil {
		a.logger.Error("Failed to parse GPS fix", "topic", topic, "error", err)
		return
	}

	tracker := a.registry.GetOrCreate(fix.DeviceID)
	if fix.Timestamp == 0 {
		fix.Timestamp = tracker.Feed().Current().Timestamp
	}
	tracker.RecordFix(chart.FixEvent{
		Timestamp: fix.Timestamp,
		Label:     fmt.Sprintf("%.5f,%.5f", fix.Latitude, fix.Longitude),
	})

	// A fresh fix satisfies any request due within the interval
	a.limiter.Record(fix.DeviceID, fix.Timestamp)

	if a.transitions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		if _, err := a.transitions.RecordFix(ctx, fix); err != nil {
			a.logger.Error("Failed to record GPS fix", "device", fix.DeviceID, "error", err)
		}
	}

	a.logger.Info("GPS fix received",
		"device", fix.DeviceID,
		"latitude", fix.Latitude,
		"longitude", fix.Longitude,
		"accuracy_m", fix.AccuracyM)
}

// observe subscribes the agent to a new tracker's feed. The first delivery
// is the replayed initial state and is only remembered.
func (a *Agent) observe(t *Tracker) {
	deviceID := t.DeviceID()
	var prev motion.State
	primed := false

	t.Feed().Subscribe(func(s motion.State) {
		if !primed {
			prev, primed = s, true
			return
		}
		a.onState(deviceID, prev, s)
		prev = s
	})
}

func (a *Agent) onState(deviceID string, prev, state motion.State) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	if err := a.publishState(deviceID, state); err != nil {
		a.logger.Error("Failed to publish motion state", "device", deviceID, "error", err)
	}

	if err := a.storage.StoreState(ctx, deviceID, state); err != nil {
		a.logger.Error("Failed to store motion state", "device", deviceID, "error", err)
		// Continue, the transition and GPS request do not depend on Redis
	}

	if prev.IsMoving == state.IsMoving {
		return
	}

	a.logger.Info("Motion state changed",
		"device", deviceID,
		"state", state.Label(),
		"rms_accel", state.RMSAccel,
		"moving_for_ms", state.MovingForMs,
		"still_for_ms", state.StillForMs)

	if err := a.storage.StoreTransition(ctx, deviceID, state); err != nil {
		a.logger.Error("Failed to store transition", "device", deviceID, "error", err)
	}

	if a.transitions != nil {
		if _, err := a.transitions.RecordTransition(ctx, deviceID, state); err != nil {
			a.logger.Error("Failed to record transition", "device", deviceID, "error", err)
		}
	}

	if state.IsMoving {
		if err := a.requestGPS(deviceID, state); err != nil {
			a.logger.Error("Failed to request GPS fix", "device", deviceID, "error", err)
		}
	}
}

// publishState publishes the retained state for late subscribers
func (a *Agent) publishState(deviceID string, state motion.State) error {
	payload, err := a.processor.BuildStatePayload(deviceID, state)
	if err != nil {
		return err
	}
	if err := a.mqtt.Publish(mqtt.StateTopic(deviceID), 0, true, payload); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}
	return nil
}

// requestGPS asks the device for a location fix unless one was requested
// within the minimum interval
func (a *Agent) requestGPS(deviceID string, state motion.State) error {
	if !a.limiter.Allow(deviceID, state.Timestamp) {
		a.logger.Debug("GPS request rate limited", "device", deviceID)
		return nil
	}

	requestID := uuid.NewString()
	payload, err := a.processor.BuildGPSRequestPayload(deviceID, requestID, state)
	if err != nil {
		return err
	}

	topic := mqtt.GPSRequestTopic(deviceID)
	if err := a.mqtt.Publish(topic, 1, false, payload); err != nil {
		return fmt.Errorf("failed to publish GPS request: %w", err)
	}

	a.logger.Info("Requested GPS fix", "device", deviceID, "request_id", requestID, "topic", topic)
	return nil
}
