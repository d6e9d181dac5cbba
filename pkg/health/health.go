package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/motion-gate/pkg/mqtt"
	"github.com/saaga0h/motion-gate/pkg/postgres"
	"github.com/saaga0h/motion-gate/pkg/redis"
)

// Checker provides health check functionality for agents
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	logger   *slog.Logger
}

// NewChecker creates a new health checker with the given dependencies.
// postgresClient may be nil when the transition log is disabled.
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, postgresClient postgres.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: postgresClient,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis"`
	MQTT     string `json:"mqtt"`
	Postgres string `json:"postgres"`
}

// HandlerFunc returns an HTTP handler function for health checks.
// Returns 200 if the process is alive without checking dependencies.
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		h.write(w, http.StatusOK, response)
	}
}

// DetailedHandlerFunc returns a handler that checks all dependencies
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		services := &Services{
			Redis:    "disconnected",
			MQTT:     "disconnected",
			Postgres: "disabled",
		}

		if h.mqtt != nil && h.mqtt.IsConnected() {
			services.MQTT = "connected"
		}

		if h.redis != nil {
			if err := h.redis.Ping(ctx); err == nil {
				services.Redis = "connected"
			} else {
				h.logger.Warn("Redis health check failed", "error", err)
			}
		}

		if h.postgres != nil {
			services.Postgres = "disconnected"
			status, err := h.postgres.HealthCheck(ctx)
			if err == nil && status.Connected {
				services.Postgres = "connected"
			}
		}

		// Postgres is optional, only its disconnection degrades the agent
		status := "healthy"
		statusCode := http.StatusOK
		if services.Redis == "disconnected" || services.MQTT == "disconnected" || services.Postgres == "disconnected" {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		}
		h.write(w, statusCode, response)
	}
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
