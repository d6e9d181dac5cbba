package gating

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/saaga0h/motion-gate/internal/chart"
	"github.com/saaga0h/motion-gate/internal/motion"
)

const (
	defaultChartWidth  = 800
	defaultChartHeight = 300
	maxChartSide       = 4000
	defaultListLimit   = 50
)

// RegisterRoutes mounts the state and chart endpoints on mux
func (a *Agent) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", a.handleDevices)
	mux.HandleFunc("GET /api/state/{device}", a.handleState)
	mux.HandleFunc("GET /api/transitions/{device}", a.handleTransitions)
	mux.HandleFunc("GET /chart/{device}", a.handleChart)
}

func (a *Agent) handleDevices(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": a.registry.Devices(),
	})
}

// handleState returns the live state of a device, falling back to Redis for
// devices this process has not seen
func (a *Agent) handleState(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device")

	if t, ok := a.registry.Get(deviceID); ok {
		a.writeJSON(w, http.StatusOK, t.Feed().Current())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	state, err := a.storage.LoadState(ctx, deviceID)
	if err != nil {
		a.logger.Error("Failed to load state", "device", deviceID, "error", err)
		http.Error(w, "failed to load state", http.StatusInternalServerError)
		return
	}
	if state == nil {
		http.Error(w, "unknown device", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, state)
}

// handleTransitions lists recent transitions from Postgres when configured,
// else from the Redis list
func (a *Agent) handleTransitions(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device")
	limit := queryInt(r, "limit", defaultListLimit, 1000)

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	if a.transitions != nil {
		transitions, err := a.transitions.RecentTransitions(ctx, []string{deviceID}, limit)
		if err != nil {
			a.logger.Error("Failed to load transitions", "device", deviceID, "error", err)
			http.Error(w, "failed to load transitions", http.StatusInternalServerError)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]interface{}{"transitions": transitions})
		return
	}

	states, err := a.storage.LoadTransitions(ctx, deviceID, limit)
	if err != nil {
		a.logger.Error("Failed to load transitions", "device", deviceID, "error", err)
		http.Error(w, "failed to load transitions", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"transitions": states})
}

// handleChart serves /chart/{device} as an interactive page and
// /chart/{device}.png as a rendered image
func (a *Agent) handleChart(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device")
	asPNG := strings.HasSuffix(deviceID, ".png")
	deviceID = strings.TrimSuffix(deviceID, ".png")

	history, fixes, err := a.chartData(r.Context(), deviceID)
	if err != nil {
		a.logger.Error("Failed to load chart data", "device", deviceID, "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if len(history) == 0 {
		http.Error(w, "unknown device", http.StatusNotFound)
		return
	}

	if asPNG {
		width := queryInt(r, "width", defaultChartWidth, maxChartSide)
		height := queryInt(r, "height", defaultChartHeight, maxChartSide)
		shapes := chart.Transform(history, fixes, float64(width), float64(height))

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := chart.RenderPNG(w, shapes, width, height); err != nil {
			a.logger.Error("Failed to render chart", "device", deviceID, "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chart.RenderHTML(w, deviceID, history); err != nil {
		a.logger.Error("Failed to render chart page", "device", deviceID, "error", err)
	}
}

func (a *Agent) chartData(ctx context.Context, deviceID string) ([]motion.State, []chart.FixEvent, error) {
	if t, ok := a.registry.Get(deviceID); ok {
		history, fixes := t.Snapshot()
		return history, fixes, nil
	}

	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	history, err := a.storage.LoadHistory(ctx, deviceID, a.cfg.MaxStateHistory)
	return history, nil, err
}

func (a *Agent) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode response", "error", err)
	}
}

// queryInt reads a positive integer query parameter, clamped to max
func queryInt(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
