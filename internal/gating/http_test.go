package gating

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/motion-gate/internal/motion"
)

func serve(t *testing.T, a *Agent, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDevicesEndpoint(t *testing.T) {
	agent, _, _ := newTestAgent(t, nil, 30000)
	feed(agent, "phone-2", 0, 200, 0)
	feed(agent, "phone-1", 0, 200, 0)

	rec := serve(t, agent, "/api/devices")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Devices []string `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"phone-1", "phone-2"}, body.Devices)
}

func TestStateEndpoint(t *testing.T) {
	agent, _, _ := newTestAgent(t, nil, 30000)
	walk(agent, "phone-1", 0)

	t.Run("live device", func(t *testing.T) {
		rec := serve(t, agent, "/api/state/phone-1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var state motion.State
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		assert.Equal(t, int64(7950), state.Timestamp)
		assert.False(t, state.IsMoving)
	})

	t.Run("stored device", func(t *testing.T) {
		err := agent.storage.StoreState(context.Background(), "parked",
			motion.State{IsMoving: true, RMSAccel: 0.8, Timestamp: 4200})
		require.NoError(t, err)

		rec := serve(t, agent, "/api/state/parked")
		require.Equal(t, http.StatusOK, rec.Code)

		var state motion.State
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		assert.True(t, state.IsMoving)
		assert.Equal(t, int64(4200), state.Timestamp)
	})

	t.Run("unknown device", func(t *testing.T) {
		rec := serve(t, agent, "/api/state/ghost")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTransitionsEndpointFromRedis(t *testing.T) {
	agent, _, _ := newTestAgent(t, nil, 30000)
	walk(agent, "phone-1", 0)

	rec := serve(t, agent, "/api/transitions/phone-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Transitions []motion.State `json:"transitions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Transitions, 2)
	assert.False(t, body.Transitions[0].IsMoving, "newest first")
	assert.True(t, body.Transitions[1].IsMoving)

	rec = serve(t, agent, "/api/transitions/phone-1?limit=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Transitions, 1)
}

func TestChartEndpoint(t *testing.T) {
	agent, _, _ := newTestAgent(t, nil, 30000)
	walk(agent, "phone-1", 0)

	t.Run("html page", func(t *testing.T) {
		rec := serve(t, agent, "/chart/phone-1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "device=phone-1")
	})

	t.Run("png image", func(t *testing.T) {
		rec := serve(t, agent, "/chart/phone-1.png?width=320&height=120")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

		img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 320, img.Bounds().Dx())
		assert.Equal(t, 120, img.Bounds().Dy())
	})

	t.Run("unknown device", func(t *testing.T) {
		rec := serve(t, agent, "/chart/ghost.png")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing", "", 50},
		{"valid", "?limit=7", 7},
		{"negative", "?limit=-3", 50},
		{"garbage", "?limit=abc", 50},
		{"clamped", "?limit=5000", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			assert.Equal(t, tt.want, queryInt(r, "limit", 50, 1000))
		})
	}
}
