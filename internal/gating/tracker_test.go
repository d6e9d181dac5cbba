package gating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/motion-gate/internal/chart"
	"github.com/saaga0h/motion-gate/internal/motion"
)

func TestTrackerHistoryIsBounded(t *testing.T) {
	registry := NewRegistry(motion.DefaultConfig(), 10, nil, nil)
	tracker := registry.GetOrCreate("phone-1")

	for i := 0; i < 25; i++ {
		tracker.Process(Sample{DeviceID: "phone-1", Z: 9.8, Timestamp: int64(i * 50)})
	}

	history, fixes := tracker.Snapshot()
	require.Len(t, history, 10)
	assert.Equal(t, int64(15*50), history[0].Timestamp)
	assert.Equal(t, int64(24*50), history[9].Timestamp)
	assert.Empty(t, fixes)
	assert.Equal(t, history[9], tracker.Feed().Current())
}

func TestTrackerFixesAreBounded(t *testing.T) {
	registry := NewRegistry(motion.DefaultConfig(), 10, nil, nil)
	tracker := registry.GetOrCreate("phone-1")

	for i := 0; i < maxFixEvents+5; i++ {
		tracker.RecordFix(chart.FixEvent{Timestamp: int64(i)})
	}

	_, fixes := tracker.Snapshot()
	require.Len(t, fixes, maxFixEvents)
	assert.Equal(t, int64(5), fixes[0].Timestamp)
}

func TestTrackerSnapshotIsACopy(t *testing.T) {
	registry := NewRegistry(motion.DefaultConfig(), 10, nil, nil)
	tracker := registry.GetOrCreate("phone-1")
	tracker.Process(Sample{Z: 9.8, Timestamp: 100})

	history, _ := tracker.Snapshot()
	history[0].Timestamp = -1

	again, _ := tracker.Snapshot()
	assert.Equal(t, int64(100), again[0].Timestamp)
}

func TestRegistryGetOrCreate(t *testing.T) {
	var created []string
	registry := NewRegistry(motion.DefaultConfig(), 10, nil, func(t *Tracker) {
		created = append(created, t.DeviceID())
	})

	_, ok := registry.Get("phone-1")
	assert.False(t, ok)

	a := registry.GetOrCreate("phone-1")
	b := registry.GetOrCreate("phone-1")
	registry.GetOrCreate("bike")

	assert.Same(t, a, b)
	assert.Equal(t, []string{"phone-1", "bike"}, created)
	assert.Equal(t, []string{"bike", "phone-1"}, registry.Devices())

	got, ok := registry.Get("bike")
	assert.True(t, ok)
	assert.Equal(t, "bike", got.DeviceID())
}

func TestRegistryTrackersAreIndependent(t *testing.T) {
	registry := NewRegistry(motion.DefaultConfig(), 100, nil, nil)
	a := registry.GetOrCreate("a")
	b := registry.GetOrCreate("b")

	for i := 0; i < 10; i++ {
		a.Process(Sample{X: 5, Z: 9.8, Timestamp: int64(i * 50)})
	}
	b.Process(Sample{Z: 9.8, Timestamp: 0})

	ha, _ := a.Snapshot()
	hb, _ := b.Snapshot()
	assert.Len(t, ha, 10)
	assert.Len(t, hb, 1)
	assert.Zero(t, hb[0].RawAccel)
}
