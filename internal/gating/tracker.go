package gating

import (
	"sort"
	"sync"

	"github.com/saaga0h/motion-gate/internal/chart"
	"github.com/saaga0h/motion-gate/internal/diag"
	"github.com/saaga0h/motion-gate/internal/motion"
)

// maxFixEvents bounds the fix markers kept per device
const maxFixEvents = 32

// Tracker owns the estimator and state feed of one device. Samples for a
// device are processed one at a time.
type Tracker struct {
	deviceID string

	mu         sync.Mutex
	estimator  *motion.Estimator
	feed       *motion.Feed
	history    []motion.State
	maxHistory int
	fixes      []chart.FixEvent
}

func newTracker(deviceID string, cfg motion.Config, maxHistory int, sink diag.Sink) *Tracker {
	estimator := motion.NewEstimator(cfg, sink.With("device", deviceID))
	return &Tracker{
		deviceID:   deviceID,
		estimator:  estimator,
		feed:       motion.NewFeed(estimator.State()),
		maxHistory: maxHistory,
	}
}

// DeviceID returns the device this tracker belongs to
func (t *Tracker) DeviceID() string {
	return t.deviceID
}

// Feed returns the device's state feed
func (t *Tracker) Feed() *motion.Feed {
	return t.feed
}

// Process runs one sample through the estimator, appends the state to the
// bounded history and publishes it on the feed
func (t *Tracker) Process(s Sample) motion.State {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.estimator.ProcessSample(s.X, s.Y, s.Z, s.Timestamp)

	t.history = append(t.history, state)
	if over := len(t.history) - t.maxHistory; over > 0 {
		t.history = append(t.history[:0], t.history[over:]...)
	}

	t.feed.Publish(state)
	return state
}

// RecordFix remembers a fix for chart markers
func (t *Tracker) RecordFix(ev chart.FixEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fixes = append(t.fixes, ev)
	if over := len(t.fixes) - maxFixEvents; over > 0 {
		t.fixes = append(t.fixes[:0], t.fixes[over:]...)
	}
}

// Snapshot returns copies of the history (oldest first) and the fix events
func (t *Tracker) Snapshot() ([]motion.State, []chart.FixEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := make([]motion.State, len(t.history))
	copy(history, t.history)
	fixes := make([]chart.FixEvent, len(t.fixes))
	copy(fixes, t.fixes)
	return history, fixes
}

// Registry holds one tracker per device, created on first use
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker

	cfg        motion.Config
	maxHistory int
	sink       diag.Sink
	onCreate   func(*Tracker)
}

// NewRegistry creates a registry whose trackers use cfg. onCreate, when not
// nil, runs once for every new tracker before it sees its first sample.
func NewRegistry(cfg motion.Config, maxHistory int, sink diag.Sink, onCreate func(*Tracker)) *Registry {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	if sink == nil {
		sink = diag.Nop()
	}
	return &Registry{
		trackers:   make(map[string]*Tracker),
		cfg:        cfg,
		maxHistory: maxHistory,
		sink:       sink,
		onCreate:   onCreate,
	}
}

// Get returns the tracker of a device if one exists
func (r *Registry) Get(deviceID string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.trackers[deviceID]
	return t, ok
}

// GetOrCreate returns the tracker of a device, creating it if needed
func (r *Registry) GetOrCreate(deviceID string) *Tracker {
	if t, ok := r.Get(deviceID); ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[deviceID]; ok {
		return t
	}
	t := newTracker(deviceID, r.cfg, r.maxHistory, r.sink)
	if r.onCreate != nil {
		r.onCreate(t)
	}
	r.trackers[deviceID] = t
	return t
}

// Devices returns the known device IDs in sorted order
func (r *Registry) Devices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.trackers))
	for id := range r.trackers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
