// Package motion turns a stream of three-axis accelerometer samples into a
// debounced moving/still decision used to gate GPS fixes.
//
// The pipeline per sample is: sample-rate estimation, gravity low-pass,
// horizontal linear magnitude, rolling-window RMS with exponential smoothing,
// spike clamping, and a two-state hysteresis machine driven by accumulated
// time above/below the start and stop thresholds.
package motion

import (
	"math"

	"github.com/saaga0h/motion-gate/internal/diag"
)

const (
	// DefaultWindowCapacity is the RMS window size used until the first
	// sample-rate measurement completes
	DefaultWindowCapacity = 26

	// rateMeasureIntervalMs is how often the sample rate is re-estimated
	rateMeasureIntervalMs = 1000

	// windowSeconds is the time span the RMS window targets
	windowSeconds = 2.0

	logCategory = "motion"
)

// Estimator is a single-writer motion detector. It holds mutable state
// without locking; callers feeding it from several goroutines must serialize.
type Estimator struct {
	cfg  Config
	sink diag.Sink

	gravity     [3]float64
	filtered    float64
	rmsSmoothed float64
	window      *rmsWindow

	// sample-rate estimation
	rateSeeded    bool
	rateMeasureAt int64
	rateCount     int

	// hysteresis
	seen             bool
	lastUpdate       int64
	movingForMs      int64
	stillForMs       int64
	isMoving         bool
	lastMovementTime int64

	state State
}

// NewEstimator creates an estimator for the given configuration. A nil sink
// discards diagnostics.
func NewEstimator(cfg Config, sink diag.Sink) *Estimator {
	if sink == nil {
		sink = diag.Nop()
	}
	e := &Estimator{
		cfg:    cfg,
		sink:   sink,
		window: newRMSWindow(DefaultWindowCapacity),
	}
	e.Reset()
	return e
}

// Reset returns the estimator to its just-constructed state. The
// configuration is kept.
func (e *Estimator) Reset() {
	e.gravity = [3]float64{}
	e.filtered = 0
	e.rmsSmoothed = 0
	e.window.reset(DefaultWindowCapacity)

	e.rateSeeded = false
	e.rateMeasureAt = 0
	e.rateCount = 0

	e.seen = false
	e.lastUpdate = 0
	e.movingForMs = 0
	e.stillForMs = 0
	e.isMoving = false
	e.lastMovementTime = 0

	e.state = State{
		MotionStartThreshold: e.cfg.MotionStartThreshold,
		MotionStopThreshold:  e.cfg.MotionStopThreshold,
	}
}

// Config returns the configuration the estimator was built with
func (e *Estimator) Config() Config {
	return e.cfg
}

// State returns the most recently emitted snapshot
func (e *Estimator) State() State {
	return e.state
}

// WindowLen returns the number of magnitudes currently held in the RMS window
func (e *Estimator) WindowLen() int {
	return e.window.len()
}

// WindowCapacity returns the current derived RMS window capacity
func (e *Estimator) WindowCapacity() int {
	return e.window.capacity
}

// ProcessSample consumes one accelerometer reading (m/s^2 per axis) taken at
// timestamp milliseconds and returns the resulting state. It never fails:
// non-finite axis values contribute no linear acceleration and
// non-monotonic timestamps contribute no accumulated time.
func (e *Estimator) ProcessSample(x, y, z float64, timestamp int64) State {
	e.updateSampleRate(timestamp)

	raw := [3]float64{x, y, z}
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			raw[i] = e.gravity[i]
		}
	}

	// Gravity low-pass, then horizontal linear acceleration (Z excluded)
	alpha := e.cfg.FilterAlpha
	for i := range e.gravity {
		e.gravity[i] = alpha*e.gravity[i] + (1-alpha)*raw[i]
	}
	linearX := raw[0] - e.gravity[0]
	linearY := raw[1] - e.gravity[1]
	rawHoriz := math.Sqrt(linearX*linearX + linearY*linearY)

	smoothing := e.cfg.AccelSmoothingAlpha
	e.filtered = smoothing*rawHoriz + (1-smoothing)*e.filtered

	e.window.push(rawHoriz)
	rms := e.filtered
	if e.window.full() {
		rms = e.window.rms()
	}

	rmsAlpha := e.cfg.RMSAlpha
	e.rmsSmoothed = rmsAlpha*rms + (1-rmsAlpha)*e.rmsSmoothed

	usedAccel := e.rmsSmoothed
	if e.rmsSmoothed > e.cfg.SpikeThreshold {
		// Clamp onto the start threshold: contributes to neither accumulator
		usedAccel = e.cfg.MotionStartThreshold
		e.sink.Debug(logCategory, "Spike rejected",
			"rms_smoothed", e.rmsSmoothed,
			"timestamp", timestamp)
	}

	e.accumulate(usedAccel, timestamp)
	e.transition(timestamp)

	if e.isMoving {
		e.lastMovementTime = timestamp
	}

	e.state = State{
		RawAccel:             rawHoriz,
		FilteredAccel:        e.filtered,
		RMSAccel:             e.rmsSmoothed,
		UsedAccel:            usedAccel,
		IsMoving:             e.isMoving,
		MotionStartThreshold: e.cfg.MotionStartThreshold,
		MotionStopThreshold:  e.cfg.MotionStopThreshold,
		MovingForMs:          e.movingForMs,
		StillForMs:           e.stillForMs,
		LastMovementTime:     e.lastMovementTime,
		Timestamp:            timestamp,
	}
	return e.state
}

// updateSampleRate re-derives the window capacity from the observed rate
// once at least a second has elapsed since the last measurement
func (e *Estimator) updateSampleRate(timestamp int64) {
	if !e.rateSeeded {
		e.rateSeeded = true
		e.rateMeasureAt = timestamp
		e.rateCount = 0
		return
	}

	e.rateCount++
	elapsed := timestamp - e.rateMeasureAt
	if elapsed < rateMeasureIntervalMs {
		return
	}

	frequency := float64(e.rateCount) / (float64(elapsed) / 1000)
	capacity := max(1, int(math.Round(frequency*windowSeconds)))
	if capacity != e.window.capacity {
		e.sink.Debug(logCategory, "RMS window resized",
			"frequency_hz", frequency,
			"old_capacity", e.window.capacity,
			"new_capacity", capacity)
	}
	e.window.setCapacity(capacity)

	e.rateMeasureAt = timestamp
	e.rateCount = 0
}

// accumulate advances the moving/still timers. Exactly one of them can grow
// per sample; the dead band between the thresholds leaves both untouched.
func (e *Estimator) accumulate(usedAccel float64, timestamp int64) {
	var dt int64
	if e.seen {
		dt = max(0, timestamp-e.lastUpdate)
	}
	e.seen = true
	e.lastUpdate = timestamp

	switch {
	case usedAccel > e.cfg.MotionStartThreshold:
		e.movingForMs += dt
		e.stillForMs = 0
	case usedAccel < e.cfg.MotionStopThreshold:
		e.stillForMs += dt
		e.movingForMs = 0
	}
}

func (e *Estimator) transition(timestamp int64) {
	switch {
	case !e.isMoving && e.movingForMs > e.cfg.StartDelayMs:
		e.isMoving = true
		e.sink.Debug(logCategory, "Motion started",
			"moving_for_ms", e.movingForMs,
			"rms_smoothed", e.rmsSmoothed,
			"timestamp", timestamp)
	case e.isMoving && e.stillForMs > e.cfg.StopDelayMs:
		e.isMoving = false
		e.sink.Debug(logCategory, "Motion stopped",
			"still_for_ms", e.stillForMs,
			"rms_smoothed", e.rmsSmoothed,
			"timestamp", timestamp)
	}
}
