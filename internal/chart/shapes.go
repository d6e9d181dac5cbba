// Package chart turns a bounded history of motion states into drawable
// primitives and renders them. Nothing here feeds back into the estimator.
package chart

import (
	"image/color"
	"math"

	"github.com/saaga0h/motion-gate/internal/motion"
)

// FixMarkerLifetimeMs is how long a fix marker stays visible. Its opacity
// falls linearly from 1 to 0 over this period.
const FixMarkerLifetimeMs = 3000

// Shape is a drawable primitive: Rect, Line or Marker. Coordinates are canvas
// pixels with the origin at the top-left corner.
type Shape interface {
	shape()
}

// Rect is a filled background band
type Rect struct {
	X, Y, W, H float64
	Fill       color.NRGBA
}

// Line is a stroked segment
type Line struct {
	X1, Y1, X2, Y2 float64
	Stroke         color.NRGBA
	Width          float64
	Dashed         bool
	Series         string
}

// Marker is a filled circle for an external event such as a location fix
type Marker struct {
	X, Y, Radius float64
	Fill         color.NRGBA
	Opacity      float64
	Label        string
}

func (Rect) shape()   {}
func (Line) shape()   {}
func (Marker) shape() {}

// FixEvent marks the time a location fix was obtained
type FixEvent struct {
	Timestamp int64
	Label     string
}

// Series names for signal lines
const (
	SeriesRaw            = "raw"
	SeriesFiltered       = "filtered"
	SeriesRMS            = "rms"
	SeriesUsed           = "used"
	SeriesStartThreshold = "start_threshold"
	SeriesStopThreshold  = "stop_threshold"
)

var (
	colorMoving   = color.NRGBA{R: 200, G: 235, B: 200, A: 255}
	colorStill    = color.NRGBA{R: 235, G: 235, B: 235, A: 255}
	colorRaw      = color.NRGBA{R: 150, G: 150, B: 150, A: 255}
	colorFiltered = color.NRGBA{R: 30, G: 110, B: 220, A: 255}
	colorRMS      = color.NRGBA{R: 240, G: 140, B: 20, A: 255}
	colorUsed     = color.NRGBA{R: 210, G: 40, B: 40, A: 255}
	colorStart    = color.NRGBA{R: 20, G: 140, B: 60, A: 255}
	colorStop     = color.NRGBA{R: 170, G: 30, B: 30, A: 255}
	colorFix      = color.NRGBA{R: 120, G: 50, B: 180, A: 255}
)

// Transform converts a history of states (oldest first) and fix events into
// shapes for a width x height canvas. The time axis spans the first to the
// last state; the last state's timestamp is "now" for marker fading.
func Transform(history []motion.State, fixes []FixEvent, width, height float64) []Shape {
	if len(history) == 0 || width <= 0 || height <= 0 {
		return nil
	}

	first := history[0].Timestamp
	now := history[len(history)-1].Timestamp
	span := float64(now - first)
	if span <= 0 {
		span = 1
	}
	xOf := func(ts int64) float64 {
		return float64(ts-first) / span * width
	}

	last := history[len(history)-1]
	yMax := math.Max(last.MotionStartThreshold, last.MotionStopThreshold)
	for _, s := range history {
		yMax = math.Max(yMax, finiteOrZero(s.RawAccel))
		yMax = math.Max(yMax, finiteOrZero(s.FilteredAccel))
		yMax = math.Max(yMax, finiteOrZero(s.RMSAccel))
		yMax = math.Max(yMax, finiteOrZero(s.UsedAccel))
	}
	if yMax <= 0 {
		yMax = 1
	}
	yMax *= 1.1
	yOf := func(v float64) float64 {
		v = math.Max(0, finiteOrZero(v))
		return height - v/yMax*height
	}

	shapes := make([]Shape, 0, len(history)*4+8)

	// Background bands, one per run of equal decisions
	runStart := 0
	for i := 1; i <= len(history); i++ {
		if i < len(history) && history[i].IsMoving == history[runStart].IsMoving {
			continue
		}
		end := now
		if i < len(history) {
			end = history[i].Timestamp
		}
		x0 := xOf(history[runStart].Timestamp)
		fill := colorStill
		if history[runStart].IsMoving {
			fill = colorMoving
		}
		shapes = append(shapes, Rect{X: x0, Y: 0, W: xOf(end) - x0, H: height, Fill: fill})
		runStart = i
	}

	// Signal lines
	signals := []struct {
		name  string
		color color.NRGBA
		width float64
		value func(motion.State) float64
	}{
		{SeriesRaw, colorRaw, 1, func(s motion.State) float64 { return s.RawAccel }},
		{SeriesFiltered, colorFiltered, 1, func(s motion.State) float64 { return s.FilteredAccel }},
		{SeriesRMS, colorRMS, 1.5, func(s motion.State) float64 { return s.RMSAccel }},
		{SeriesUsed, colorUsed, 2, func(s motion.State) float64 { return s.UsedAccel }},
	}
	for _, sig := range signals {
		for i := 1; i < len(history); i++ {
			prev, cur := history[i-1], history[i]
			shapes = append(shapes, Line{
				X1: xOf(prev.Timestamp), Y1: yOf(sig.value(prev)),
				X2: xOf(cur.Timestamp), Y2: yOf(sig.value(cur)),
				Stroke: sig.color, Width: sig.width, Series: sig.name,
			})
		}
	}

	// Threshold reference lines
	startY := yOf(last.MotionStartThreshold)
	stopY := yOf(last.MotionStopThreshold)
	shapes = append(shapes,
		Line{X1: 0, Y1: startY, X2: width, Y2: startY, Stroke: colorStart, Width: 1, Dashed: true, Series: SeriesStartThreshold},
		Line{X1: 0, Y1: stopY, X2: width, Y2: stopY, Stroke: colorStop, Width: 1, Dashed: true, Series: SeriesStopThreshold},
	)

	// Fix markers
	radius := math.Max(3, math.Min(width, height)*0.02)
	for _, fix := range fixes {
		age := now - fix.Timestamp
		if age < 0 || age >= FixMarkerLifetimeMs {
			continue
		}
		shapes = append(shapes, Marker{
			X:       math.Max(0, xOf(fix.Timestamp)),
			Y:       radius * 2,
			Radius:  radius,
			Fill:    colorFix,
			Opacity: 1 - float64(age)/FixMarkerLifetimeMs,
			Label:   fix.Label,
		})
	}

	return shapes
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
