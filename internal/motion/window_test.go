package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func contents(w *rmsWindow) []float64 {
	out := make([]float64, 0, w.len())
	for i := 0; i < w.len(); i++ {
		out = append(out, w.at(i))
	}
	return out
}

func TestRMSWindowEvictsOldestFirst(t *testing.T) {
	w := newRMSWindow(3)
	assert.Zero(t, w.rms())
	assert.False(t, w.full())

	for _, v := range []float64{1, 2, 3} {
		w.push(v)
	}
	assert.True(t, w.full())
	assert.Equal(t, []float64{1, 2, 3}, contents(w))

	// Wraps past the end of the ring several times
	for _, v := range []float64{4, 5, 6, 7} {
		w.push(v)
	}
	assert.Equal(t, []float64{5, 6, 7}, contents(w))
	assert.InDelta(t, math.Sqrt((25.0+36+49)/3), w.rms(), 1e-12)
}

func TestRMSWindowShrinkEvictsOnNextPush(t *testing.T) {
	w := newRMSWindow(5)
	for _, v := range []float64{1, 2, 3, 4, 5, 6} {
		w.push(v)
	}
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, contents(w))

	w.setCapacity(2)
	assert.Equal(t, 5, w.len(), "contents kept until the next push")
	assert.True(t, w.full())

	w.push(7)
	assert.Equal(t, []float64{6, 7}, contents(w))
	assert.InDelta(t, math.Sqrt((36.0+49)/2), w.rms(), 1e-12)
}

func TestRMSWindowGrowKeepsOrder(t *testing.T) {
	w := newRMSWindow(3)
	for _, v := range []float64{1, 2, 3, 4} {
		w.push(v)
	}

	w.setCapacity(5)
	assert.False(t, w.full())
	assert.Equal(t, []float64{2, 3, 4}, contents(w))

	for _, v := range []float64{5, 6, 7} {
		w.push(v)
	}
	assert.Equal(t, []float64{3, 4, 5, 6, 7}, contents(w))
}

func TestRMSWindowReturnsToZeroAfterBurst(t *testing.T) {
	w := newRMSWindow(4)
	for _, v := range []float64{0.1, 3.7, 12.5, 0.3} {
		w.push(v)
	}
	for i := 0; i < 4; i++ {
		w.push(0)
	}
	assert.Equal(t, 0.0, w.rms())
}

func TestRMSWindowReset(t *testing.T) {
	w := newRMSWindow(2)
	w.push(3)
	w.push(4)

	w.reset(0)
	assert.Equal(t, 1, w.capacity)
	assert.Zero(t, w.len())
	assert.Zero(t, w.rms())

	w.push(-2)
	assert.True(t, w.full())
	assert.Equal(t, 2.0, w.rms())
}
