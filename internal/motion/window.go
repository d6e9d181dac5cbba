package motion

import "math"

// rmsWindow is a bounded FIFO of recent horizontal magnitudes kept in a ring
// buffer. The capacity can change between pushes; excess elements are
// evicted oldest first on the next push.
type rmsWindow struct {
	buf      []float64
	head     int // index of the oldest element
	n        int
	capacity int
}

func newRMSWindow(capacity int) *rmsWindow {
	w := &rmsWindow{}
	w.reset(capacity)
	return w
}

func (w *rmsWindow) reset(capacity int) {
	w.capacity = max(1, capacity)
	w.buf = make([]float64, w.capacity)
	w.head = 0
	w.n = 0
}

// setCapacity keeps the current contents. Growing reallocates the ring in
// oldest-first order; shrinking leaves it alone until push evicts.
func (w *rmsWindow) setCapacity(capacity int) {
	w.capacity = max(1, capacity)
	if w.capacity <= len(w.buf) {
		return
	}
	buf := make([]float64, w.capacity)
	for i := 0; i < w.n; i++ {
		buf[i] = w.at(i)
	}
	w.buf = buf
	w.head = 0
}

func (w *rmsWindow) push(v float64) {
	for w.n >= w.capacity {
		w.head = (w.head + 1) % len(w.buf)
		w.n--
	}
	w.buf[(w.head+w.n)%len(w.buf)] = v
	w.n++
}

// at returns the i-th element, oldest first
func (w *rmsWindow) at(i int) float64 {
	return w.buf[(w.head+i)%len(w.buf)]
}

func (w *rmsWindow) full() bool {
	return w.n >= w.capacity
}

func (w *rmsWindow) len() int {
	return w.n
}

// rms returns sqrt(mean(v^2)). The sum is taken oldest to newest on every
// call, so the result never carries drift from evicted values.
func (w *rmsWindow) rms() float64 {
	if w.n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.n; i++ {
		v := w.at(i)
		sum += v * v
	}
	return math.Sqrt(sum / float64(w.n))
}
