package motion

import "sync"

// Observer receives published states
type Observer func(State)

// Feed broadcasts states with publish-latest semantics: a new subscriber is
// handed the current state immediately and then every later state in publish
// order. Delivery is synchronous; observers must not call Publish or
// Subscribe on the same feed from inside the callback.
type Feed struct {
	deliverMu sync.Mutex // serializes delivery so observers see publish order

	mu          sync.RWMutex
	current     State
	subscribers []subscription
	nextID      uint64
}

type subscription struct {
	id uint64
	fn Observer
}

// NewFeed creates a feed holding the given initial state
func NewFeed(initial State) *Feed {
	return &Feed{current: initial}
}

// Current returns the latest published state
func (f *Feed) Current() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Publish replaces the current state and delivers it to all subscribers
func (f *Feed) Publish(s State) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	f.current = s
	subs := make([]subscription, len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.Unlock()

	for _, sub := range subs {
		sub.fn(s)
	}
}

// Subscribe registers fn, replays the current state to it, and returns a
// function that removes the subscription. Unsubscribing is safe from within
// the observer.
func (f *Feed) Subscribe(fn Observer) (unsubscribe func()) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subscribers = append(f.subscribers, subscription{id: id, fn: fn})
	current := f.current
	f.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

// Len returns the number of active subscribers
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subscribers {
		if sub.id == id {
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			return
		}
	}
}
