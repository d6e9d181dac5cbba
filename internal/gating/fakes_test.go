package gating

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saaga0h/motion-gate/pkg/mqtt"
	"github.com/saaga0h/motion-gate/pkg/redis"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMessage implements mqtt.Message
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string   { return m.topic }
func (m *fakeMessage) Payload() []byte { return m.payload }
func (m *fakeMessage) Retained() bool  { return false }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeMQTT records publishes and subscriptions
type fakeMQTT struct {
	mu         sync.Mutex
	connected  bool
	published  []published
	subscribed map[string]mqtt.MessageHandler
	publishErr error

	// When gate is set, Publish signals entered and blocks until gate closes
	entered chan struct{}
	gate    chan struct{}
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{subscribed: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeMQTT) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = handler
	return nil
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if f.gate != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{topic: topic, qos: qos, retained: retained, payload: payload})
	return nil
}

func (f *fakeMQTT) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMQTT) withPrefix(prefix string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []published
	for _, p := range f.published {
		if strings.HasPrefix(p.topic, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// fakeRedis is an in-memory subset of Redis semantics
type fakeRedis struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	zsets   map[string][]redis.ZMember
	lists   map[string][]string
	ttls    map[string]time.Duration
	pingErr error
	closed  bool

	writesAfterClose int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string][]redis.ZMember),
		lists:  make(map[string][]string),
		ttls:   make(map[string]time.Duration),
	}
}

// bounds converts Redis inclusive start/stop (negative from the end) to a
// half-open slice range
func bounds(n int, start, stop int64) (int, int) {
	if start < 0 {
		start += int64(n)
	}
	if stop < 0 {
		stop += int64(n)
	}
	if start < 0 {
		start = 0
	}
	if stop >= int64(n) {
		stop = int64(n) - 1
	}
	if start > stop {
		return 0, 0
	}
	return int(start), int(stop) + 1
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.writesAfterClose++
		return fmt.Errorf("redis: client is closed")
	}
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range values {
		h[k] = fmt.Sprint(v)
	}
	return nil
}

func (f *fakeRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRedis) ZAdd(ctx context.Context, key string, score float64, member interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.writesAfterClose++
		return fmt.Errorf("redis: client is closed")
	}
	z := append(f.zsets[key], redis.ZMember{Score: score, Member: fmt.Sprint(member)})
	sort.SliceStable(z, func(i, j int) bool { return z[i].Score < z[j].Score })
	f.zsets[key] = z
	return nil
}

func (f *fakeRedis) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	z := f.zsets[key]
	lo, hi := bounds(len(z), start, stop)
	f.zsets[key] = append(append([]redis.ZMember{}, z[:lo]...), z[hi:]...)
	return nil
}

func (f *fakeRedis) ZRevRangeByScoreWithScores(ctx context.Context, key string, max, min float64, offset, count int64) ([]redis.ZMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []redis.ZMember
	z := f.zsets[key]
	for i := len(z) - 1; i >= 0; i-- {
		if z[i].Score <= max && z[i].Score >= min {
			out = append(out, z[i])
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if count > 0 && int(count) < len(out) {
		out = out[:count]
	}
	return out, nil
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append([]string{fmt.Sprint(v)}, f.lists[key]...)
	}
	return nil
}

func (f *fakeRedis) LTrim(ctx context.Context, key string, start, stop int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	lo, hi := bounds(len(l), start, stop)
	f.lists[key] = append([]string{}, l[lo:hi]...)
	return nil
}

func (f *fakeRedis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	lo, hi := bounds(len(l), start, stop)
	return append([]string{}, l[lo:hi]...), nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeRedis) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
