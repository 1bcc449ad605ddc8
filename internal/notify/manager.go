// internal/notify/manager.go
package notify

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// backlogWarning is the queue length at which a slow listener is reported.
const backlogWarning = 1024

// Listener callbacks run on a dedicated goroutine per listener, in the order
// the events were emitted.
type Listener func(ctx context.Context, event Event)

// listener owns an unbounded queue so that Notify never waits on a slow
// callback.
type listener struct {
	eventType Type
	callback  Listener

	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
}

func (l *listener) push(event Event) {
	l.mu.Lock()
	l.queue = append(l.queue, event)
	backlog := len(l.queue)
	l.mu.Unlock()

	if backlog == backlogWarning {
		zap.L().With(
			zap.String("type", string(l.eventType)),
			zap.Int("backlog", backlog),
		).Warn("Notify: listener is falling behind")
	}
	l.signal()
}

func (l *listener) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

// run delivers queued events until the listener is closed and drained.
func (l *listener) run() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, event := range batch {
			l.callback(context.Background(), event)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

// Manager fans notifications out to registered listeners.
type Manager struct {
	mu        sync.RWMutex
	listeners []*listener
	closed    bool
	wg        sync.WaitGroup

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func NewManager() *Manager {
	return &Manager{
		listeners: make([]*listener, 0),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// AddListener registers callback for eventType. An empty eventType matches
// every event.
func (m *Manager) AddListener(eventType Type, callback Listener) {
	zap.L().With(zap.String("type", string(eventType))).Debug("Notify: AddListener")

	l := &listener{
		eventType: eventType,
		callback:  callback,
		wake:      make(chan struct{}, 1),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.listeners = append(m.listeners, l)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		l.run()
	}()
}

// Notify stamps and enqueues the event for every matching listener.
func (m *Manager) Notify(ctx context.Context, eventType Type, data interface{}) {
	event := Event{
		ID:         m.newID(),
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		zap.L().With(zap.String("type", string(eventType))).Warn("Notify: manager closed, dropping event")
		return
	}
	if len(m.listeners) == 0 {
		zap.L().Debug("Notify: no listeners available")
	}

	for _, l := range m.listeners {
		if l.eventType != "" && l.eventType != eventType {
			continue
		}
		l.push(event)
	}
}

// Close stops accepting events and waits until every queued event has been
// delivered.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, l := range m.listeners {
		l.close()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Manager) newID() ulid.ULID {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), m.entropy)
}
