// Package messenger implements the engine's type-keyed publish/subscribe
// bus: a single central channel that fans events out to per-listener
// queues on demand.
package messenger

import (
	"reflect"
	"sync"

	"github.com/kestrelrt/kestrel/kernel/utils"
)

// Event is any value that can travel through the messenger. Concrete event
// types (Created[T], SystemFailed, Loaded, ...) implement this with a
// zero-cost marker method. The marker must be exported: an unexported
// method name is scoped to the package that declares the interface, so an
// unexported marker could never be satisfied from outside this package.
// The messenger keys subscriptions on the concrete reflect.Type of E, so
// Created[Foo] and Created[Bar] are distinct event types even though they
// share a generic definition.
type Event interface {
	IsEvent()
}

// listener is the type-erased side of a registered Listener[E]; it lets
// the Messenger hold a single slice per event type regardless of E.
type listener interface {
	deliver(Event)
	id() utils.ID
}

// Listener receives events of type E on a buffered queue. Use Recv to pull
// events off it; a full or closed queue silently drops further sends
// rather than blocking the publisher.
type Listener[E Event] struct {
	ident  utils.ID
	queue  chan E
	closed chan struct{}
	once   sync.Once
}

// NewListener creates a listener with the given queue capacity.
func NewListener[E Event](capacity int) *Listener[E] {
	return &Listener[E]{
		ident:  utils.NewID(),
		queue:  make(chan E, capacity),
		closed: make(chan struct{}),
	}
}

func (l *Listener[E]) id() utils.ID { return l.ident }

func (l *Listener[E]) deliver(e Event) {
	typed, ok := e.(E)
	if !ok {
		return
	}
	select {
	case <-l.closed:
		return
	default:
	}
	select {
	case l.queue <- typed:
	default:
		// Queue full: fire-and-forget semantics drop the event rather
		// than block the central dispatch loop.
	}
}

// Recv returns the listener's receive channel for range/select use.
func (l *Listener[E]) Recv() <-chan E { return l.queue }

// Close marks the listener closed; further deliveries are dropped. Safe
// to call more than once.
func (l *Listener[E]) Close() {
	l.once.Do(func() { close(l.closed) })
}

// Dispatcher is the write side of the Messenger, returned by
// Messenger.Dispatcher so publishers don't need the full Messenger API.
type Dispatcher struct {
	m *Messenger
}

// Send enqueues an event on the central channel. Send never blocks: if
// the central channel is full the event is dropped and logged, matching
// the fire-and-forget contract for slow consumers.
func (d *Dispatcher) Send(e Event) {
	select {
	case d.m.central <- e:
	default:
		d.m.logger.Warn("messenger: central channel full, dropping event",
			utils.String("type", reflect.TypeOf(e).String()))
	}
}

// Messenger is the central event bus. RegisterType/RegisterListener are
// idempotent; Process drains whatever is currently queued on the central
// channel and clones each event out to every listener subscribed to its
// concrete type at the moment Process runs. Events processed after a
// listener unregisters, or before it registers, are never delivered to it;
// an event sent before a listener registers but processed afterwards is.
type Messenger struct {
	mu        sync.Mutex
	listeners map[reflect.Type][]listener
	central   chan Event
	logger    *utils.Logger
}

// New creates a Messenger with the given central channel capacity.
func New(capacity int, logger *utils.Logger) *Messenger {
	if logger == nil {
		logger = utils.DefaultLogger("messenger")
	}
	return &Messenger{
		listeners: make(map[reflect.Type][]listener),
		central:   make(chan Event, capacity),
		logger:    logger,
	}
}

// RegisterType ensures a subscription slot exists for E. Optional: the
// first RegisterListener[E] call implicitly does this too.
func RegisterType[E Event](m *Messenger) {
	t := reflect.TypeOf((*E)(nil)).Elem()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listeners[t]; !ok {
		m.listeners[t] = nil
	}
}

// RegisterListener subscribes l to events of type E. Idempotent: adding
// the same listener twice only stores it once.
func RegisterListener[E Event](m *Messenger, l *Listener[E]) {
	t := reflect.TypeOf((*E)(nil)).Elem()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.listeners[t] {
		if existing.id() == l.id() {
			return
		}
	}
	m.listeners[t] = append(m.listeners[t], l)
}

// UnregisterListener removes l from E's subscriber list. No-op if absent.
func UnregisterListener[E Event](m *Messenger, l *Listener[E]) {
	t := reflect.TypeOf((*E)(nil)).Elem()
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.listeners[t]
	for i, existing := range subs {
		if existing.id() == l.id() {
			m.listeners[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Dispatcher returns the publish-only handle for this messenger.
func (m *Messenger) Dispatcher() *Dispatcher { return &Dispatcher{m: m} }

// Process drains every event currently queued on the central channel,
// invoking callback (if non-nil) once per event and then cloning the
// event out to each subscriber registered for its concrete type. Process
// never blocks waiting for new events: once the central channel reads
// empty it returns, matching the "process once per frame" usage pattern.
func (m *Messenger) Process(callback func(Event)) {
	for {
		select {
		case e := <-m.central:
			if callback != nil {
				callback(e)
			}
			t := reflect.TypeOf(e)
			m.mu.Lock()
			subs := append([]listener(nil), m.listeners[t]...)
			m.mu.Unlock()
			for _, l := range subs {
				l.deliver(e)
			}
		default:
			return
		}
	}
}
