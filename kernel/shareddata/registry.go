// Package shareddata is the engine's typed shared-resource registry: a
// type-erased map keyed by a stable type token, each slot holding a
// ResourceStorage[T] of borrow-checked, reference-counted resources.
// Mutation events are queued internally and flushed to the messenger once
// per frame rather than published synchronously, so a system can freely
// add/destroy resources mid-phase without interleaving delivery with its
// own execution.
package shareddata

import (
	"reflect"
	"sync"

	"github.com/kestrelrt/kestrel/kernel/messenger"
	"github.com/kestrelrt/kestrel/kernel/utils"
)

// storageVT is the type-erased vtable every storage[T] satisfies, so
// SharedData can enumerate/destroy storages it no longer has a concrete T
// for (e.g. UnregisterType called from generic code that only has the
// registry, not the type parameter, in scope).
type storageVT interface {
	destroyAll() []utils.ID
	count() int
}

type storage[T any] struct {
	mu    sync.Mutex
	byID  map[utils.ID]*Resource[T]
	order []utils.ID
}

func newStorage[T any]() *storage[T] {
	return &storage[T]{byID: make(map[utils.ID]*Resource[T])}
}

func (s *storage[T]) destroyAll() []utils.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.order
	s.byID = make(map[utils.ID]*Resource[T])
	s.order = nil
	return ids
}

func (s *storage[T]) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// SharedData is the registry itself. Zero value is not usable; use New.
type SharedData struct {
	mu       sync.Mutex
	storages map[reflect.Type]storageVT
	pending  []messenger.Event
	logger   *utils.Logger
}

// New creates an empty registry.
func New(logger *utils.Logger) *SharedData {
	if logger == nil {
		logger = utils.DefaultLogger("shareddata")
	}
	return &SharedData{storages: make(map[reflect.Type]storageVT), logger: logger}
}

func typeTokenOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func getStorage[T any](sd *SharedData, create bool) (*storage[T], bool) {
	t := typeTokenOf[T]()
	sd.mu.Lock()
	defer sd.mu.Unlock()
	if existing, ok := sd.storages[t]; ok {
		return existing.(*storage[T]), true
	}
	if !create {
		return nil, false
	}
	s := newStorage[T]()
	sd.storages[t] = s
	return s, true
}

// QueueEvent appends an event to the pending-flush queue. Exported so the
// generic Add/Destroy/MarkChanged free functions (which cannot themselves
// be methods, Go forbids type parameters on methods) can still route
// through SharedData's internal queue.
func (sd *SharedData) QueueEvent(e messenger.Event) {
	sd.mu.Lock()
	sd.pending = append(sd.pending, e)
	sd.mu.Unlock()
}

// FlushPendingEvents drains the queue built up by Add/Destroy/MarkChanged
// since the last flush and sends each event to the messenger's dispatcher.
// Called once per frame by the scheduler, after all phases have run.
func (sd *SharedData) FlushPendingEvents(m *messenger.Messenger) {
	sd.mu.Lock()
	batch := sd.pending
	sd.pending = nil
	sd.mu.Unlock()

	d := m.Dispatcher()
	for _, e := range batch {
		d.Send(e)
	}
}

// RegisterType ensures a storage slot exists for T. Idempotent.
func RegisterType[T any](sd *SharedData) {
	getStorage[T](sd, true)
}

// UnregisterType drops T's entire storage, queuing a Destroyed[T] event
// for every resource it held.
func UnregisterType[T any](sd *SharedData) {
	s, ok := getStorage[T](sd, false)
	if !ok {
		return
	}
	ids := s.destroyAll()

	t := typeTokenOf[T]()
	sd.mu.Lock()
	delete(sd.storages, t)
	sd.mu.Unlock()

	for _, id := range ids {
		sd.QueueEvent(Destroyed[T]{ID: id})
	}
}

// Add inserts value under id, failing with KindAlreadyExists if id is
// already present. Queues a Created[T] event on success and returns the
// first outstanding Handle[T] to the new resource.
func Add[T any](sd *SharedData, id utils.ID, value T) (*Handle[T], error) {
	s, _ := getStorage[T](sd, true)
	s.mu.Lock()
	if _, exists := s.byID[id]; exists {
		s.mu.Unlock()
		return nil, utils.NewKindError(utils.KindAlreadyExists, "shareddata: add", nil)
	}
	r := newResource(id, value)
	s.byID[id] = r
	s.order = append(s.order, id)
	s.mu.Unlock()

	sd.QueueEvent(Created[T]{ID: id})
	return newHandle(sd, r), nil
}

// AddFromLoad inserts value under id the same way Add does, but queues a
// Load[T] event instead of Created[T] — used by the Serializable registry
// hook (kernel/registry) when it reconstructs a resource from persisted
// bytes rather than constructing one fresh.
func AddFromLoad[T any](sd *SharedData, id utils.ID, value T) (*Handle[T], error) {
	s, _ := getStorage[T](sd, true)
	s.mu.Lock()
	if _, exists := s.byID[id]; exists {
		s.mu.Unlock()
		return nil, utils.NewKindError(utils.KindAlreadyExists, "shareddata: add_from_load", nil)
	}
	r := newResource(id, value)
	s.byID[id] = r
	s.order = append(s.order, id)
	s.mu.Unlock()

	sd.QueueEvent(Load[T]{ID: id})
	return newHandle(sd, r), nil
}

// Get acquires a new Handle[T] to the resource stored under id, if any.
// The returned handle must be Released by the caller.
func Get[T any](sd *SharedData, id utils.ID) (*Handle[T], bool) {
	s, ok := getStorage[T](sd, false)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	r.handles.Add(1)
	return newHandle(sd, r), true
}

// GetOrCreate acquires a handle to the existing resource under id, or
// constructs one via factory, inserts it, and returns its first handle.
// The second return value reports whether a new resource was created.
// Either way the caller owns the returned handle and must Release it.
func GetOrCreate[T any](sd *SharedData, id utils.ID, factory func() T) (*Handle[T], bool) {
	s, _ := getStorage[T](sd, true)
	s.mu.Lock()
	if r, exists := s.byID[id]; exists {
		r.handles.Add(1)
		s.mu.Unlock()
		return newHandle(sd, r), false
	}
	r := newResource(id, factory())
	s.byID[id] = r
	s.order = append(s.order, id)
	s.mu.Unlock()

	sd.QueueEvent(Created[T]{ID: id})
	return newHandle(sd, r), true
}

// Match returns a Handle[T] for every resource of type T whose value
// satisfies pred, in insertion order. Snapshot semantics: later
// Add/Destroy calls don't affect an in-progress Match. Each returned
// handle is a new outstanding owner and must be Released by the caller.
func Match[T any](sd *SharedData, pred func(T) bool) []*Handle[T] {
	s, ok := getStorage[T](sd, false)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Handle[T]
	for _, id := range s.order {
		r := s.byID[id]
		if pred == nil || pred(r.value) {
			r.handles.Add(1)
			out = append(out, newHandle(sd, r))
		}
	}
	return out
}

// ForEach visits every resource of type T in insertion order, over a
// snapshot taken under lock. Each visited resource is held alive by a
// handle acquired before f runs and released immediately after, so f
// sees a live resource even if some other owner's Release races it down
// to zero during the call — but f must not retain the handle it's given.
func ForEach[T any](sd *SharedData, f func(*Handle[T])) {
	s, ok := getStorage[T](sd, false)
	if !ok {
		return
	}
	s.mu.Lock()
	snapshot := make([]*Resource[T], 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.byID[id])
	}
	s.mu.Unlock()

	for _, r := range snapshot {
		r.handles.Add(1)
		h := newHandle(sd, r)
		f(h)
		h.Release()
	}
}

// Destroy unconditionally removes id from T's storage, queuing a
// Destroyed[T] event if it was present. This bypasses the handle
// refcount entirely — it's the path Handle.Release takes once the last
// outstanding handle drops, not something ordinary callers should reach
// for directly. UnregisterType does not go through Destroy: it clears the
// whole storage and queues the Destroyed[T] events itself.
func Destroy[T any](sd *SharedData, id utils.ID) bool {
	s, ok := getStorage[T](sd, false)
	if !ok {
		return false
	}
	s.mu.Lock()
	if _, exists := s.byID[id]; !exists {
		s.mu.Unlock()
		return false
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	sd.QueueEvent(Destroyed[T]{ID: id})
	return true
}

// MarkChanged queues a Changed[T] event for id. Callers invoke this after
// releasing a write borrow obtained via Resource.BorrowMut, since the
// registry has no way to observe a mutation through a returned pointer.
func MarkChanged[T any](sd *SharedData, id utils.ID) {
	sd.QueueEvent(Changed[T]{ID: id})
}

// Count returns how many resources of type T are currently stored.
func Count[T any](sd *SharedData) int {
	s, ok := getStorage[T](sd, false)
	if !ok {
		return 0
	}
	return s.count()
}
