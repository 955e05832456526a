package shareddata

import (
	"sync/atomic"

	"github.com/kestrelrt/kestrel/kernel/utils"
)

// borrow packs reader count (low 30 bits) and a writer-active flag (bit 30)
// into one atomic word, so checking "is anyone writing" and "how many
// readers" is a single load rather than two independently-racing fields.
const writerBit = int32(1) << 30

// Resource is a single typed, borrow-checked value in the shared data
// registry. It is never touched directly by callers outside this
// package — Handle[T] is the clonable, reference-counted front door
// (see handle.go); handles is the outstanding-handle count that drives
// "last handle dropped" destruction.
type Resource[T any] struct {
	id      utils.ID
	value   T
	state   atomic.Int32 // packed reader-count / writer-bit, see borrow above
	handles atomic.Int32 // outstanding Handle[T] count, starts at 1
}

// newResource constructs a resource with one outstanding handle, matching
// the handle immediately returned to whichever call (Add/GetOrCreate)
// created it.
func newResource[T any](id utils.ID, value T) *Resource[T] {
	r := &Resource[T]{id: id, value: value}
	r.handles.Store(1)
	return r
}

// ID returns the resource's identifier.
func (r *Resource[T]) ID() utils.ID { return r.id }

// Borrow acquires a shared (read) borrow, returning a release function.
// Fails with KindContended if a writer currently holds the resource.
func (r *Resource[T]) Borrow() (*T, func(), error) {
	for {
		cur := r.state.Load()
		if cur&writerBit != 0 {
			return nil, nil, utils.NewKindError(utils.KindContended, "shareddata: borrow", nil)
		}
		if r.state.CompareAndSwap(cur, cur+1) {
			return &r.value, func() { r.state.Add(-1) }, nil
		}
	}
}

// BorrowMut acquires the exclusive (write) borrow, returning a release
// function. Fails with KindContended if any reader or writer already
// holds the resource.
func (r *Resource[T]) BorrowMut() (*T, func(), error) {
	if !r.state.CompareAndSwap(0, writerBit) {
		return nil, nil, utils.NewKindError(utils.KindContended, "shareddata: borrow_mut", nil)
	}
	return &r.value, func() { r.state.Store(0) }, nil
}
