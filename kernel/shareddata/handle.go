package shareddata

import "github.com/kestrelrt/kestrel/kernel/utils"

// Handle is a clonable, reference-counted handle to a Resource[T]. Add,
// Get, GetOrCreate and Match each hand back a Handle that counts as one
// outstanding owner; Acquire clones a handle (incrementing the count),
// and Release drops it. When the last outstanding handle is released,
// the resource is removed from the registry and a Destroyed[T] event is
// queued — this is how the registry satisfies "last handle dropped
// destroys the resource" (the resource has no single owner, so nothing
// shorter than a refcount can know when it's truly gone).
type Handle[T any] struct {
	r  *Resource[T]
	sd *SharedData
}

func newHandle[T any](sd *SharedData, r *Resource[T]) *Handle[T] {
	return &Handle[T]{r: r, sd: sd}
}

// ID returns the underlying resource's identifier.
func (h *Handle[T]) ID() utils.ID { return h.r.id }

// Acquire clones the handle, incrementing the resource's outstanding
// handle count. The returned handle must itself be Released independently
// of h.
func (h *Handle[T]) Acquire() *Handle[T] {
	h.r.handles.Add(1)
	return newHandle(h.sd, h.r)
}

// Release drops this handle. If it was the last outstanding handle, the
// resource is removed from the registry and Destroyed[T] is queued.
// Releasing the same handle twice double-counts the drop and is a caller
// bug, the same as a double free.
func (h *Handle[T]) Release() {
	if h.r.handles.Add(-1) == 0 {
		Destroy[T](h.sd, h.r.id)
	}
}

// Borrow acquires a shared (read) borrow of the underlying value.
func (h *Handle[T]) Borrow() (*T, func(), error) { return h.r.Borrow() }

// BorrowMut acquires the exclusive (write) borrow of the underlying value.
func (h *Handle[T]) BorrowMut() (*T, func(), error) { return h.r.BorrowMut() }
