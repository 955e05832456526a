package shareddata

import "github.com/kestrelrt/kestrel/kernel/utils"

// Created is queued when Add[T] successfully inserts a new resource.
type Created[T any] struct{ ID utils.ID }

func (Created[T]) IsEvent() {}

// Changed is queued when a caller explicitly reports a mutation (the
// registry itself cannot observe writes through a returned *T, so
// producers call MarkChanged after releasing a write borrow).
type Changed[T any] struct{ ID utils.ID }

func (Changed[T]) IsEvent() {}

// Destroyed is queued when a resource is removed from the registry, or
// when its owning type is unregistered entirely.
type Destroyed[T any] struct{ ID utils.ID }

func (Destroyed[T]) IsEvent() {}

// Load is queued when AddFromLoad inserts a resource reconstructed by the
// Serializable registry hook (kernel/registry.Restore) rather than
// constructed fresh.
type Load[T any] struct{ ID utils.ID }

func (Load[T]) IsEvent() {}
