// Package registry is the Serializable registry hook (component H): a
// pluggable codec plus a factory table that lets the shared data registry
// reconstruct a resource from persisted bytes via Restore (which inserts
// it with shareddata.AddFromLoad), instead of only ever constructing one
// fresh.
package registry

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/kestrelrt/kestrel/kernel/shareddata"
	"github.com/kestrelrt/kestrel/kernel/utils"
)

// Codec marshals/unmarshals a resource's persisted form. The default is
// JSON, matching the literal wire format spec.md already mandates for
// per-system config files; a caller may supply any other Codec without
// the shared data registry or scheduler needing to know the difference.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)            { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error        { return json.Unmarshal(data, v) }

// Factory constructs the zero value a type's bytes should be unmarshaled
// into, and is registered once per type the engine may persist/restore.
type Factory func() any

// TypeRegistry maps a type token to the (Codec, Factory) pair used to
// reconstruct it. One TypeRegistry is normally shared by the whole engine
// and passed to Restore when a resource is inserted into kernel/shareddata.
type TypeRegistry struct {
	mu      sync.Mutex
	codec   Codec
	entries map[reflect.Type]Factory
}

// New creates a TypeRegistry using codec for every registered type. A nil
// codec defaults to JSONCodec.
func New(codec Codec) *TypeRegistry {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &TypeRegistry{codec: codec, entries: make(map[reflect.Type]Factory)}
}

// Register associates T's type token with factory. Idempotent: a repeat
// call with the same T overwrites the factory.
func Register[T any](tr *TypeRegistry, factory func() T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.entries[t] = func() any {
		v := factory()
		return &v
	}
}

// Load reconstructs a T from persisted bytes using the registered factory
// and the registry's codec. Fails with KindNotFound if T was never
// registered.
func Load[T any](tr *TypeRegistry, data []byte) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	tr.mu.Lock()
	factory, ok := tr.entries[t]
	codec := tr.codec
	tr.mu.Unlock()
	if !ok {
		return zero, utils.NewKindError(utils.KindNotFound, "registry: load", nil)
	}

	v := factory()
	if err := codec.Unmarshal(data, v); err != nil {
		return zero, utils.WrapError(err, "registry: unmarshal")
	}
	ptr, ok := v.(*T)
	if !ok {
		return zero, utils.NewKindError(utils.KindNotFound, "registry: factory type mismatch", nil)
	}
	return *ptr, nil
}

// Save marshals value using the registry's codec.
func (tr *TypeRegistry) Save(value any) ([]byte, error) {
	return tr.codec.Marshal(value)
}

// Restore reconstructs a T from data via Load and inserts it into sd under
// id, queuing shareddata.Load[T] rather than shareddata.Created[T] — this
// is the hook kernel/shareddata's Load event documents: a resource whose
// first appearance in the registry came from persisted bytes, not a fresh
// construction.
func Restore[T any](tr *TypeRegistry, sd *shareddata.SharedData, id utils.ID, data []byte) (*shareddata.Handle[T], error) {
	value, err := Load[T](tr, data)
	if err != nil {
		return nil, err
	}
	return shareddata.AddFromLoad(sd, id, value)
}
