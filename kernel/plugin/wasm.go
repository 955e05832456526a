package plugin

import (
	"os"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/kestrelrt/kestrel/kernel/context"
	"github.com/kestrelrt/kestrel/kernel/utils"
)

// wasmCall is the shape every exported lifecycle function takes: wasmer's
// generic export wrapper returns (interface{}, error) regardless of the
// underlying signature.
type wasmCall func(...interface{}) (interface{}, error)

// wasmObject realizes a "plugin dynamic library" as a loaded WASM module.
// The module's export table stands in for the C-ABI vtable spec.md calls
// for: create_plugin/prepare_plugin/unprepare_plugin/destroy_plugin.
type wasmObject struct {
	id       utils.ID
	name     string
	instance *wasmer.Instance
	handle   int32

	createPlugin     wasmCall
	preparePlugin    wasmCall
	unpreparePlugin  wasmCall
	destroyPlugin    wasmCall
}

// loadWasmObject reads wasmBytes, instantiates the module, resolves the
// four required exports, and invokes create_plugin to obtain the guest's
// opaque self handle. Grounded on the teacher's wasm/executor.go
// (NewEngine/NewStore/NewModule/NewInstance/Exports.GetFunction).
func loadWasmObject(path, name string) (*wasmObject, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.NewKindError(utils.KindNotFound, "plugin: read wasm file", err)
	}

	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)

	module, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return nil, utils.WrapError(err, "plugin: compile wasm module")
	}

	importObject := wasmer.NewImportObject()
	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, utils.WrapError(err, "plugin: instantiate wasm module")
	}

	o := &wasmObject{id: utils.NewID(), name: name, instance: instance}

	for fn, slot := range map[string]*wasmCall{
		"create_plugin":    &o.createPlugin,
		"prepare_plugin":   &o.preparePlugin,
		"unprepare_plugin": &o.unpreparePlugin,
		"destroy_plugin":   &o.destroyPlugin,
	} {
		exported, err := instance.Exports.GetFunction(fn)
		if err != nil {
			return nil, utils.NewKindError(utils.KindSymbolMissing, "plugin: resolve "+fn, err)
		}
		*slot = exported
	}

	result, err := o.createPlugin()
	if err != nil {
		return nil, utils.WrapError(err, "plugin: create_plugin")
	}
	o.handle = toI32(result)
	return o, nil
}

func toI32(v interface{}) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int64:
		return int32(n)
	case int:
		return int32(n)
	default:
		return 0
	}
}

func (o *wasmObject) ID() utils.ID   { return o.id }
func (o *wasmObject) Name() string   { return o.name }

func (o *wasmObject) Prepare(_ *context.Context) error {
	_, err := o.preparePlugin(o.handle)
	if err != nil {
		return utils.WrapError(err, "plugin: prepare_plugin")
	}
	return nil
}

func (o *wasmObject) Unprepare(_ *context.Context) error {
	_, err := o.unpreparePlugin(o.handle)
	if err != nil {
		return utils.WrapError(err, "plugin: unprepare_plugin")
	}
	return nil
}

// destroy calls destroy_plugin to let the guest free its own state. The
// wasmer Instance itself is reclaimed by the Go garbage collector; there
// is no explicit Close in this wasmer-go version's Instance API.
func (o *wasmObject) destroy() error {
	_, err := o.destroyPlugin(o.handle)
	if err != nil {
		return utils.WrapError(err, "plugin: destroy_plugin")
	}
	return nil
}
