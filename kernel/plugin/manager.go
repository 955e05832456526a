// Package plugin implements the hot-reloadable plugin manager: shadow-copy
// load/unload of native (WASM) plugin modules, plus static in-process
// plugin registration, with file-watch-triggered reload.
package plugin

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/kestrelrt/kestrel/kernel/context"
	"github.com/kestrelrt/kestrel/kernel/metrics"
	"github.com/kestrelrt/kestrel/kernel/utils"
	"github.com/kestrelrt/kestrel/kernel/watch"
)

// unloadSettleDelay brackets the unprepare/close/delete sequence so a
// plugin's background goroutines have a beat to observe Unprepare before
// its library file disappears out from under them.
const unloadSettleDelay = 20 * time.Millisecond

// PluginObject is the host-side handle to a loaded plugin, realized
// either by a WasmPlugin (kernel/plugin/wasm.go) or an in-process static
// factory registered via Manager.AddStaticPlugin.
type PluginObject interface {
	ID() utils.ID
	Name() string
	Prepare(ctx *context.Context) error
	Unprepare(ctx *context.Context) error
}

// Factory constructs a PluginObject, the static-plugin equivalent of
// resolving create_plugin from a dynamically loaded library.
type Factory func() PluginObject

type handle struct {
	id           utils.ID
	name         string
	originalPath string // empty for static plugins
	shadowPath   string // empty for static plugins
	obj          PluginObject
	wasm         *wasmObject // nil for static plugins
	watcher      *watch.Watcher
}

// Manager owns every currently-loaded plugin and drives hot reload.
type Manager struct {
	mu      sync.Mutex
	handles map[utils.ID]*handle
	ctx     *context.Context
	logger  *utils.Logger
	metrics *metrics.Metrics
}

// New creates a plugin manager bound to ctx, which is passed to every
// Prepare/Unprepare call. m may be nil, in which case reload counters are
// skipped (used by tests that don't need a Prometheus registry).
func New(ctx *context.Context, logger *utils.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = utils.DefaultLogger("plugin")
	}
	return &Manager{handles: make(map[utils.ID]*handle), ctx: ctx, logger: logger, metrics: m}
}

// AddPlugin loads a WASM module at originalPath via the shadow-copy
// protocol: canonicalize, copy to an in_use_* sibling, instantiate,
// resolve the four-function vtable, call create_plugin then Prepare, and
// start a file watch on the original path for future reload.
func (m *Manager) AddPlugin(originalPath string) (utils.ID, error) {
	canonical, err := filepath.EvalSymlinks(originalPath)
	if err != nil {
		return utils.NilID, utils.NewKindError(utils.KindNotFound, "plugin: canonicalize", err)
	}
	if originalPath, err = filepath.Abs(canonical); err != nil {
		return utils.NilID, utils.NewKindError(utils.KindNotFound, "plugin: canonicalize", err)
	}
	name := originalPath
	shadowPath, err := shadowCopy(originalPath)
	if err != nil {
		return utils.NilID, err
	}

	obj, err := loadWasmObject(shadowPath, name)
	if err != nil {
		removeShadowCopy(shadowPath, m.logger)
		return utils.NilID, err
	}

	if err := obj.Prepare(m.ctx); err != nil {
		removeShadowCopy(shadowPath, m.logger)
		return utils.NilID, err
	}

	w, err := watch.New(originalPath, m.logger.Named("watch"))
	if err != nil {
		m.logger.Warn("plugin: hot reload watch unavailable",
			utils.String("path", originalPath), utils.Err(err))
	}

	h := &handle{
		id:           obj.ID(),
		name:         name,
		originalPath: originalPath,
		shadowPath:   shadowPath,
		obj:          obj,
		wasm:         obj,
		watcher:      w,
	}

	m.mu.Lock()
	if _, exists := m.handles[h.id]; exists {
		m.mu.Unlock()
		return utils.NilID, utils.NewKindError(utils.KindAlreadyExists, "plugin: add_plugin", nil)
	}
	m.handles[h.id] = h
	m.mu.Unlock()

	m.ctx.Messenger.Dispatcher().Send(Loaded{ID: h.id, Name: name})
	return h.id, nil
}

// AddStaticPlugin registers an in-process plugin object built by factory,
// skipping the shadow-copy/dynamic-load machinery but going through the
// same Prepare call and handle bookkeeping (spec.md §6.1: "the same four
// functions may be linked in and registered via App.add_static_plugin").
func (m *Manager) AddStaticPlugin(factory Factory) (utils.ID, error) {
	obj := factory()
	if err := obj.Prepare(m.ctx); err != nil {
		return utils.NilID, err
	}

	h := &handle{id: obj.ID(), name: obj.Name(), obj: obj}

	m.mu.Lock()
	if _, exists := m.handles[h.id]; exists {
		m.mu.Unlock()
		return utils.NilID, utils.NewKindError(utils.KindAlreadyExists, "plugin: add_static_plugin", nil)
	}
	m.handles[h.id] = h
	m.mu.Unlock()

	m.ctx.Messenger.Dispatcher().Send(Loaded{ID: h.id, Name: h.name})
	return h.id, nil
}

// RemovePlugin runs the unload protocol: stop the watch, settle, call
// Unprepare, drop the object, settle again, then best-effort delete the
// shadow-copy file. Unprepare errors are logged but don't block unload —
// the plugin is gone from the registry either way.
func (m *Manager) RemovePlugin(id utils.ID) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
	}
	m.mu.Unlock()
	if !ok {
		return utils.NewKindError(utils.KindNotFound, "plugin: remove_plugin", nil)
	}

	if h.watcher != nil {
		h.watcher.Stop()
	}
	time.Sleep(unloadSettleDelay)

	err := h.obj.Unprepare(m.ctx)
	if err != nil {
		m.logger.Error("plugin: unprepare failed", utils.String("name", h.name), utils.Err(err))
	}

	if h.wasm != nil {
		if derr := h.wasm.destroy(); derr != nil {
			m.logger.Error("plugin: destroy failed", utils.String("name", h.name), utils.Err(derr))
		}
	}

	time.Sleep(unloadSettleDelay)

	if h.shadowPath != "" {
		removeShadowCopy(h.shadowPath, m.logger)
	}

	m.ctx.Messenger.Dispatcher().Send(Unloaded{ID: id, Name: h.name})
	return err
}

// PollReloads checks every dynamically-loaded plugin's file watch for a
// modification to its original path and, if found, performs a full
// unload+load cycle. A reload failure leaves that id unloaded (spec.md:
// "falls back to no-plugin for that id"); dependents observe the gap via
// the Unloaded event with no matching Loaded following it.
func (m *Manager) PollReloads() {
	m.mu.Lock()
	var toReload []*handle
	for _, h := range m.handles {
		if h.watcher == nil {
			continue
		}
		select {
		case ev := <-h.watcher.Events():
			if ev.Kind == watch.Modified || ev.Kind == watch.Created {
				toReload = append(toReload, h)
			}
		default:
		}
	}
	m.mu.Unlock()

	for _, h := range toReload {
		original := h.originalPath
		if err := m.RemovePlugin(h.id); err != nil {
			m.logger.Error("plugin: reload unload failed", utils.String("name", h.name), utils.Err(err))
			continue
		}
		if _, err := m.AddPlugin(original); err != nil {
			m.logger.Error("plugin: reload failed", utils.String("path", original), utils.Err(err))
			m.ctx.Messenger.Dispatcher().Send(LoadFailed{Name: original, Err: err})
			if m.metrics != nil {
				m.metrics.PluginLoadFailures.Inc()
			}
			continue
		}
		if m.metrics != nil {
			m.metrics.PluginReloads.Inc()
		}
	}
}

// Get returns the plugin object registered under id, if any.
func (m *Manager) Get(id utils.ID) (PluginObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	if !ok {
		return nil, false
	}
	return h.obj, true
}

// Count returns how many plugins are currently loaded.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}
