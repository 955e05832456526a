// Package watch wraps fsnotify into the engine's FileEvent union, used by
// the plugin manager to detect hot-reload-worthy changes to a loaded
// plugin's original file.
package watch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kestrelrt/kestrel/kernel/utils"
)

// renameToWindow bounds how soon a Create on the watched name, following a
// Rename observed on some other name in the same directory, is treated as
// the "into" side of that rename rather than an unrelated fresh file.
const renameToWindow = 500 * time.Millisecond

// Kind distinguishes the union of filesystem changes the engine cares
// about. Renames surface as a from/to pair rather than one combined event
// because fsnotify itself only reports one half at a time.
type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
	RenamedFrom
	RenamedTo
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case RenamedFrom:
		return "renamed_from"
	case RenamedTo:
		return "renamed_to"
	default:
		return "unknown"
	}
}

// FileEvent is a single observed change to a watched path.
type FileEvent struct {
	Kind Kind
	Path string
}

// Watcher observes a single file by watching its parent directory and
// filtering fsnotify events down to that filename — fsnotify cannot
// reliably re-arm a watch on a single path across a remove+recreate cycle,
// which is exactly what plugin shadow-copy reloads do.
type Watcher struct {
	fsw      *fsnotify.Watcher
	name     string
	events   chan FileEvent
	done     chan struct{}
	logger   *utils.Logger

	lastForeignRename time.Time // zero if none seen yet, see translate
}

// New starts watching path's parent directory for changes to path.
func New(path string, logger *utils.Logger) (*Watcher, error) {
	if logger == nil {
		logger = utils.DefaultLogger("watch")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, utils.WrapError(err, "watch: resolve path")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, utils.WrapError(err, "watch: create watcher")
	}
	dir := filepath.Dir(abs)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, utils.NewKindError(utils.KindNotFound, "watch: add directory", err)
	}

	w := &Watcher{
		fsw:    fsw,
		name:   filepath.Base(abs),
		events: make(chan FileEvent, 32),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.pump()
	return w, nil
}

func (w *Watcher) pump() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.translate(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: fsnotify error", utils.Err(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) translate(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	if base != w.name {
		// Not our file, but remember a rename of some other name in the
		// directory: fsnotify reports the "into" side of a rename as a
		// plain Create on the destination name, so a Create that lands on
		// w.name shortly after this is really RenamedTo, not a fresh file.
		if ev.Op&fsnotify.Rename != 0 {
			w.lastForeignRename = time.Now()
		}
		return
	}

	var k Kind
	switch {
	case ev.Op&fsnotify.Create != 0:
		if !w.lastForeignRename.IsZero() && time.Since(w.lastForeignRename) < renameToWindow {
			k = RenamedTo
		} else {
			k = Created
		}
	case ev.Op&fsnotify.Write != 0:
		k = Modified
	case ev.Op&fsnotify.Remove != 0:
		k = Deleted
	case ev.Op&fsnotify.Rename != 0:
		k = RenamedFrom
	default:
		return
	}
	select {
	case w.events <- FileEvent{Kind: k, Path: ev.Name}:
	default:
		// Best-effort delivery: a full queue drops the event, duplicate
		// and out-of-order delivery is tolerated by callers per contract.
	}
}

// Events returns the channel of translated filesystem events.
func (w *Watcher) Events() <-chan FileEvent { return w.events }

// Stop tears down the underlying fsnotify watch. Safe to call once.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsw.Close()
}
