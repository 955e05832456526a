// Package context holds the read-only bundle of engine-wide handles
// (shared data registry, messenger, job pool) that systems and plugins
// receive at call time. It is split out from kernel/engine so that
// kernel/scheduler and kernel/plugin — which both accept a *Context in
// their public interfaces — don't need to import kernel/engine, which in
// turn owns the scheduler and the plugin manager.
package context

import (
	"github.com/kestrelrt/kestrel/kernel/jobs"
	"github.com/kestrelrt/kestrel/kernel/messenger"
	"github.com/kestrelrt/kestrel/kernel/shareddata"
)

// Context is the bundle passed to every system and plugin call. It is a
// plain value (all fields are pointers), so it is cheap to copy and safe
// to hand to concurrently-running systems.
type Context struct {
	SharedData *shareddata.SharedData
	Messenger  *messenger.Messenger
	Jobs       *jobs.Pool
}
