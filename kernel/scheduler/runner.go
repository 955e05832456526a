package scheduler

import (
	"sync/atomic"

	"github.com/kestrelrt/kestrel/kernel/context"
)

// runnerState is the SystemRunner state machine. Transitions only ever
// move forward within a single sweep: Ready/Executed -> Waiting -> Running
// -> Executed.
type runnerState int32

const (
	stateReady runnerState = iota
	stateWaiting
	stateRunning
	stateExecuted
)

// SystemRunner wraps a System with the scheduling metadata needed to gate
// it on its dependencies' completion within a phase.
type SystemRunner struct {
	sys   System
	state atomic.Int32
	deps  []*SystemRunner
}

func newRunner(sys System) *SystemRunner {
	r := &SystemRunner{sys: sys}
	r.state.Store(int32(stateReady))
	return r
}

func (r *SystemRunner) depsExecuted() bool {
	for _, d := range r.deps {
		if runnerState(d.state.Load()) != stateExecuted {
			return false
		}
	}
	return true
}

// System returns the wrapped system.
func (r *SystemRunner) System() System { return r.sys }

// init calls the wrapped system's Init, surfaced separately so the
// scheduler can batch Init calls for newly-applied runners.
func (r *SystemRunner) init(ctx *context.Context) error { return r.sys.Init(ctx) }

func (r *SystemRunner) uninit(ctx *context.Context) error { return r.sys.Uninit(ctx) }
