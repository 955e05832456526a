// Package scheduler implements the multi-phase parallel system scheduler:
// a fixed ordered sequence of phases, each holding systems that run
// dependency-gated and in parallel via the job handler, with panic
// isolation and stuck-sweep detection per phase.
package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/kestrelrt/kestrel/kernel/context"
	"github.com/kestrelrt/kestrel/kernel/jobs"
	"github.com/kestrelrt/kestrel/kernel/messenger"
	"github.com/kestrelrt/kestrel/kernel/utils"
)

// Phase is one stage of a frame, run in a fixed order every tick.
type Phase int

const (
	PlatformUpdate Phase = iota
	PreUpdate
	Update
	PostUpdate
	Render
)

// Order is the fixed phase sequence every RunOnce call walks.
var Order = []Phase{PlatformUpdate, PreUpdate, Update, PostUpdate, Render}

func (p Phase) String() string {
	switch p {
	case PlatformUpdate:
		return "platform_update"
	case PreUpdate:
		return "pre_update"
	case Update:
		return "update"
	case PostUpdate:
		return "post_update"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// phaseBucket holds one phase's active systems plus systems queued to be
// applied (added/removed) at the next phase tick boundary.
type phaseBucket struct {
	mu            sync.Mutex
	active        []*SystemRunner
	pendingAdd    []*SystemRunner
	pendingRemove map[utils.ID]bool
	depsByID      map[utils.ID][]utils.ID // for cycle detection bookkeeping
}

func newPhaseBucket() *phaseBucket {
	return &phaseBucket{
		pendingRemove: make(map[utils.ID]bool),
		depsByID:      make(map[utils.ID][]utils.ID),
	}
}

// Scheduler owns every phase's systems and drives one frame at a time.
type Scheduler struct {
	phases map[Phase]*phaseBucket
	pool   *jobs.Pool
	msgr   *messenger.Messenger
	logger *utils.Logger
}

// New creates a scheduler bound to the given job pool and messenger.
func New(pool *jobs.Pool, msgr *messenger.Messenger, logger *utils.Logger) *Scheduler {
	if logger == nil {
		logger = utils.DefaultLogger("scheduler")
	}
	s := &Scheduler{
		phases: make(map[Phase]*phaseBucket),
		pool:   pool,
		msgr:   msgr,
		logger: logger,
	}
	for _, p := range Order {
		s.phases[p] = newPhaseBucket()
	}
	return s
}

// AddSystem queues sys for addition to phase with no dependencies.
func (s *Scheduler) AddSystem(phase Phase, sys System) error {
	return s.AddSystemWithDependencies(phase, sys, nil)
}

// AddSystemWithDependencies queues sys for addition to phase, gated on the
// given dependency ids. The ids are resolved against the phase's active and
// pending systems at the time of this call; an id not found then is never
// waited on, even if a system with that id is added later. Returns a
// CyclicDependency error, without queuing anything, if the new edges would
// create a cycle.
func (s *Scheduler) AddSystemWithDependencies(phase Phase, sys System, deps []utils.ID) error {
	b := s.phases[phase]
	b.mu.Lock()
	defer b.mu.Unlock()

	if detectCycle(b.depsByID, sys.ID(), deps) {
		return utils.NewKindError(utils.KindCyclicDependency, "scheduler: add_system", nil)
	}

	depRunners := make([]*SystemRunner, 0, len(deps))
	byID := indexRunners(b.active, b.pendingAdd)
	for _, d := range deps {
		if r, ok := byID[d]; ok {
			depRunners = append(depRunners, r)
		}
	}

	r := newRunner(sys)
	r.deps = depRunners
	b.depsByID[sys.ID()] = deps
	b.pendingAdd = append(b.pendingAdd, r)
	return nil
}

// RemoveSystem queues id for removal from phase at the next phase tick.
func (s *Scheduler) RemoveSystem(phase Phase, id utils.ID) {
	b := s.phases[phase]
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingRemove[id] = true
	delete(b.depsByID, id)
}

func indexRunners(lists ...[]*SystemRunner) map[utils.ID]*SystemRunner {
	out := make(map[utils.ID]*SystemRunner)
	for _, list := range lists {
		for _, r := range list {
			out[r.sys.ID()] = r
		}
	}
	return out
}

// applyPending runs pending removals (Uninit) and additions (Init) for a
// phase, updating the phase's active list in place.
func (s *Scheduler) applyPending(ctx *context.Context, b *phaseBucket) {
	b.mu.Lock()
	toRemove := b.pendingRemove
	b.pendingRemove = make(map[utils.ID]bool)
	toAdd := b.pendingAdd
	b.pendingAdd = nil
	b.mu.Unlock()

	if len(toRemove) > 0 {
		kept := b.active[:0:0]
		for _, r := range b.active {
			if toRemove[r.sys.ID()] {
				if err := r.uninit(ctx); err != nil {
					s.logger.Error("scheduler: system uninit failed",
						utils.String("system", r.sys.Name()), utils.Err(err))
				}
				continue
			}
			kept = append(kept, r)
		}
		b.active = kept
	}

	for _, r := range toAdd {
		if err := r.init(ctx); err != nil {
			s.logger.Error("scheduler: system init failed",
				utils.String("system", r.sys.Name()), utils.Err(err))
			continue
		}
		b.active = append(b.active, r)
	}
}

// RunOnce drives a single frame through every phase in order, then flushes
// shared-data events to the messenger and drains the messenger to
// listeners. It returns false if any system requested the frame loop
// stop (by returning false from Run), or a system panicked.
func (s *Scheduler) RunOnce(ctx *context.Context, isFocused bool) bool {
	keepGoing := true
	for _, p := range Order {
		b := s.phases[p]
		s.applyPending(ctx, b)
		if !s.sweepPhase(ctx, b, isFocused) {
			keepGoing = false
		}
	}

	ctx.SharedData.FlushPendingEvents(s.msgr)
	s.msgr.Process(nil)
	return keepGoing
}

// sweepPhase runs every active runner in the phase, gated on dependency
// completion, in repeated passes until every runner reaches Executed.
func (s *Scheduler) sweepPhase(ctx *context.Context, b *phaseBucket, isFocused bool) bool {
	continueFrame := &atomic.Bool{}
	continueFrame.Store(true)

	for _, r := range b.active {
		r.state.Store(int32(stateWaiting))
	}

	remaining := len(b.active)
	for remaining > 0 {
		progressed := false

		for _, r := range b.active {
			if runnerState(r.state.Load()) != stateWaiting || !r.depsExecuted() {
				continue
			}
			if !r.state.CompareAndSwap(int32(stateWaiting), int32(stateRunning)) {
				continue
			}
			progressed = true

			if !isFocused && !r.sys.ShouldRunWhenNotFocused() {
				r.state.Store(int32(stateExecuted))
				continue
			}

			rr := r
			s.pool.AddJob(rr.sys.Name(), rr.sys.ID(), jobs.High, func() {
				s.runSystemJob(ctx, rr, continueFrame)
			})
		}

		for anyRunning(b.active) {
			runtime.Gosched()
		}

		newRemaining := countNotExecuted(b.active)
		if newRemaining == remaining && !progressed {
			s.breakStuck(b.active)
			break
		}
		remaining = newRemaining
	}

	return continueFrame.Load()
}

func (s *Scheduler) runSystemJob(ctx *context.Context, r *SystemRunner, continueFrame *atomic.Bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("scheduler: system panicked",
				utils.String("system", r.sys.Name()), utils.Any("recover", rec))
			s.msgr.Dispatcher().Send(SystemFailed{ID: r.sys.ID(), Name: r.sys.Name()})
			continueFrame.Store(false)
			r.state.Store(int32(stateExecuted))
		}
	}()

	if !r.sys.Run(ctx) {
		continueFrame.Store(false)
	}
	r.state.Store(int32(stateExecuted))
}

func (s *Scheduler) breakStuck(active []*SystemRunner) {
	for _, r := range active {
		if runnerState(r.state.Load()) == stateWaiting {
			r.state.Store(int32(stateExecuted))
			s.msgr.Dispatcher().Send(SystemStuck{ID: r.sys.ID(), Name: r.sys.Name()})
			s.logger.Warn("scheduler: system stuck on unsatisfiable dependency",
				utils.String("system", r.sys.Name()))
		}
	}
}

func anyRunning(active []*SystemRunner) bool {
	for _, r := range active {
		if runnerState(r.state.Load()) == stateRunning {
			return true
		}
	}
	return false
}

func countNotExecuted(active []*SystemRunner) int {
	n := 0
	for _, r := range active {
		if runnerState(r.state.Load()) != stateExecuted {
			n++
		}
	}
	return n
}
