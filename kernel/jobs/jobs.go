// Package jobs implements the engine's priority job queue and worker pool:
// High/Medium/Low channels polled in that order, with an outstanding-job
// counter kept per category so the scheduler can barrier-wait on a
// category without knowing which jobs belong to it.
package jobs

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/kestrelrt/kestrel/kernel/utils"
)

// Priority is the dispatch order a job is considered in: workers always
// drain High before Medium before Low.
type Priority int

const (
	High Priority = iota
	Medium
	Low
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Category groups jobs so the scheduler can ask "is anything in category
// X still outstanding" without tracking individual job ids itself.
type Category = utils.ID

// Job is a unit of work submitted to the pool.
type Job struct {
	ID       utils.ID
	Name     string
	Category Category
	Priority Priority
	Thunk    func()
}

// Stats is a point-in-time snapshot of queue depth and worker count.
type Stats struct {
	HighDepth, MediumDepth, LowDepth int
	Workers                          int
	Categories                       int // categories with at least one outstanding job
}

// Pool is the job handler: three priority channels, a category outstanding
// counter map, and a fixed set of worker goroutines.
type Pool struct {
	high, medium, low chan *Job

	mu         sync.Mutex
	categories map[Category]*atomic.Int64

	workers   int
	stopCh    chan struct{}
	stoppedWg sync.WaitGroup

	logger *utils.Logger
}

// New creates a job pool with the given per-priority channel capacity.
// Capacity 0 means unbounded-in-practice (a generously sized buffer);
// jobs are still delivered in submission order within a priority.
func New(capacity int, logger *utils.Logger) *Pool {
	if logger == nil {
		logger = utils.DefaultLogger("jobs")
	}
	if capacity <= 0 {
		capacity = 4096
	}
	return &Pool{
		high:       make(chan *Job, capacity),
		medium:     make(chan *Job, capacity),
		low:        make(chan *Job, capacity),
		categories: make(map[Category]*atomic.Int64),
		stopCh:     make(chan struct{}),
		logger:     logger,
	}
}

// DefaultWorkerCount returns cores-1, floored at 1, matching the engine's
// default worker sizing.
func DefaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		return 1
	}
	return n
}

func (p *Pool) counter(cat Category) *atomic.Int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.categories[cat]
	if !ok {
		c = &atomic.Int64{}
		p.categories[cat] = c
	}
	return c
}

// AddJob enqueues a job and marks its category as having one more
// outstanding job.
func (p *Pool) AddJob(name string, category Category, priority Priority, thunk func()) *Job {
	j := &Job{ID: utils.NewID(), Name: name, Category: category, Priority: priority, Thunk: thunk}
	p.counter(category).Add(1)

	var ch chan *Job
	switch priority {
	case High:
		ch = p.high
	case Medium:
		ch = p.medium
	default:
		ch = p.low
	}
	ch <- j
	return j
}

// TakeJob pops one job from the given priority without blocking.
func (p *Pool) TakeJob(priority Priority) (*Job, bool) {
	var ch chan *Job
	switch priority {
	case High:
		ch = p.high
	case Medium:
		ch = p.medium
	default:
		ch = p.low
	}
	select {
	case j := <-ch:
		return j, true
	default:
		return nil, false
	}
}

// takeAny polls High, then Medium, then Low, returning the first job found.
func (p *Pool) takeAny() (*Job, bool) {
	if j, ok := p.TakeJob(High); ok {
		return j, true
	}
	if j, ok := p.TakeJob(Medium); ok {
		return j, true
	}
	return p.TakeJob(Low)
}

// HasPending reports whether category still has outstanding jobs.
func (p *Pool) HasPending(category Category) bool {
	p.mu.Lock()
	c, ok := p.categories[category]
	p.mu.Unlock()
	if !ok {
		return false
	}
	return c.Load() > 0
}

// ClearPending drains all three queues and zeroes every category counter,
// without running the drained jobs.
func (p *Pool) ClearPending() {
	for {
		select {
		case <-p.high:
		case <-p.medium:
		case <-p.low:
		default:
			p.mu.Lock()
			for _, c := range p.categories {
				c.Store(0)
			}
			p.mu.Unlock()
			return
		}
	}
}

// run executes a job, unconditionally decrementing its category counter
// even if the thunk panics.
func (p *Pool) run(j *Job) {
	defer p.counter(j.Category).Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("jobs: job panicked",
				utils.String("job", j.Name), utils.Any("recover", r))
		}
	}()
	j.Thunk()
}

// ExecuteAll synchronously drains and runs every currently queued job,
// High first. Intended for single-threaded fallback / shutdown draining,
// not the steady-state worker loop.
func (p *Pool) ExecuteAll() {
	for {
		j, ok := p.takeAny()
		if !ok {
			return
		}
		p.run(j)
	}
}

// StartWorkers launches n goroutines that poll High->Medium->Low,
// yielding when all three are empty, until Stop is called.
func (p *Pool) StartWorkers(n int) {
	if n <= 0 {
		n = DefaultWorkerCount()
	}
	p.workers = n
	for i := 0; i < n; i++ {
		p.stoppedWg.Add(1)
		go p.workerLoop()
	}
}

func (p *Pool) workerLoop() {
	defer p.stoppedWg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		j, ok := p.takeAny()
		if !ok {
			runtime.Gosched()
			continue
		}
		p.run(j)
	}
}

// Stop signals all workers to exit and waits for them to do so.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.stoppedWg.Wait()
}

// Stats returns a snapshot of queue depths and worker count.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	n := 0
	for _, c := range p.categories {
		if c.Load() > 0 {
			n++
		}
	}
	p.mu.Unlock()
	return Stats{
		HighDepth:   len(p.high),
		MediumDepth: len(p.medium),
		LowDepth:    len(p.low),
		Workers:     p.workers,
		Categories:  n,
	}
}
