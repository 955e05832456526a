// Package engine wires the Messenger, SharedData registry, Job Handler,
// Scheduler and Plugin Manager into a single App and drives the frame
// loop (component F: Context & App).
package engine

import (
	"context"
	"time"

	kctx "github.com/kestrelrt/kestrel/kernel/context"
	"github.com/kestrelrt/kestrel/kernel/jobs"
	"github.com/kestrelrt/kestrel/kernel/messenger"
	"github.com/kestrelrt/kestrel/kernel/metrics"
	"github.com/kestrelrt/kestrel/kernel/plugin"
	"github.com/kestrelrt/kestrel/kernel/scheduler"
	"github.com/kestrelrt/kestrel/kernel/shareddata"
	"github.com/kestrelrt/kestrel/kernel/utils"
	"github.com/prometheus/client_golang/prometheus"
)

// Context is the read-only bundle systems and plugins receive. Re-exported
// here so call sites can write engine.Context without importing
// kernel/context directly.
type Context = kctx.Context

// Config configures App construction.
type Config struct {
	WorkerCount     int
	JobQueueDepth   int
	MessengerDepth  int
	Logger          *utils.Logger
	MetricsRegistry *prometheus.Registry
}

// App owns every engine component and drives one frame (RunOnce) or the
// steady-state loop (Run).
type App struct {
	ctx        Context
	scheduler  *scheduler.Scheduler
	plugins    *plugin.Manager
	metrics    *metrics.Metrics
	logger     *utils.Logger
	shutdown   *utils.GracefulShutdown
	isFocused  bool
}

// New constructs an App with all components wired together, and starts
// the job pool's worker goroutines.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = utils.DefaultLogger("engine")
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.NewRegistry()
	}

	pool := jobs.New(cfg.JobQueueDepth, cfg.Logger.Named("jobs"))
	pool.StartWorkers(cfg.WorkerCount)

	msgr := messenger.New(cfg.MessengerDepth, cfg.Logger.Named("messenger"))
	sd := shareddata.New(cfg.Logger.Named("shareddata"))

	ctx := Context{SharedData: sd, Messenger: msgr, Jobs: pool}
	met := metrics.New(cfg.MetricsRegistry)

	a := &App{
		ctx:       ctx,
		scheduler: scheduler.New(pool, msgr, cfg.Logger.Named("scheduler")),
		plugins:   plugin.New(&ctx, cfg.Logger.Named("plugin"), met),
		metrics:   met,
		logger:    cfg.Logger,
		shutdown:  utils.NewGracefulShutdown(10*time.Second, cfg.Logger.Named("shutdown")),
		isFocused: true,
	}
	a.shutdown.Register(func() error {
		pool.Stop()
		return nil
	})
	return a
}

// Context returns the App's shared Context, for wiring plugin factories
// and test setup that needs direct registry/messenger access.
func (a *App) Context() *Context { return &a.ctx }

// Scheduler returns the underlying scheduler, for AddSystem calls.
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Metrics returns the engine's Prometheus collectors.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// SetFocused toggles whether the engine considers itself focused, gating
// systems whose ShouldRunWhenNotFocused is false.
func (a *App) SetFocused(focused bool) { a.isFocused = focused }

// AddPlugin loads a dynamic (WASM) plugin from path.
func (a *App) AddPlugin(path string) (utils.ID, error) {
	return a.plugins.AddPlugin(path)
}

// AddStaticPlugin registers an in-process plugin factory (spec.md §6.1).
func (a *App) AddStaticPlugin(factory plugin.Factory) (utils.ID, error) {
	return a.plugins.AddStaticPlugin(factory)
}

// RunOnce polls for plugin reloads, then drives one full phase sweep.
// Returns false when a system requested the loop stop.
func (a *App) RunOnce() bool {
	a.plugins.PollReloads()

	start := time.Now()
	keepGoing := a.scheduler.RunOnce(&a.ctx, a.isFocused)
	a.metrics.ObservePhase("frame", time.Since(start))

	stats := a.ctx.Jobs.Stats()
	a.metrics.JobQueueDepth.WithLabelValues("high").Set(float64(stats.HighDepth))
	a.metrics.JobQueueDepth.WithLabelValues("medium").Set(float64(stats.MediumDepth))
	a.metrics.JobQueueDepth.WithLabelValues("low").Set(float64(stats.LowDepth))
	a.metrics.CategoryOutstanding.Set(float64(stats.Categories))

	return keepGoing
}

// Run drives RunOnce in a loop until it returns false or stopCtx is done.
func (a *App) Run(stopCtx context.Context) error {
	for {
		select {
		case <-stopCtx.Done():
			return a.Shutdown(context.Background())
		default:
		}
		if !a.RunOnce() {
			return a.Shutdown(context.Background())
		}
	}
}

// Shutdown runs every registered shutdown function (currently: stopping
// the job pool's workers) and aggregates their errors.
func (a *App) Shutdown(ctx context.Context) error {
	return a.shutdown.Shutdown(ctx)
}
