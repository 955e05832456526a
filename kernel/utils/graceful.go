package utils

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// GracefulShutdown runs every registered teardown hook exactly once, in
// reverse registration order, bounded by a single overall timeout. The
// engine registers a hook for each owned subsystem that needs teardown
// (currently only the job pool) so App.Shutdown can unwind them without
// caring which ones exist.
type GracefulShutdown struct {
	mu      sync.Mutex
	hooks   []func() error
	timeout time.Duration
	logger  *Logger
}

// NewGracefulShutdown creates a shutdown sequencer that aborts after
// timeout even if some hooks haven't returned.
func NewGracefulShutdown(timeout time.Duration, logger *Logger) *GracefulShutdown {
	if logger == nil {
		logger = DefaultLogger("shutdown")
	}
	return &GracefulShutdown{
		timeout: timeout,
		logger:  logger,
	}
}

// Register appends a teardown hook, run on Shutdown in LIFO order so a
// subsystem registered after one it depends on tears down first.
func (g *GracefulShutdown) Register(fn func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, fn)
}

// Shutdown runs the registered hooks one at a time, most recently
// registered first, and waits for them to finish or for the timeout
// (bounded by ctx), whichever comes first. Hook errors are aggregated with
// multierr rather than short-circuiting on the first failure, so one
// failing subsystem doesn't hide a different one's error. A hook still
// running when the timeout fires keeps the hooks after it from starting.
func (g *GracefulShutdown) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("engine: shutting down", Int("hooks", len(g.hooks)))

	shutdownCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	hooks := append([]func() error(nil), g.hooks...)
	errs := make(chan error, len(hooks))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](); err != nil {
				g.logger.Error("engine: shutdown hook failed", Int("index", i), Err(err))
				errs <- err
			}
		}
	}()

	select {
	case <-done:
		close(errs)
		var combined error
		for err := range errs {
			combined = multierr.Append(combined, err)
		}
		if combined != nil {
			return combined
		}
		g.logger.Info("engine: shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		g.logger.Warn("engine: shutdown timed out")
		return NewError("shutdown timeout")
	}
}
