package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/platform"
)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically mirrors the backend's window list into the
// compositor's window stack. Listing happens on the reconciler goroutine;
// the stack is replaced on the compositor loop.
type Reconciler struct {
	interval time.Duration
	lister   platform.WindowLister
	stack    *platform.Stack
	sched    *compositor.Scheduler
	logger   *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, lister platform.WindowLister, stack *platform.Stack, sched *compositor.Scheduler) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval: interval,
		lister:   lister,
		stack:    stack,
		sched:    sched,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile(ctx context.Context) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	windows, err := r.lister.ListWindows()
	if err != nil {
		r.logger.Error("reconciler: failed to list windows", "error", err)
		return
	}

	err = r.sched.Call(ctx, func(*compositor.Compositor) error {
		before := r.stack.Len()
		r.stack.Replace(windows)
		if before != r.stack.Len() {
			r.logger.Debug("reconciler: window count changed", "before", before, "after", r.stack.Len())
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		r.logger.Warn("reconciler: failed to update window stack", "error", err)
	}
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow(ctx context.Context) {
	r.reconcile(ctx)
}
