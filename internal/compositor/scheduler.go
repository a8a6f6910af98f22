package compositor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultInterval       = time.Second / 60
	defaultImmediateDelay = 4 * time.Millisecond
)

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	// Interval is the steady compose period.
	Interval time.Duration
	// ImmediateDelay is how long after the first invalidation an extra
	// compose pass runs. Invalidations within the delay share the pass.
	ImmediateDelay time.Duration
	Logger         *slog.Logger
}

// Scheduler owns the compositor's goroutine. A steady ticker drives normal
// compose passes and animation; a one-shot timer armed by invalidation runs
// an early pass. Every other goroutine reaches the compositor by posting a
// task with Do or Call.
type Scheduler struct {
	c              *Compositor
	interval       time.Duration
	immediateDelay time.Duration
	logger         *slog.Logger

	tasks     chan func(*Compositor)
	ticker    *time.Ticker
	immediate *time.Timer
	armed     bool
	fatal     error
}

// NewScheduler binds a scheduler to c. From then on c must only be touched
// from tasks.
func NewScheduler(c *Compositor, cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	delay := cfg.ImmediateDelay
	if delay <= 0 {
		delay = defaultImmediateDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = c.logger
	}

	s := &Scheduler{
		c:              c,
		interval:       interval,
		immediateDelay: delay,
		logger:         logger,
		tasks:          make(chan func(*Compositor), 256),
		immediate:      time.NewTimer(time.Hour),
	}
	s.immediate.Stop()

	c.requestCompose = s.armImmediate
	if c.dispatch == nil {
		c.dispatch = func(fn func()) {
			s.Do(func(*Compositor) { fn() })
		}
	}
	// Damage recorded before binding, such as the initial full-screen
	// invalidation from New, still gets an early pass.
	if !c.damage.IsEmpty() || c.occlusionsStale {
		s.armImmediate()
	}
	return s
}

// Run services ticks and tasks until ctx is cancelled. It returns an error
// only when the compositor can no longer render.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ticker = time.NewTicker(s.interval)
	defer s.ticker.Stop()
	defer s.immediate.Stop()

	s.logger.Info("scheduler started", "interval", s.interval, "immediate_delay", s.immediateDelay)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case now := <-s.ticker.C:
			s.guard("steady tick", func() { s.steadyTick(now) })
		case <-s.immediate.C:
			s.guard("immediate tick", s.immediateTick)
		case fn := <-s.tasks:
			s.guard("task", func() { fn(s.c) })
		}
		if s.fatal != nil {
			return s.fatal
		}
	}
}

// Do posts fn to the compositor goroutine.
func (s *Scheduler) Do(fn func(*Compositor)) {
	s.tasks <- fn
}

// Call runs fn on the compositor goroutine and waits for its result.
func (s *Scheduler) Call(ctx context.Context, fn func(*Compositor) error) error {
	done := make(chan error, 1)
	task := func(c *Compositor) {
		done <- fn(c)
	}
	select {
	case s.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResolutionChanged reallocates the screen buffers on the compositor
// goroutine with both timers stopped. An allocation failure stops Run.
func (s *Scheduler) ResolutionChanged() {
	s.Do(func(c *Compositor) {
		s.ticker.Stop()
		s.immediate.Stop()
		s.armed = false

		if err := c.ScreenResolutionChanged(); err != nil {
			if errors.Is(err, ErrAllocation) {
				s.fatal = fmt.Errorf("screen resolution change: %w", err)
				return
			}
			s.logger.Error("screen resolution change failed", "error", err)
		}
		s.ticker.Reset(s.interval)
	})
}

func (s *Scheduler) steadyTick(now time.Time) {
	s.c.StepAnimations(now)
	s.c.Compose()
	s.c.NotifyDisplayLinks()
}

func (s *Scheduler) immediateTick() {
	s.armed = false
	s.c.Compose()
}

func (s *Scheduler) armImmediate() {
	if s.armed {
		return
	}
	s.armed = true
	s.immediate.Reset(s.immediateDelay)
}

// guard recovers from panics so one bad task cannot take the daemon down.
// The interrupted work may have left damage and flush sets half applied,
// so the next pass repaints the whole desktop.
func (s *Scheduler) guard(what string, fn func()) {
	defer func() {
		if err := recover(); err != nil {
			s.logger.Error("scheduler panic recovered", "in", what, "error", err)
			s.c.InvalidateOcclusions()
			s.c.InvalidateScreen()
		}
	}()
	fn()
}
