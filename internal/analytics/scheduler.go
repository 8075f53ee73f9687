package analytics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lakeops/metalake/internal/logging"
)

// Scheduler fires analytics runs on a fixed interval, resuming the
// collection window from persisted state after restarts.
type Scheduler struct {
	runner   *Runner
	state    StateManager
	interval time.Duration
	lookback time.Duration
	base     RunOptions
	log      *slog.Logger
}

// NewScheduler creates a Scheduler. base supplies the prefix, filters and
// limits of every scheduled run; its window fields are overridden each tick.
// A non-positive interval falls back to DefaultWindow.
func NewScheduler(runner *Runner, state StateManager, interval, lookback time.Duration, base RunOptions) *Scheduler {
	if interval <= 0 {
		interval = DefaultWindow
	}
	return &Scheduler{
		runner:   runner,
		state:    state,
		interval: interval,
		lookback: lookback,
		base:     base,
		log:      logging.Component("scheduler"),
	}
}

// Run loops until ctx is canceled. The first run fires immediately; the
// ticker paces the rest. Failed runs are logged and the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.interval, "lookback", s.lookback)

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes one scheduled run and records where its window ended.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	now := time.Now().UTC()
	opts := s.base
	opts.End = now
	opts.Start = s.resumeStart(ctx, now)

	summary, err := s.runner.Run(ctx, opts)
	if err != nil {
		s.log.Error("scheduled run failed", "error", err)
		return
	}

	st := &RunState{
		LastWindowEnd: summary.WindowEnd,
		LastRunID:     summary.RunID,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.state.Save(ctx, st); err != nil {
		s.log.Error("run state save failed", "error", err)
	}
}

// resumeStart returns where the window should pick up, or the zero time when
// no usable state exists — the runner then applies its default window. A
// saved window older than the lookback cap is clamped so a long outage
// cannot trigger an unbounded scan.
func (s *Scheduler) resumeStart(ctx context.Context, now time.Time) time.Time {
	st, err := s.state.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoState) {
			s.log.Warn("run state load failed, using default window", "error", err)
		}
		return time.Time{}
	}

	start := st.LastWindowEnd
	if floor := now.Add(-s.lookback); s.lookback > 0 && start.Before(floor) {
		s.log.Warn("capping resumed window",
			"last_window_end", st.LastWindowEnd,
			"lookback", s.lookback,
		)
		start = floor
	}
	return start
}
