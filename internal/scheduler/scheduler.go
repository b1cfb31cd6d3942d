// Package scheduler implements component J: a single
// fixed-tick background loop that triggers indexer runs per each
// indexer's own interval schedule, through a bounded worker pool so one
// slow run never starves the others.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/searchemu/searchemu/internal/indexerrun"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/schema"
)

const (
	// DefaultTick is the loop's fixed cadence.
	DefaultTick = 10 * time.Second
	// DefaultConcurrency bounds how many indexer runs the scheduler will
	// have in flight at once.
	DefaultConcurrency = 4
)

// Scheduler drives indexerrun.Runner on a fixed tick. It
// never blocks a tick on a run: a run that can't claim a worker-pool slot
// this tick is simply reconsidered on the next one.
type Scheduler struct {
	store  *metadata.Store
	runner *indexerrun.Runner
	logger *slog.Logger
	tick   time.Duration

	mu     sync.Mutex
	g      *errgroup.Group
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Scheduler. tick <= 0 and concurrency <= 0 fall back to
// DefaultTick/DefaultConcurrency; a nil logger falls back to slog.Default.
func New(store *metadata.Store, runner *indexerrun.Runner, logger *slog.Logger, tick time.Duration, concurrency int) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &errgroup.Group{}
	g.SetLimit(concurrency)
	return &Scheduler{store: store, runner: runner, logger: logger, tick: tick, g: g}
}

// Start begins the background loop in its own goroutine. Non-blocking;
// the loop runs until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.loop(ctx, done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

// Stop ends the loop and waits up to timeout for any runs the scheduler
// already spawned to finish.
// Cancelling the loop's context also propagates to in-flight runs, whose
// document loop honors ctx.Done() between items so a slow run still
// drains promptly rather than racing the timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}

	waitDone := make(chan struct{})
	go func() {
		_ = s.g.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(timeout):
		s.logger.Warn("scheduler shutdown timed out waiting for in-flight indexer runs")
	}
}

func (s *Scheduler) tickOnce(ctx context.Context) {
	records, err := s.store.List(metadata.KindIndexer)
	if err != nil {
		s.logger.Error("scheduler: list indexers", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, rec := range records {
		var ix schema.Indexer
		if err := json.Unmarshal(rec.Bytes, &ix); err != nil {
			s.logger.Error("scheduler: decode indexer", slog.String("name", rec.Name), slog.String("error", err.Error()))
			continue
		}
		if ix.Disabled || ix.Schedule == nil {
			continue
		}

		due, err := s.dueNow(ix, now)
		if err != nil {
			s.logger.Error("scheduler: compute next run", slog.String("indexer", ix.Name), slog.String("error", err.Error()))
			continue
		}
		if !due {
			continue
		}

		name := ix.Name
		if !s.g.TryGo(func() error {
			s.runOne(ctx, name)
			return nil
		}) {
			s.logger.Debug("scheduler: worker pool saturated, deferring run", slog.String("indexer", name))
		}
	}
}

// dueNow computes whether indexer ix should start a run now, using
// next-run time as max(startTime, lastEndTime + interval), and
// skips indexers the runner reports as currently inProgress (mutual
// exclusion is the runner's job; the scheduler just avoids a doomed call).
func (s *Scheduler) dueNow(ix schema.Indexer, now time.Time) (bool, error) {
	interval, err := ParseInterval(ix.Schedule.Interval)
	if err != nil {
		return false, fmt.Errorf("indexer %q: %w", ix.Name, err)
	}

	var startTime time.Time
	if ix.Schedule.StartTime != "" {
		startTime, err = time.Parse(time.RFC3339, ix.Schedule.StartTime)
		if err != nil {
			return false, fmt.Errorf("indexer %q: parse startTime: %w", ix.Name, err)
		}
	}

	st, err := s.runner.Status(ix.Name)
	if err != nil {
		return false, fmt.Errorf("indexer %q: %w", ix.Name, err)
	}
	if st.Status == schema.IndexerStatusInProgress {
		return false, nil
	}

	next := startTime
	if st.LastResult != nil && st.LastResult.EndTime != "" {
		if endTime, err := time.Parse(time.RFC3339, st.LastResult.EndTime); err == nil {
			if candidate := endTime.Add(interval); candidate.After(next) {
				next = candidate
			}
		}
	}

	return !now.Before(next), nil
}

func (s *Scheduler) runOne(ctx context.Context, name string) {
	result, err := s.runner.Run(ctx, name)
	if err != nil {
		s.logger.Warn("scheduler: indexer run failed", slog.String("indexer", name), slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduler: indexer run complete",
		slog.String("indexer", name),
		slog.String("status", string(result.Status)),
		slog.Int("itemsProcessed", result.ItemsProcessed),
		slog.Int("itemsFailed", result.ItemsFailed))
}
