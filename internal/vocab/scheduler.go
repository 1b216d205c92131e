package vocab

import (
	"context"
	"log/slog"
	"time"

	"github.com/jhalloran/voxlex/internal/observe"
)

// Scheduler defaults: wake frequently, refresh rarely. The short tick keeps
// the elapsed-time check cheap and responsive without tying the refresh
// cadence to the tick itself.
const (
	DefaultRefreshInterval = time.Hour
	DefaultSchedulerTick   = 5 * time.Minute
)

// Scheduler drives periodic vocabulary refreshes. It is owned by the process
// lifecycle and runs independently of any session: cancelling a session never
// cancels the scheduler, and a refresh triggered by a session command keeps
// running after that session disconnects.
type Scheduler struct {
	store    *Store
	tick     time.Duration
	interval time.Duration
}

// NewScheduler creates a scheduler that wakes every tick and triggers
// [Store.Refresh] when at least interval has elapsed since the last refresh.
// Non-positive values fall back to the defaults.
func NewScheduler(store *Store, tick, interval time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultSchedulerTick
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{store: store, tick: tick, interval: interval}
}

// Run blocks until ctx is cancelled, refreshing the vocabulary whenever the
// configured interval has elapsed. The store starts with a zero last-refresh
// time, so the first tick always refreshes. Refresh errors are partial by
// construction and only logged; the scheduler never stops on them.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Since(s.store.LastRefresh()) < s.interval {
				continue
			}
			s.refresh(ctx)
		}
	}
}

// refresh runs one refresh pass, records its outcome, and logs the trending
// snapshot.
func (s *Scheduler) refresh(ctx context.Context) {
	slog.Info("updating technical vocabulary")
	start := time.Now()
	added, err := s.store.Refresh(ctx)
	status := "ok"
	if err != nil {
		status = "partial"
		slog.Warn("vocabulary refresh completed with source failures", "err", err)
	}

	m := observe.DefaultMetrics()
	m.RecordRefresh(ctx, status, time.Since(start).Seconds())
	m.RecordTermsLearned(ctx, "refresh", int64(added))

	stats := s.store.Stats()
	if len(stats.Trending) > 0 {
		top := make([]string, 0, len(stats.Trending))
		for _, tc := range stats.Trending {
			top = append(top, tc.Term)
		}
		slog.Info("trending terms", "terms", top)
	}
}

// ForceRefresh starts a refresh in a detached goroutine with its own context,
// decoupled from the caller's lifetime. Used by the force_vocabulary_update
// command: the client's disconnect must not abort an in-flight refresh.
func (s *Scheduler) ForceRefresh() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.refresh(ctx)
	}()
}
