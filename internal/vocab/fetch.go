package vocab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// gate tuning: a source that fails gateMaxFailures times in a row is skipped
// until gateCooldown has elapsed, so a dead upstream cannot slow every
// refresh fan-out. The first call after the cooldown acts as the probe.
const (
	gateMaxFailures = 3
	gateCooldown    = 30 * time.Minute
)

// Harvest is the raw yield of one source fetch. Free text (repo metadata,
// story titles) goes through the strict extraction path; structured tags
// carry their own popularity counts and are validated individually.
type Harvest struct {
	Texts []string
	Tags  []TagCount
}

// TagCount is a structured tag with the popularity count reported by its
// source.
type TagCount struct {
	Name  string
	Count int
}

// SourceFetcher produces candidate vocabulary material from one external
// source. Implementations must tolerate network failure, apply their own
// request timeouts, and rate-limit any sub-requests they issue.
type SourceFetcher interface {
	// Name identifies the source in logs and failure-gate bookkeeping.
	Name() string

	// Fetch retrieves the source's current material. It must respect ctx
	// cancellation and return an error rather than blocking indefinitely.
	Fetch(ctx context.Context) (Harvest, error)
}

// sourceGate tracks consecutive failures for one source and opens after too
// many, suppressing calls until the cooldown elapses.
type sourceGate struct {
	mu        sync.Mutex
	fails     int
	openUntil time.Time
}

// allow reports whether the source may be called right now.
func (g *sourceGate) allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.openUntil.IsZero() || !now.Before(g.openUntil)
}

// record updates the gate after a fetch attempt.
func (g *sourceGate) record(err error, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		g.fails = 0
		g.openUntil = time.Time{}
		return
	}
	g.fails++
	if g.fails >= gateMaxFailures {
		g.openUntil = now.Add(gateCooldown)
	}
}

// gateFor returns the failure gate for the named source, creating it on
// first use.
func (s *Store) gateFor(name string) *sourceGate {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	g, ok := s.gates[name]
	if !ok {
		g = &sourceGate{}
		s.gates[name] = g
	}
	return g
}

// Refresh fans out to all configured sources concurrently and folds their
// harvests into the vocabulary. Each source's failure is isolated: it is
// logged, counted against that source's gate, and joined into the returned
// error, but it neither cancels sibling fetches nor prevents the refresh
// from completing. The last-refresh timestamp is updated once, after the
// whole fan-out finishes, regardless of partial failure.
//
// Returns the number of admitted tokens and the joined per-source errors
// (nil when every source succeeded or was skipped by its gate).
func (s *Store) Refresh(ctx context.Context) (int, error) {
	if len(s.fetchers) == 0 {
		s.markRefreshed(time.Now())
		return 0, nil
	}

	var (
		mu    sync.Mutex
		added int
		errs  []error
	)

	g := new(errgroup.Group)
	for _, f := range s.fetchers {
		f := f
		g.Go(func() error {
			gate := s.gateFor(f.Name())
			if !gate.allow(time.Now()) {
				slog.Debug("vocabulary source skipped by failure gate", "source", f.Name())
				return nil
			}

			harvest, err := f.Fetch(ctx)
			gate.record(err, time.Now())
			if err != nil {
				slog.Warn("vocabulary source fetch failed", "source", f.Name(), "err", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("source %s: %w", f.Name(), err))
				mu.Unlock()
				return nil
			}

			n := s.fold(harvest)
			mu.Lock()
			added += n
			mu.Unlock()

			slog.Debug("vocabulary source fetched", "source", f.Name(), "admitted", n)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures are collected above

	s.markRefreshed(time.Now())
	slog.Info("vocabulary refreshed", "terms", s.Len(), "admitted", added, "sources", len(s.fetchers))
	return added, errors.Join(errs...)
}

// fold admits one harvest into the store and returns the number of tokens
// admitted.
func (s *Store) fold(h Harvest) int {
	n := 0
	for _, text := range h.Texts {
		n += s.ExtractTerms(text)
	}
	for _, tag := range h.Tags {
		if s.addTag(tag.Name, tag.Count) {
			n++
		}
	}
	return n
}
