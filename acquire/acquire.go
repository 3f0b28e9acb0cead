// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package acquire downloads AEMET daily values for a long date range, one
// API-sized window at a time, and checkpoints every day in a store.
//
// The store is the only record of progress: a window whose days are all
// present is skipped without a network call, so an interrupted run is resumed
// by simply running it again.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/datania/aemet/db"
	"github.com/datania/aemet/metrics"
	"github.com/datania/aemet/opendata"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Defaults of the Acquirer.
const (
	DefaultInterval        = 1500 * time.Millisecond
	DefaultBreakerFailures = 10
	DefaultBreakerCooldown = time.Minute
)

// ErrUpstreamUnavailable stops the run after too many consecutive failed
// windows. It is returned unannotated.
var ErrUpstreamUnavailable = errors.Reason("too many consecutive failures, upstream unavailable")

// Resolver downloads the records of an inclusive date range.
// *opendata.Client implements it.
type Resolver interface {
	Resolve(ctx context.Context, start, end db.Date) (*opendata.Outcome, error)
}

var _ Resolver = &opendata.Client{}

// Stats of a single run.
type Stats struct {
	Windows   int // windows planned and visited
	Skipped   int // fully checkpointed, not fetched
	Fetched   int // fetched with records
	NoData    int // acknowledged by the API as empty
	Failed    int // failed after the fetcher's retries
	DaysSaved int // new checkpoints
	Dropped   int // records without a valid date or outside their window
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"%d windows: %d skipped, %d fetched, %d no data, %d failed; %d days saved, %d records dropped",
		s.Windows, s.Skipped, s.Fetched, s.NoData, s.Failed, s.DaysSaved, s.Dropped)
}

// Acquirer is the sequential acquisition loop. Exported fields may be changed
// after NewAcquirer and before Run.
type Acquirer struct {
	Clock clockwork.Clock
	// Interval is the pause after every window that issued a request.
	// Non-positive means no pause.
	Interval    time.Duration
	MaxSpanDays int
	// BreakerFailures is the number of consecutive failed windows that stops
	// the run. Zero disables the breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
	Metrics         *metrics.Metrics

	store    db.CheckpointStore
	resolver Resolver
}

// NewAcquirer creates an Acquirer with default settings.
func NewAcquirer(store db.CheckpointStore, resolver Resolver) *Acquirer {
	return &Acquirer{
		Clock:           clockwork.NewRealClock(),
		Interval:        DefaultInterval,
		MaxSpanDays:     opendata.MaxSpanDays,
		BreakerFailures: DefaultBreakerFailures,
		BreakerCooldown: DefaultBreakerCooldown,
		store:           store,
		resolver:        resolver,
	}
}

func (a *Acquirer) breaker() *gobreaker.CircuitBreaker {
	if a.BreakerFailures <= 0 {
		return nil
	}
	n := uint32(a.BreakerFailures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aemet",
		MaxRequests: 1,
		Timeout:     a.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= n
		},
	})
}

func (a *Acquirer) resolve(ctx context.Context, cb *gobreaker.CircuitBreaker, w DateWindow) (*opendata.Outcome, error) {
	if cb == nil {
		return a.resolver.Resolve(ctx, w.Start, w.End)
	}
	res, err := cb.Execute(func() (interface{}, error) {
		return a.resolver.Resolve(ctx, w.Start, w.End)
	})
	if err != nil {
		return nil, err
	}
	return res.(*opendata.Outcome), nil
}

func (a *Acquirer) wait(ctx context.Context) error {
	if a.Interval <= 0 {
		return nil
	}
	clock := a.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(a.Interval):
		return nil
	}
}

// Run acquires every day in the inclusive range [start, end] that the store
// doesn't have yet. A window that fails after the fetcher's retries is logged
// and counted, and the loop moves on; it will be retried by the next run.
// Store failures and cancellation stop the run, as does ErrUpstreamUnavailable
// when the breaker opens. Checkpoints written so far remain valid in all
// cases.
func (a *Acquirer) Run(ctx context.Context, start, end db.Date) (Stats, error) {
	var stats Stats
	cb := a.breaker()
	it := Plan(start, end, a.MaxSpanDays)
	for w, ok := it.Next(); ok; w, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return stats, errors.Annotate(err, "acquisition interrupted before %s", w)
		}
		stats.Windows++
		done, err := db.AllExist(ctx, a.store, w.Start, w.End)
		if err != nil {
			return stats, errors.Annotate(err, "failed to check window %s", w)
		}
		if done {
			logging.Debugf(ctx, "skipping %s: already saved", w)
			stats.Skipped++
			a.Metrics.Window(metrics.WindowSkipped)
			continue
		}

		logging.Infof(ctx, "fetching %s", w)
		outcome, err := a.resolve(ctx, cb, w)
		if ctx.Err() != nil {
			return stats, errors.Annotate(ctx.Err(), "acquisition interrupted at %s", w)
		}
		switch {
		case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
			logging.Errorf(ctx, "stopping at %s: %s", w, err.Error())
			return stats, ErrUpstreamUnavailable
		case err != nil:
			logging.Warningf(ctx, "failed to fetch %s: %s", w, err.Error())
			stats.Failed++
			a.Metrics.Window(metrics.WindowFailed)
			if cb != nil && cb.State() == gobreaker.StateOpen {
				logging.Errorf(ctx, "stopping at %s after %d consecutive failures",
					w, a.BreakerFailures)
				return stats, ErrUpstreamUnavailable
			}
		case outcome.NoData:
			logging.Infof(ctx, "no data for %s: %s", w, outcome.Description)
			stats.NoData++
			a.Metrics.Window(metrics.WindowNoData)
		default:
			groups, dropped := Split(outcome.Records)
			if dropped > 0 {
				logging.Warningf(ctx, "%s: dropped %d records without a valid '%s'",
					w, dropped, db.DateKey)
			}
			if stray := Clip(groups, w); stray > 0 {
				logging.Warningf(ctx, "%s: dropped %d records dated outside the window", w, stray)
				dropped += stray
			}
			saved, err := Save(ctx, a.store, groups)
			stats.DaysSaved += saved
			stats.Dropped += dropped
			a.Metrics.Saved(saved, dropped)
			if err != nil {
				return stats, errors.Annotate(err, "failed to save window %s", w)
			}
			logging.Infof(ctx, "saved %d days from %d records for %s",
				saved, len(outcome.Records), w)
			stats.Fetched++
			a.Metrics.Window(metrics.WindowFetched)
		}
		if err := a.wait(ctx); err != nil {
			return stats, errors.Annotate(err, "acquisition interrupted after %s", w)
		}
	}
	logging.Infof(ctx, "done: %s", stats)
	return stats, nil
}
