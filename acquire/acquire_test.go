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

package acquire

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/datania/aemet/db"
	"github.com/datania/aemet/metrics"
	"github.com/datania/aemet/opendata"
	"github.com/jonboulle/clockwork"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

// testResolver returns two records per day, fails windows starting on the
// days in fail and reports no data for the days in noData.
type testResolver struct {
	mu     sync.Mutex
	calls  []DateWindow
	fail   map[db.Date]bool
	noData map[db.Date]bool
	extra  []db.Record // appended to every response
}

func (r *testResolver) Resolve(ctx context.Context, start, end db.Date) (*opendata.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, DateWindow{Start: start, End: end})
	if r.fail[start] {
		return nil, &opendata.RetriesExhausted{
			Attempts: 5, Last: &opendata.RateLimitedError{URL: "test"}}
	}
	if r.noData[start] {
		return &opendata.Outcome{NoData: true, Estado: 404, Description: "no data"}, nil
	}
	var records []db.Record
	for d := start; !d.After(end); d = d.AddDays(1) {
		for _, station := range []string{"B", "A"} {
			records = append(records, db.Record{db.DateKey: d.String(), db.StationKey: station})
		}
	}
	records = append(records, r.extra...)
	return &opendata.Outcome{Records: records}, nil
}

func (r *testResolver) numCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestAcquirer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	start := db.NewDate(2020, 1, 1)
	end := db.NewDate(2020, 2, 10) // 3 windows: 15 + 15 + 11 days

	Convey("Acquirer", t, func() {
		tmpdir, err := os.MkdirTemp("", "test_acquire")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tmpdir)
		store := db.NewFileStore(tmpdir)
		r := &testResolver{}
		a := NewAcquirer(store, r)
		a.Interval = 0

		Convey("saves every day and issues no fetches on the second run", func() {
			m := metrics.New(nil)
			a.Metrics = m
			stats, err := a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, Stats{Windows: 3, Fetched: 3, DaysSaved: 41})
			So(r.numCalls(), ShouldEqual, 3)
			days, err := store.Days()
			So(err, ShouldBeNil)
			So(len(days), ShouldEqual, 41)
			So(promtest.ToFloat64(m.DaysWritten), ShouldEqual, 41)
			So(promtest.ToFloat64(m.Windows.WithLabelValues(metrics.WindowFetched)), ShouldEqual, 3)

			stats, err = a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, Stats{Windows: 3, Skipped: 3})
			So(r.numCalls(), ShouldEqual, 3)
			days2, err := store.Days()
			So(err, ShouldBeNil)
			So(days2, ShouldResemble, days)
		})

		Convey("fetches only windows with a missing day", func() {
			for d := start; !d.After(db.NewDate(2020, 1, 15)); d = d.AddDays(1) {
				So(store.Write(ctx, d, nil), ShouldBeNil)
			}
			So(store.Write(ctx, db.NewDate(2020, 1, 20), nil), ShouldBeNil)

			stats, err := a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, Stats{Windows: 3, Skipped: 1, Fetched: 2, DaysSaved: 25})
			So(r.calls, ShouldResemble, []DateWindow{
				{Start: db.NewDate(2020, 1, 16), End: db.NewDate(2020, 1, 30)},
				{Start: db.NewDate(2020, 1, 31), End: end},
			})
		})

		Convey("moves on after a failed window and retries it next time", func() {
			r.fail = map[db.Date]bool{db.NewDate(2020, 1, 16): true}
			stats, err := a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, Stats{Windows: 3, Fetched: 2, Failed: 1, DaysSaved: 26})

			r.fail = nil
			stats, err = a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, Stats{Windows: 3, Skipped: 2, Fetched: 1, DaysSaved: 15})
			So(r.numCalls(), ShouldEqual, 4)
		})

		Convey("writes nothing for windows without data", func() {
			r.noData = map[db.Date]bool{start: true}
			stats, err := a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats.NoData, ShouldEqual, 1)
			So(stats.DaysSaved, ShouldEqual, 26)
			ok, err := store.Exists(ctx, start)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			// An empty window may get data later, so it is asked again.
			stats, err = a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, Stats{Windows: 3, Skipped: 2, NoData: 1})
			So(r.numCalls(), ShouldEqual, 4)
			So(r.calls[3], ShouldResemble, DateWindow{Start: start, End: db.NewDate(2020, 1, 15)})
		})

		Convey("drops records dated outside their window", func() {
			r.extra = []db.Record{
				{db.DateKey: "2021-06-01", db.StationKey: "A"},
				{db.StationKey: "B"},
			}
			end := db.NewDate(2020, 1, 2)
			stats, err := a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, Stats{Windows: 1, Fetched: 1, DaysSaved: 2, Dropped: 2})
			days, err := store.Days()
			So(err, ShouldBeNil)
			So(days, ShouldResemble, []db.Date{start, end})
		})

		Convey("stops when the upstream keeps failing", func() {
			r.fail = map[db.Date]bool{}
			for _, w := range Windows(start, end, 1) {
				r.fail[w.Start] = true
			}
			a.MaxSpanDays = 1
			a.BreakerFailures = 2
			stats, err := a.Run(ctx, start, end)
			So(err, ShouldEqual, ErrUpstreamUnavailable)
			So(stats.Failed, ShouldEqual, 2)
			So(r.numCalls(), ShouldEqual, 2)
		})

		Convey("keeps going with the breaker disabled", func() {
			r.fail = map[db.Date]bool{}
			for _, w := range Windows(start, end, 15) {
				r.fail[w.Start] = true
			}
			a.BreakerFailures = 0
			stats, err := a.Run(ctx, start, end)
			So(err, ShouldBeNil)
			So(stats.Failed, ShouldEqual, 3)
		})

		Convey("pauses after fetched windows only", func() {
			fc := clockwork.NewFakeClock()
			a.Clock = fc
			a.Interval = 1500 * time.Millisecond
			for d := start; !d.After(db.NewDate(2020, 1, 15)); d = d.AddDays(1) {
				So(store.Write(ctx, d, nil), ShouldBeNil)
			}
			type result struct {
				stats Stats
				err   error
			}
			done := make(chan result, 1)
			t0 := fc.Now()
			go func() {
				stats, err := a.Run(ctx, start, end)
				done <- result{stats, err}
			}()
			tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			for i := 0; i < 2; i++ {
				So(fc.BlockUntilContext(tctx, 1), ShouldBeNil)
				fc.Advance(a.Interval)
			}
			res := <-done
			So(res.err, ShouldBeNil)
			So(res.stats.Fetched, ShouldEqual, 2)
			So(fc.Since(t0), ShouldEqual, 3*time.Second)
		})

		Convey("honors cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := a.Run(cctx, start, end)
			So(err, ShouldNotBeNil)
			So(r.numCalls(), ShouldEqual, 0)
		})

		Convey("does nothing for an empty range", func() {
			stats, err := a.Run(ctx, end, start)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, Stats{})
		})
	})
}
