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
	"sort"

	"github.com/datania/aemet/db"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Split groups the records of a batch by their date, keeping the original
// order within each day. Records without a parsable date are dropped, and
// their number is returned.
func Split(records []db.Record) (map[db.Date][]db.Record, int) {
	groups := make(map[db.Date][]db.Record)
	dropped := 0
	for _, r := range records {
		day, err := r.Day()
		if err != nil {
			dropped++
			continue
		}
		groups[day] = append(groups[day], r)
	}
	return groups, dropped
}

// Clip removes the days outside the window from groups and returns the number
// of records removed. A stray day must not be saved from a window that doesn't
// cover it, or its own window would later be skipped with partial data.
func Clip(groups map[db.Date][]db.Record, w DateWindow) int {
	removed := 0
	for day, records := range groups {
		if !day.InRange(w.Start, w.End) {
			removed += len(records)
			delete(groups, day)
		}
	}
	return removed
}

// SortedDays returns the days of the groups in ascending order.
func SortedDays(groups map[db.Date][]db.Record) []db.Date {
	days := make([]db.Date, 0, len(groups))
	for d := range groups {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Save writes a checkpoint for every day in groups that doesn't have one yet,
// in ascending day order, and returns the number of new checkpoints. Days
// already in the store are left untouched.
func Save(ctx context.Context, store db.CheckpointStore, groups map[db.Date][]db.Record) (int, error) {
	saved := 0
	for _, day := range SortedDays(groups) {
		exists, err := store.Exists(ctx, day)
		if err != nil {
			return saved, errors.Annotate(err, "failed to check %s", day)
		}
		if exists {
			logging.Debugf(ctx, "%s already saved", day)
			continue
		}
		err = store.Write(ctx, day, groups[day])
		if err == db.ErrExists {
			continue
		}
		if err != nil {
			return saved, errors.Annotate(err, "failed to save %s", day)
		}
		saved++
	}
	return saved, nil
}
