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

// Package compact folds the daily checkpoints into a single normalized
// dataset sorted by date and station, and writes it as a Parquet file.
package compact

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/datania/aemet/db"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
)

// SchemaError is a record whose date cannot be parsed. Unlike bad numeric
// values, it stops the compaction.
type SchemaError struct {
	Checkpoint db.Date // the checkpoint holding the record
	Index      int     // of the record in the checkpoint
	Err        error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("record %d of checkpoint %s: %s", e.Index, e.Checkpoint, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Normalize converts a raw record into a Row. Numeric values that fail to
// parse are left nil, and their column names are returned. Only an invalid
// date is an error. Fields not in Row are ignored.
func Normalize(r db.Record) (Row, []string, error) {
	var row Row
	var failed []string
	day, err := r.Day()
	if err != nil {
		return row, nil, err
	}
	row.SetDay(day)
	row.Indicativo, _ = r.String(db.StationKey)

	for _, c := range texts {
		if s, ok := r.String(c.name); ok {
			s := s
			*c.field(&row) = &s
		}
	}
	if v, ok := r[AltitudKey]; ok && v != nil {
		if i, err := ParseInt32(v); err == nil {
			row.Altitud = &i
		} else {
			failed = append(failed, AltitudKey)
		}
	}
	for _, c := range measurements {
		v, ok := r[c.name]
		if !ok || v == nil {
			continue
		}
		if f, err := ParseFloat(v); err == nil {
			*c.field(&row) = &f
		} else {
			failed = append(failed, c.name)
		}
	}
	for _, c := range coordinates {
		v, ok := r[c.name]
		if !ok || v == nil {
			continue
		}
		s, _ := text(v)
		if f, err := ParseDMS(s); err == nil {
			*c.field(&row) = &f
		} else {
			failed = append(failed, c.name)
		}
	}
	return row, failed, nil
}

// Dataset is the compacted result.
type Dataset struct {
	Rows    []Row // sorted by date, then station
	Summary *Summary
}

// Compactor reads every checkpoint of a store into a Dataset.
type Compactor struct {
	Workers int // for normalizing checkpoints in parallel
	store   db.CheckpointStore
}

// NewCompactor creates a Compactor reading from the store.
func NewCompactor(store db.CheckpointStore) *Compactor {
	return &Compactor{Workers: 2 * runtime.NumCPU(), store: store}
}

// batch is a normalized checkpoint.
type batch struct {
	day    db.Date
	rows   []Row
	failed map[string]int
	err    error
}

func normalizeCheckpoint(c db.Checkpoint) batch {
	b := batch{day: c.Day, rows: make([]Row, 0, len(c.Records)), failed: map[string]int{}}
	for i, r := range c.Records {
		row, failed, err := Normalize(r)
		if err != nil {
			b.err = &SchemaError{Checkpoint: c.Day, Index: i, Err: err}
			return b
		}
		for _, col := range failed {
			b.failed[col]++
		}
		b.rows = append(b.rows, row)
	}
	return b
}

func readCheckpoints(ctx context.Context, store db.CheckpointStore) ([]db.Checkpoint, error) {
	it := store.ReadAll(ctx)
	defer it.Close()
	var res []db.Checkpoint
	for {
		var c db.Checkpoint
		ok, err := it.Next(&c)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read checkpoints")
		}
		if !ok {
			return res, nil
		}
		res = append(res, c)
	}
}

// Compact concatenates all the checkpoints, normalizes every record and sorts
// the rows by date, then station. Rows with the same date and station are all
// kept and counted in Summary.Duplicates. An unparsable date fails the whole
// compaction with *SchemaError.
func (c *Compactor) Compact(ctx context.Context) (*Dataset, error) {
	checkpoints, err := readCheckpoints(ctx, c.store)
	if err != nil {
		return nil, err
	}
	logging.Infof(ctx, "normalizing %d checkpoints", len(checkpoints))
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	pm := iterator.ParallelMap(ctx, workers, iterator.FromSlice(checkpoints), normalizeCheckpoint)
	batches := iterator.Reduce[batch, []batch](pm, nil, func(b batch, bs []batch) []batch {
		return append(bs, b)
	})
	sort.Slice(batches, func(i, j int) bool { return batches[i].day.Before(batches[j].day) })

	var rows []Row
	failed := map[string]int{}
	for _, b := range batches {
		if b.err != nil {
			return nil, b.err
		}
		rows = append(rows, b.rows...)
		for col, n := range b.failed {
			failed[col] += n
		}
	}
	// Checkpoints are already in day order, so this mostly orders stations.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Fecha != rows[j].Fecha {
			return rows[i].Fecha < rows[j].Fecha
		}
		return rows[i].Indicativo < rows[j].Indicativo
	})

	s := Summarize(rows)
	s.Checkpoints = len(checkpoints)
	for col, n := range failed {
		s.Columns[col].CastFailures = n
	}
	if s.Duplicates > 0 {
		logging.Warningf(ctx, "%d rows repeat a (date, station) pair", s.Duplicates)
	}
	logging.Infof(ctx, "%d records | %s | %d stations", s.Rows, s.Period(), s.Stations)
	return &Dataset{Rows: rows, Summary: s}, nil
}
