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

package compact

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/datania/aemet/db"
	"github.com/stockparfait/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnSummary describes the values of a numeric column.
type ColumnSummary struct {
	Count        int     `json:"count"`   // non-missing values
	Missing      int     `json:"missing"` // including cast failures
	CastFailures int     `json:"cast_failures"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"stddev"`
}

// Summary of a compacted dataset, written next to it.
type Summary struct {
	Rows        int                       `json:"rows"`
	Checkpoints int                       `json:"checkpoints"`
	Start       *db.Date                  `json:"start,omitempty"` // nil when empty
	End         *db.Date                  `json:"end,omitempty"`
	Stations    int                       `json:"stations"`
	Duplicates  int                       `json:"duplicates"` // rows repeating the previous (date, station)
	Columns     map[string]*ColumnSummary `json:"columns"`
}

// Period is the date range of the rows, or "no dates".
func (s *Summary) Period() string {
	if s.Start == nil || s.End == nil {
		return "no dates"
	}
	return fmt.Sprintf("%s to %s", *s.Start, *s.End)
}

func summarizeColumn(xs []float64, rows int) *ColumnSummary {
	cs := &ColumnSummary{Count: len(xs), Missing: rows - len(xs)}
	if len(xs) == 0 {
		return cs
	}
	cs.Min = floats.Min(xs)
	cs.Max = floats.Max(xs)
	if len(xs) == 1 {
		cs.Mean = xs[0]
		return cs
	}
	cs.Mean, cs.StdDev = stat.MeanStdDev(xs, nil)
	return cs
}

// Summarize the rows, which must be sorted by date and station.
func Summarize(rows []Row) *Summary {
	s := &Summary{Rows: len(rows), Columns: map[string]*ColumnSummary{}}
	if len(rows) > 0 {
		start, end := rows[0].Day(), rows[len(rows)-1].Day()
		s.Start, s.End = &start, &end
	}
	stations := map[string]struct{}{}
	for i := range rows {
		stations[rows[i].Indicativo] = struct{}{}
		if i > 0 && rows[i].Fecha == rows[i-1].Fecha && rows[i].Indicativo == rows[i-1].Indicativo {
			s.Duplicates++
		}
	}
	s.Stations = len(stations)

	var alt []float64
	for i := range rows {
		if rows[i].Altitud != nil {
			alt = append(alt, float64(*rows[i].Altitud))
		}
	}
	s.Columns[AltitudKey] = summarizeColumn(alt, len(rows))
	for _, cols := range [][]floatColumn{coordinates, measurements} {
		for _, c := range cols {
			var xs []float64
			for i := range rows {
				if p := *c.field(&rows[i]); p != nil {
					xs = append(xs, *p)
				}
			}
			s.Columns[c.name] = summarizeColumn(xs, len(rows))
		}
	}
	return s
}

// WriteSummary saves the summary as indented JSON.
func WriteSummary(fileName string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Annotate(err, "failed to encode summary")
	}
	if err := os.WriteFile(fileName, data, 0644); err != nil {
		return errors.Annotate(err, "failed to write '%s'", fileName)
	}
	return nil
}

// ReadSummary loads a summary saved by WriteSummary.
func ReadSummary(fileName string) (*Summary, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read '%s'", fileName)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Annotate(err, "failed to parse '%s'", fileName)
	}
	return &s, nil
}
