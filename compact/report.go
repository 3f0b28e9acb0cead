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
	"fmt"
	"io"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
)

var reportHeader = []string{
	"column", "count", "missing", "cast failures", "min", "max", "mean", "stddev"}

// reportRows renders the column statistics, one column per line, sorted by
// column name.
func reportRows(s *Summary) [][]string {
	names := make([]string, 0, len(s.Columns))
	for name := range s.Columns {
		names = append(names, name)
	}
	slices.Sort(names)
	rows := [][]string{reportHeader}
	for _, name := range names {
		c := s.Columns[name]
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d", c.Count),
			fmt.Sprintf("%d", c.Missing),
			fmt.Sprintf("%d", c.CastFailures),
			fmt.Sprintf("%.4g", c.Min),
			fmt.Sprintf("%.4g", c.Max),
			fmt.Sprintf("%.4g", c.Mean),
			fmt.Sprintf("%.4g", c.StdDev),
		})
	}
	return rows
}

// WriteReport prints the summary as a right-aligned text table.
func WriteReport(w io.Writer, s *Summary) error {
	_, err := fmt.Fprintf(w, "%d rows from %d checkpoints | %s | %d stations | %d duplicates\n",
		s.Rows, s.Checkpoints, s.Period(), s.Stations, s.Duplicates)
	if err != nil {
		return errors.Annotate(err, "failed to write report")
	}
	rows := reportRows(s)
	widths := make([]int, len(reportHeader))
	for _, row := range rows {
		for i, cell := range row {
			if widths[i] < len(cell) {
				widths[i] = len(cell)
			}
		}
	}
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprintf("%[2]*[1]s", cell, widths[j])
		}
		if _, err := fmt.Fprintf(w, "%s\n", strings.Join(cells, " | ")); err != nil {
			return errors.Annotate(err, "failed to write report")
		}
		if i == 0 {
			dashes := make([]string, len(widths))
			for j, n := range widths {
				dashes[j] = strings.Repeat("-", n)
			}
			if _, err := fmt.Fprintf(w, "%s\n", strings.Join(dashes, " | ")); err != nil {
				return errors.Annotate(err, "failed to write report")
			}
		}
	}
	return nil
}
