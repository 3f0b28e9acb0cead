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
	"fmt"

	"github.com/datania/aemet/db"
	"github.com/stockparfait/iterator"
)

// DateWindow is an inclusive range of days submitted as one API query.
type DateWindow struct {
	Start db.Date
	End   db.Date
}

// Days is the number of calendar days in the window.
func (w DateWindow) Days() int {
	return w.Start.DaysUntil(w.End) + 1
}

func (w DateWindow) String() string {
	return fmt.Sprintf("%s..%s", w.Start, w.End)
}

// WindowIterator walks a date range in windows of at most maxSpan days.
type WindowIterator struct {
	next    db.Date
	end     db.Date
	maxSpan int
	done    bool
}

var _ iterator.Iterator[DateWindow] = &WindowIterator{}

// Plan partitions the inclusive range [start, end] into consecutive windows of
// at most maxSpan days, the last one possibly shorter. The sequence depends
// only on the arguments, so planning the same range again yields the same
// windows. maxSpan < 1 is treated as 1, and end before start yields nothing.
func Plan(start, end db.Date, maxSpan int) *WindowIterator {
	if maxSpan < 1 {
		maxSpan = 1
	}
	return &WindowIterator{
		next:    start,
		end:     end,
		maxSpan: maxSpan,
		done:    end.Before(start),
	}
}

// Next implements iterator.Iterator.
func (it *WindowIterator) Next() (DateWindow, bool) {
	if it.done {
		return DateWindow{}, false
	}
	w := DateWindow{Start: it.next, End: it.next.AddDays(it.maxSpan - 1)}
	if w.End.After(it.end) {
		w.End = it.end
	}
	if w.End == it.end {
		it.done = true
	} else {
		it.next = w.End.AddDays(1)
	}
	return w, true
}

// Windows collects all the planned windows.
func Windows(start, end db.Date, maxSpan int) []DateWindow {
	return iterator.Reduce[DateWindow, []DateWindow](Plan(start, end, maxSpan), nil,
		func(w DateWindow, ws []DateWindow) []DateWindow { return append(ws, w) })
}
