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
	"testing"

	"github.com/datania/aemet/db"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPlan(t *testing.T) {
	t.Parallel()

	Convey("Plan", t, func() {
		Convey("splits a range into full windows and a remainder", func() {
			ws := Windows(db.NewDate(2020, 1, 1), db.NewDate(2020, 2, 10), 15)
			So(ws, ShouldResemble, []DateWindow{
				{Start: db.NewDate(2020, 1, 1), End: db.NewDate(2020, 1, 15)},
				{Start: db.NewDate(2020, 1, 16), End: db.NewDate(2020, 1, 30)},
				{Start: db.NewDate(2020, 1, 31), End: db.NewDate(2020, 2, 10)},
			})
			So(ws[0].Days(), ShouldEqual, 15)
			So(ws[2].Days(), ShouldEqual, 11)
			So(ws[0].String(), ShouldEqual, "2020-01-01..2020-01-15")
		})

		Convey("covers every day exactly once", func() {
			ranges := []DateWindow{
				{Start: db.NewDate(2020, 1, 1), End: db.NewDate(2020, 1, 1)},
				{Start: db.NewDate(2019, 12, 20), End: db.NewDate(2020, 3, 1)},
				{Start: db.NewDate(1920, 1, 1), End: db.NewDate(1921, 6, 30)},
				{Start: db.NewDate(2024, 2, 20), End: db.NewDate(2024, 3, 5)},
			}
			for _, r := range ranges {
				for _, span := range []int{1, 2, 7, 15, 31, 1000} {
					expected := r.Start
					for _, w := range Windows(r.Start, r.End, span) {
						So(w.Start, ShouldResemble, expected)
						So(w.End.Before(w.Start), ShouldBeFalse)
						So(w.Days(), ShouldBeLessThanOrEqualTo, span)
						So(w.End.After(r.End), ShouldBeFalse)
						expected = w.End.AddDays(1)
					}
					So(expected, ShouldResemble, r.End.AddDays(1))
				}
			}
		})

		Convey("is restartable", func() {
			start, end := db.NewDate(2000, 1, 1), db.NewDate(2000, 12, 31)
			So(Windows(start, end, 15), ShouldResemble, Windows(start, end, 15))
		})

		Convey("yields nothing for an inverted range", func() {
			it := Plan(db.NewDate(2020, 1, 2), db.NewDate(2020, 1, 1), 15)
			_, ok := it.Next()
			So(ok, ShouldBeFalse)
		})

		Convey("clamps the span to one day", func() {
			ws := Windows(db.NewDate(2020, 1, 1), db.NewDate(2020, 1, 3), 0)
			So(len(ws), ShouldEqual, 3)
			So(ws[1], ShouldResemble, DateWindow{
				Start: db.NewDate(2020, 1, 2), End: db.NewDate(2020, 1, 2)})
		})

		Convey("stays exhausted", func() {
			it := Plan(db.NewDate(2020, 1, 1), db.NewDate(2020, 1, 1), 15)
			_, ok := it.Next()
			So(ok, ShouldBeTrue)
			_, ok = it.Next()
			So(ok, ShouldBeFalse)
			_, ok = it.Next()
			So(ok, ShouldBeFalse)
		})
	})
}
