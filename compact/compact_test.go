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
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datania/aemet/db"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	Convey("ParseDMS", t, func() {
		lat, err := ParseDMS("415300N")
		So(err, ShouldBeNil)
		So(testutil.Round(lat, 6), ShouldEqual, 41.8833)
		lon, err := ParseDMS("035500W")
		So(err, ShouldBeNil)
		So(testutil.Round(lon, 6), ShouldEqual, -3.91667)
		lon3, err := ParseDMS("0035500W")
		So(err, ShouldBeNil)
		So(lon3, ShouldEqual, lon)
		south, err := ParseDMS("283030S")
		So(err, ShouldBeNil)
		So(south, ShouldEqual, -(28 + 30.0/60 + 30.0/3600))
		east, err := ParseDMS("012345E")
		So(err, ShouldBeNil)
		So(east, ShouldBeGreaterThan, 0)

		for _, bad := range []string{"", "4153N", "415300X", "416000N", "415360N", "41A300N", "123456789N"} {
			_, err := ParseDMS(bad)
			So(err, ShouldNotBeNil)
		}
	})

	Convey("ParseFloat", t, func() {
		f, err := ParseFloat("12,3")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, 12.3)
		f, err = ParseFloat(json.Number("-0.5"))
		So(err, ShouldBeNil)
		So(f, ShouldEqual, -0.5)
		for _, bad := range []any{"Ip", "Varias", "", true, "NaN", "Inf", "-inf", math.NaN(), math.Inf(1)} {
			_, err := ParseFloat(bad)
			So(err, ShouldNotBeNil)
		}
	})

	Convey("ParseInt32", t, func() {
		i, err := ParseInt32("640")
		So(err, ShouldBeNil)
		So(i, ShouldEqual, 640)
		i, err = ParseInt32(json.Number("-3"))
		So(err, ShouldBeNil)
		So(i, ShouldEqual, -3)
		_, err = ParseInt32("12,5")
		So(err, ShouldNotBeNil)
		_, err = ParseInt32("99999999999")
		So(err, ShouldNotBeNil)
	})

	Convey("Normalize", t, func() {
		Convey("casts known fields and ignores the rest", func() {
			row, failed, err := Normalize(db.Record{
				"fecha":      "2020-01-02",
				"indicativo": "3469A",
				"nombre":     "CÁCERES",
				"altitud":    "405",
				"tmed":       "12,4",
				"prec":       "Ip",
				"sol":        "",
				"horatmin":   "06:40",
				"latitud":    "392819N",
				"longitud":   "062025W",
				"unknown":    "x",
			})
			So(err, ShouldBeNil)
			So(failed, ShouldResemble, []string{"prec", "sol"})
			So(row.Day(), ShouldResemble, db.NewDate(2020, 1, 2))
			So(row.Indicativo, ShouldEqual, "3469A")
			So(*row.Nombre, ShouldEqual, "CÁCERES")
			So(*row.Altitud, ShouldEqual, 405)
			So(*row.Tmed, ShouldEqual, 12.4)
			So(row.Prec, ShouldBeNil)
			So(row.Sol, ShouldBeNil)
			So(row.Tmax, ShouldBeNil)
			So(*row.HoraTmin, ShouldEqual, "06:40")
			So(testutil.Round(*row.Latitud, 5), ShouldEqual, 39.472)
			So(*row.Longitud, ShouldBeLessThan, 0)
		})

		Convey("counts a bad coordinate as missing", func() {
			row, failed, err := Normalize(db.Record{"fecha": "2020-01-02", "latitud": "??"})
			So(err, ShouldBeNil)
			So(failed, ShouldResemble, []string{"latitud"})
			So(row.Latitud, ShouldBeNil)
		})

		Convey("counts a non-finite measurement as missing", func() {
			row, failed, err := Normalize(db.Record{"fecha": "2020-01-02", "tmed": "NaN"})
			So(err, ShouldBeNil)
			So(failed, ShouldResemble, []string{"tmed"})
			So(row.Tmed, ShouldBeNil)
		})

		Convey("rejects a bad date", func() {
			_, _, err := Normalize(db.Record{"fecha": "02/01/2020"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCompact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	Convey("Compactor", t, func() {
		tmpdir, err := os.MkdirTemp("", "test_compact")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tmpdir)
		store := db.NewFileStore(filepath.Join(tmpdir, "raw"))
		day1 := db.NewDate(2020, 1, 1)
		day2 := db.NewDate(2020, 1, 2)

		So(store.Write(ctx, day2, []db.Record{
			{"fecha": "2020-01-02", "indicativo": "B", "tmed": "3,0", "altitud": "100"},
			{"fecha": "2020-01-02", "indicativo": "A", "tmed": "1,0", "altitud": "300"},
		}), ShouldBeNil)
		So(store.Write(ctx, day1, []db.Record{
			{"fecha": "2020-01-01", "indicativo": "B", "tmed": "Ip"},
			{"fecha": "2020-01-01", "indicativo": "A", "tmed": "2,0"},
		}), ShouldBeNil)

		Convey("sorts by date, then station", func() {
			ds, err := NewCompactor(store).Compact(ctx)
			So(err, ShouldBeNil)
			type key struct {
				day     db.Date
				station string
			}
			var keys []key
			for i := range ds.Rows {
				keys = append(keys, key{ds.Rows[i].Day(), ds.Rows[i].Indicativo})
			}
			So(keys, ShouldResemble, []key{
				{day1, "A"}, {day1, "B"}, {day2, "A"}, {day2, "B"},
			})

			s := ds.Summary
			So(s.Rows, ShouldEqual, 4)
			So(s.Checkpoints, ShouldEqual, 2)
			So(*s.Start, ShouldResemble, day1)
			So(*s.End, ShouldResemble, day2)
			So(s.Stations, ShouldEqual, 2)
			So(s.Duplicates, ShouldEqual, 0)
			So(*s.Columns["tmed"], ShouldResemble, ColumnSummary{
				Count: 3, Missing: 1, CastFailures: 1,
				Min: 1, Max: 3, Mean: 2, StdDev: 1,
			})
			So(s.Columns[AltitudKey].Count, ShouldEqual, 2)
			So(s.Columns[AltitudKey].Mean, ShouldEqual, 200)
			So(s.Columns["prec"].Missing, ShouldEqual, 4)

			var buf bytes.Buffer
			So(WriteReport(&buf, s), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			So(lines[0], ShouldEqual,
				"4 rows from 2 checkpoints | 2020-01-01 to 2020-01-02 | 2 stations | 0 duplicates")
			So(len(lines), ShouldEqual, 3+len(s.Columns))
			So(lines[1], ShouldStartWith, "  column | count | missing | cast failures")
			So(lines[len(lines)-1], ShouldEqual,
				"velmedia |     0 |       4 |             0 |   0 |   0 |    0 |      0")
		})

		Convey("keeps and counts duplicates", func() {
			So(store.Write(ctx, db.NewDate(2020, 1, 3), []db.Record{
				{"fecha": "2020-01-03", "indicativo": "A", "tmed": "1"},
				{"fecha": "2020-01-03", "indicativo": "A", "tmed": "2"},
			}), ShouldBeNil)
			ds, err := NewCompactor(store).Compact(ctx)
			So(err, ShouldBeNil)
			So(len(ds.Rows), ShouldEqual, 6)
			So(ds.Summary.Duplicates, ShouldEqual, 1)
			So(*ds.Rows[4].Tmed, ShouldEqual, 1)
			So(*ds.Rows[5].Tmed, ShouldEqual, 2)
		})

		Convey("stops at an unparsable date", func() {
			So(store.Write(ctx, db.NewDate(2020, 1, 3), []db.Record{
				{"fecha": "2020-01-03", "indicativo": "A"},
				{"fecha": "3 Jan 2020", "indicativo": "B"},
			}), ShouldBeNil)
			_, err := NewCompactor(store).Compact(ctx)
			sErr, ok := err.(*SchemaError)
			So(ok, ShouldBeTrue)
			So(sErr.Checkpoint, ShouldResemble, db.NewDate(2020, 1, 3))
			So(sErr.Index, ShouldEqual, 1)
		})

		Convey("compacts an empty store", func() {
			ds, err := NewCompactor(db.NewFileStore(filepath.Join(tmpdir, "empty"))).Compact(ctx)
			So(err, ShouldBeNil)
			So(len(ds.Rows), ShouldEqual, 0)
			So(ds.Summary.Rows, ShouldEqual, 0)
			So(ds.Summary.Start, ShouldBeNil)
			So(ds.Summary.Period(), ShouldEqual, "no dates")

			fileName := filepath.Join(tmpdir, "empty"+SummarySuffix)
			So(WriteSummary(fileName, ds.Summary), ShouldBeNil)
			js, err := os.ReadFile(fileName)
			So(err, ShouldBeNil)
			So(string(js), ShouldNotContainSubstring, "start")
			s, err := ReadSummary(fileName)
			So(err, ShouldBeNil)
			So(s, ShouldResemble, ds.Summary)
		})

		Convey("writes Parquet with ZSTD and a summary", func() {
			ds, err := NewCompactor(store).Compact(ctx)
			So(err, ShouldBeNil)
			fileName := filepath.Join(tmpdir, "aemet.parquet")
			So(ds.Write(fileName), ShouldBeNil)

			rows, err := ReadParquet(fileName)
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, ds.Rows)

			codecs, err := Codecs(fileName)
			So(err, ShouldBeNil)
			So(len(codecs), ShouldBeGreaterThan, 0)
			for _, c := range codecs {
				So(c, ShouldEqual, "ZSTD")
			}

			s, err := ReadSummary(fileName + SummarySuffix)
			So(err, ShouldBeNil)
			So(s, ShouldResemble, ds.Summary)

			_, err = os.Stat(fileName + ".tmp")
			So(os.IsNotExist(err), ShouldBeTrue)
		})
	})
}
