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
	"github.com/datania/aemet/db"
)

// epoch is day 0 of the Parquet DATE type.
var epoch = db.NewDate(1970, 1, 1)

// Row is one normalized daily record of a station. Missing values are nil.
type Row struct {
	Fecha       int32    `parquet:"name=fecha, type=INT32, convertedtype=DATE"`
	Indicativo  string   `parquet:"name=indicativo, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Nombre      *string  `parquet:"name=nombre, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Provincia   *string  `parquet:"name=provincia, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Altitud     *int32   `parquet:"name=altitud, type=INT32, repetitiontype=OPTIONAL"`
	Latitud     *float64 `parquet:"name=latitud, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitud    *float64 `parquet:"name=longitud, type=DOUBLE, repetitiontype=OPTIONAL"`
	Tmed        *float64 `parquet:"name=tmed, type=DOUBLE, repetitiontype=OPTIONAL"`
	Prec        *float64 `parquet:"name=prec, type=DOUBLE, repetitiontype=OPTIONAL"`
	Tmin        *float64 `parquet:"name=tmin, type=DOUBLE, repetitiontype=OPTIONAL"`
	HoraTmin    *string  `parquet:"name=horatmin, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Tmax        *float64 `parquet:"name=tmax, type=DOUBLE, repetitiontype=OPTIONAL"`
	HoraTmax    *string  `parquet:"name=horatmax, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Dir         *float64 `parquet:"name=dir, type=DOUBLE, repetitiontype=OPTIONAL"`
	Velmedia    *float64 `parquet:"name=velmedia, type=DOUBLE, repetitiontype=OPTIONAL"`
	Racha       *float64 `parquet:"name=racha, type=DOUBLE, repetitiontype=OPTIONAL"`
	HoraRacha   *string  `parquet:"name=horaracha, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Sol         *float64 `parquet:"name=sol, type=DOUBLE, repetitiontype=OPTIONAL"`
	PresMax     *float64 `parquet:"name=presMax, type=DOUBLE, repetitiontype=OPTIONAL"`
	HoraPresMax *string  `parquet:"name=horaPresMax, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	PresMin     *float64 `parquet:"name=presMin, type=DOUBLE, repetitiontype=OPTIONAL"`
	HoraPresMin *string  `parquet:"name=horaPresMin, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	HrMedia     *float64 `parquet:"name=hrMedia, type=DOUBLE, repetitiontype=OPTIONAL"`
	HrMax       *float64 `parquet:"name=hrMax, type=DOUBLE, repetitiontype=OPTIONAL"`
	HoraHrMax   *string  `parquet:"name=horaHrMax, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	HrMin       *float64 `parquet:"name=hrMin, type=DOUBLE, repetitiontype=OPTIONAL"`
	HoraHrMin   *string  `parquet:"name=horaHrMin, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// Day of the row.
func (r *Row) Day() db.Date {
	return epoch.AddDays(int(r.Fecha))
}

// SetDay sets the row's date.
func (r *Row) SetDay(d db.Date) {
	r.Fecha = int32(epoch.DaysUntil(d))
}

type floatColumn struct {
	name  string
	field func(r *Row) **float64
}

type stringColumn struct {
	name  string
	field func(r *Row) **string
}

// measurements are the daily values cast to float.
var measurements = []floatColumn{
	{"tmed", func(r *Row) **float64 { return &r.Tmed }},
	{"prec", func(r *Row) **float64 { return &r.Prec }},
	{"tmin", func(r *Row) **float64 { return &r.Tmin }},
	{"tmax", func(r *Row) **float64 { return &r.Tmax }},
	{"dir", func(r *Row) **float64 { return &r.Dir }},
	{"velmedia", func(r *Row) **float64 { return &r.Velmedia }},
	{"racha", func(r *Row) **float64 { return &r.Racha }},
	{"sol", func(r *Row) **float64 { return &r.Sol }},
	{"presMax", func(r *Row) **float64 { return &r.PresMax }},
	{"presMin", func(r *Row) **float64 { return &r.PresMin }},
	{"hrMedia", func(r *Row) **float64 { return &r.HrMedia }},
	{"hrMax", func(r *Row) **float64 { return &r.HrMax }},
	{"hrMin", func(r *Row) **float64 { return &r.HrMin }},
}

// coordinates are DMS strings converted to decimal degrees.
var coordinates = []floatColumn{
	{"latitud", func(r *Row) **float64 { return &r.Latitud }},
	{"longitud", func(r *Row) **float64 { return &r.Longitud }},
}

var texts = []stringColumn{
	{"nombre", func(r *Row) **string { return &r.Nombre }},
	{"provincia", func(r *Row) **string { return &r.Provincia }},
	{"horatmin", func(r *Row) **string { return &r.HoraTmin }},
	{"horatmax", func(r *Row) **string { return &r.HoraTmax }},
	{"horaracha", func(r *Row) **string { return &r.HoraRacha }},
	{"horaPresMax", func(r *Row) **string { return &r.HoraPresMax }},
	{"horaPresMin", func(r *Row) **string { return &r.HoraPresMin }},
	{"horaHrMax", func(r *Row) **string { return &r.HoraHrMax }},
	{"horaHrMin", func(r *Row) **string { return &r.HoraHrMin }},
}

// AltitudKey is the only integer column.
const AltitudKey = "altitud"
