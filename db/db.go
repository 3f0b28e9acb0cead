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

// Package db implements the durable checkpoint storage of the AEMET daily
// climatology download.
//
// A checkpoint is the list of raw upstream records for one calendar day. The
// presence of a checkpoint is the only signal that the day is done: stores
// never overwrite an existing checkpoint and never inspect its content.
package db

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/stockparfait/errors"
)

// Well-known fields of an AEMET daily record.
const (
	DateKey    = "fecha"
	StationKey = "indicativo"
)

// ErrExists is returned by CheckpointStore.Write when the day already has a
// checkpoint. It is never annotated, so a plain comparison works.
var ErrExists = errors.Reason("checkpoint already exists")

// Record is a single raw upstream record. Numbers are kept as json.Number so
// that the original representation survives a write / read cycle.
type Record map[string]any

// String value of the field, and whether it is present as a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

// Day parses the record's date key.
func (r Record) Day() (Date, error) {
	s, ok := r.String(DateKey)
	if !ok {
		return Date{}, errors.Reason("record has no '%s' field", DateKey)
	}
	return NewDateFromString(s)
}

// DecodeRecords parses a JSON array of records.
func DecodeRecords(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, errors.Annotate(err, "failed to decode records")
	}
	return records, nil
}

// EncodeRecords is the inverse of DecodeRecords. Non-ASCII text is kept as
// is, rather than escaped.
func EncodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, errors.Annotate(err, "failed to encode records")
	}
	return buf.Bytes(), nil
}

// Checkpoint is the durable record of one completed day.
type Checkpoint struct {
	Day     Date
	Records []Record
}

// CheckpointIterator streams checkpoints in ascending day order.
type CheckpointIterator interface {
	// Next loads the next checkpoint into c. If there are no more checkpoints,
	// the first value is false. An error may accompany either value.
	Next(c *Checkpoint) (bool, error)
	// Close releases the resources held by the iterator.
	Close() error
}

// CheckpointStore is the sole arbiter of which days are done.
type CheckpointStore interface {
	// Exists checks whether the day has a checkpoint.
	Exists(ctx context.Context, day Date) (bool, error)
	// Write creates the day's checkpoint, or returns ErrExists if it already
	// exists. A checkpoint is either fully written or not at all.
	Write(ctx context.Context, day Date, records []Record) error
	// ReadAll iterates over every checkpoint in ascending day order.
	ReadAll(ctx context.Context) CheckpointIterator
}

// AllExist checks whether every day in the inclusive range has a checkpoint.
// It stops at the first missing day.
func AllExist(ctx context.Context, s CheckpointStore, start, end Date) (bool, error) {
	for d := start; !d.After(end); d = d.AddDays(1) {
		ok, err := s.Exists(ctx, d)
		if err != nil {
			return false, errors.Annotate(err, "failed to check %s", d)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
