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

package db

import (
	"context"
	"database/sql"

	"github.com/stockparfait/errors"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
  day     TEXT PRIMARY KEY,
  records TEXT NOT NULL
)`

// SQLiteStore keeps checkpoints as rows of a single SQLite table, keyed by
// the ISO day. It is an alternative to FileStore for hosts where a hundred
// years of daily files is inconvenient.
type SQLiteStore struct {
	db *sql.DB
}

var _ CheckpointStore = &SQLiteStore{}

// OpenSQLiteStore opens (creating if necessary) the database file.
func OpenSQLiteStore(ctx context.Context, fileName string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open '%s'", fileName)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		conn.Close()
		return nil, errors.Annotate(err, "failed to create schema in '%s'", fileName)
	}
	return &SQLiteStore{db: conn}, nil
}

// Close the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Exists implements CheckpointStore.
func (s *SQLiteStore) Exists(ctx context.Context, day Date) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE day = ?`, day.String()).Scan(&n)
	if err != nil {
		return false, errors.Annotate(err, "failed to query %s", day)
	}
	return n > 0, nil
}

// Write implements CheckpointStore. The row is inserted in a single statement,
// so it is either fully present or absent.
func (s *SQLiteStore) Write(ctx context.Context, day Date, records []Record) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return errors.Annotate(err, "failed to encode %s", day)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (day, records) VALUES (?, ?) ON CONFLICT (day) DO NOTHING`,
		day.String(), string(data))
	if err != nil {
		return errors.Annotate(err, "failed to insert %s", day)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Annotate(err, "failed to confirm insert of %s", day)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// ReadAll implements CheckpointStore.
func (s *SQLiteStore) ReadAll(ctx context.Context) CheckpointIterator {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, records FROM checkpoints ORDER BY day`)
	if err != nil {
		return &sqliteIterator{err: errors.Annotate(err, "failed to query checkpoints")}
	}
	return &sqliteIterator{rows: rows}
}

type sqliteIterator struct {
	rows *sql.Rows
	err  error
}

func (it *sqliteIterator) Next(c *Checkpoint) (bool, error) {
	if it.err != nil {
		err := it.err
		it.err = nil
		return false, err
	}
	if it.rows == nil {
		return false, nil
	}
	if !it.rows.Next() {
		err := it.rows.Err()
		it.Close()
		if err != nil {
			return false, errors.Annotate(err, "failed to read checkpoints")
		}
		return false, nil
	}
	var day, data string
	if err := it.rows.Scan(&day, &data); err != nil {
		return true, errors.Annotate(err, "failed to scan checkpoint row")
	}
	d, err := NewDateFromString(day)
	if err != nil {
		return true, errors.Annotate(err, "bad checkpoint key")
	}
	records, err := DecodeRecords([]byte(data))
	if err != nil {
		return true, errors.Annotate(err, "failed to parse checkpoint %s", day)
	}
	*c = Checkpoint{Day: d, Records: records}
	return true, nil
}

func (it *sqliteIterator) Close() error {
	if it.rows == nil {
		return nil
	}
	err := it.rows.Close()
	it.rows = nil
	return err
}
