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
	"os"
	"path/filepath"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
)

const checkpointExt = ".json"

// FileStore keeps one JSON file per day in a directory.
type FileStore struct {
	dir string
}

var _ CheckpointStore = &FileStore{}

// NewFileStore creates a store rooted at dir. The directory is created on the
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir is the directory holding the checkpoints.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(day Date) string {
	return filepath.Join(s.dir, day.String()+checkpointExt)
}

// Exists implements CheckpointStore.
func (s *FileStore) Exists(ctx context.Context, day Date) (bool, error) {
	_, err := os.Stat(s.path(day))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Annotate(err, "failed to stat '%s'", s.path(day))
}

// Write implements CheckpointStore. The data goes to a temporary file first,
// which is then hard-linked to its final name. Linking fails when the target
// exists, so a checkpoint is never overwritten nor visible half-written.
func (s *FileStore) Write(ctx context.Context, day Date, records []Record) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return errors.Annotate(err, "failed to encode %s", day)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Annotate(err, "failed to create '%s'", s.dir)
	}
	fileName := s.path(day)
	tmp, err := os.CreateTemp(s.dir, "."+day.String()+"-*.tmp")
	if err != nil {
		return errors.Annotate(err, "failed to create temp file for '%s'", fileName)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Annotate(err, "failed to write to '%s'", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Annotate(err, "failed to sync '%s'", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Annotate(err, "failed to close '%s'", tmp.Name())
	}
	if err := os.Link(tmp.Name(), fileName); err != nil {
		if os.IsExist(err) {
			return ErrExists
		}
		return errors.Annotate(err, "failed to link '%s'", fileName)
	}
	return nil
}

// Days lists the days having a checkpoint, in ascending order.
func (s *FileStore) Days() ([]Date, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Annotate(err, "failed to list '%s'", s.dir)
	}
	names := []string{}
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, checkpointExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, checkpointExt))
	}
	// YYYY-MM-DD sorts lexicographically in date order.
	slices.Sort(names)
	days := make([]Date, 0, len(names))
	for _, n := range names {
		d, err := NewDateFromString(n)
		if err != nil {
			continue // not a checkpoint
		}
		days = append(days, d)
	}
	return days, nil
}

// ReadAll implements CheckpointStore. Files are read one at a time as the
// iterator advances.
func (s *FileStore) ReadAll(ctx context.Context) CheckpointIterator {
	days, err := s.Days()
	return &fileIterator{store: s, days: days, err: err}
}

type fileIterator struct {
	store *FileStore
	days  []Date
	index int
	err   error // listing error, reported on the first Next
}

func (it *fileIterator) Next(c *Checkpoint) (bool, error) {
	if it.err != nil {
		err := it.err
		it.err = nil
		it.days = nil
		return false, err
	}
	if it.index >= len(it.days) {
		return false, nil
	}
	day := it.days[it.index]
	it.index++
	data, err := os.ReadFile(it.store.path(day))
	if err != nil {
		return true, errors.Annotate(err, "failed to read checkpoint %s", day)
	}
	records, err := DecodeRecords(data)
	if err != nil {
		return true, errors.Annotate(err, "failed to parse checkpoint %s", day)
	}
	*c = Checkpoint{Day: day, Records: records}
	return true, nil
}

func (it *fileIterator) Close() error {
	it.days = nil
	return nil
}
