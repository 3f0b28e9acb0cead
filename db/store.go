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

	"github.com/stockparfait/errors"
)

// Kinds of checkpoint stores.
const (
	StoreFiles  = "files"
	StoreSQLite = "sqlite"
)

// Locations of the stores under their root directory.
const (
	FilesSubdir    = "raw"
	SQLiteFileName = "checkpoints.db"
)

// OpenStore opens a store of the given kind under the root directory. The
// returned function releases the store.
func OpenStore(ctx context.Context, kind, root string) (CheckpointStore, func() error, error) {
	switch kind {
	case StoreFiles:
		return NewFileStore(filepath.Join(root, FilesSubdir)), func() error { return nil }, nil
	case StoreSQLite:
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, nil, errors.Annotate(err, "failed to create '%s'", root)
		}
		s, err := OpenSQLiteStore(ctx, filepath.Join(root, SQLiteFileName))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, errors.Reason("unknown store kind '%s', must be %s or %s",
		kind, StoreFiles, StoreSQLite)
}
