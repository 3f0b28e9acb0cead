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

package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"runtime"

	"github.com/datania/aemet/compact"
	"github.com/datania/aemet/db"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// DefaultOutput is the file name of the dataset in the cache directory.
const DefaultOutput = "datos_meteorologicos_estaciones_aemet.parquet"

type Flags struct {
	DBDir    string // default: ~/.datania/aemet
	LogLevel logging.Level
	Store    string // files or sqlite
	Output   string // default: DBDir/DefaultOutput
	Workers  int
	Report   bool // print column statistics to stdout
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("aemet-compact", flag.ExitOnError)
	fs.StringVar(&flags.DBDir, "cache",
		filepath.Join(os.Getenv("HOME"), ".datania", "aemet"),
		"checkpoint path")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Store, "store", db.StoreFiles, "checkpoint store: files or sqlite")
	fs.StringVar(&flags.Output, "out", "", "output Parquet file (default: in -cache)")
	fs.BoolVar(&flags.Report, "report", false, "print column statistics")
	fs.IntVar(&flags.Workers, "workers", 2*runtime.NumCPU(), "parallel normalization workers")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.Output == "" {
		flags.Output = filepath.Join(flags.DBDir, DefaultOutput)
	}
	if flags.Workers < 1 {
		return nil, errors.Reason("-workers must be positive")
	}
	return &flags, nil
}

func compactAll(ctx context.Context, flags *Flags) error {
	store, closeStore, err := db.OpenStore(ctx, flags.Store, flags.DBDir)
	if err != nil {
		return errors.Annotate(err, "failed to open checkpoint store")
	}
	defer closeStore()

	c := compact.NewCompactor(store)
	c.Workers = flags.Workers
	ds, err := c.Compact(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to compact")
	}
	if err := ds.Write(flags.Output); err != nil {
		return errors.Annotate(err, "failed to write dataset")
	}
	logging.Infof(ctx, "%s written", flags.Output)
	if flags.Report {
		if err := compact.WriteReport(os.Stdout, ds.Summary); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return errors.Annotate(err, "failed to parse flags")
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))
	return compactAll(ctx, flags)
}

// main is not tested, keep it short.
func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		ctx := logging.Use(context.Background(), logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
