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
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/datania/aemet/acquire"
	"github.com/datania/aemet/db"
	"github.com/datania/aemet/metrics"
	"github.com/datania/aemet/opendata"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	toml "github.com/pelletier/go-toml/v2"
)

// KeyEnv is the environment variable overriding the configured API key.
const KeyEnv = "AEMET_API_TOKEN"

// FirstDay of the AEMET daily series.
var FirstDay = db.NewDate(1920, 1, 1)

type Flags struct {
	DBDir       string // default: ~/.datania/aemet
	LogLevel    logging.Level
	From        db.Date // default: config start, or FirstDay
	To          db.Date // default: yesterday in Madrid
	Store       string  // files or sqlite
	Interval    time.Duration
	EnvFile     string
	MetricsFile string
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("aemet-download", flag.ExitOnError)
	fs.StringVar(&flags.DBDir, "cache",
		filepath.Join(os.Getenv("HOME"), ".datania", "aemet"),
		"configuration and checkpoint path")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	var from, to string
	fs.StringVar(&from, "from", "", "first day to download, YYYY-MM-DD")
	fs.StringVar(&to, "to", "", "last day to download, YYYY-MM-DD (default: yesterday)")
	fs.StringVar(&flags.Store, "store", db.StoreFiles, "checkpoint store: files or sqlite")
	fs.DurationVar(&flags.Interval, "interval", acquire.DefaultInterval,
		"pause after each requested window")
	fs.StringVar(&flags.EnvFile, "env", ".env", "optional dotenv file with "+KeyEnv)
	fs.StringVar(&flags.MetricsFile, "metrics-file", "",
		"write Prometheus metrics to this file at exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	var err error
	if from != "" {
		if flags.From, err = db.NewDateFromString(from); err != nil {
			return nil, errors.Annotate(err, "invalid -from")
		}
	}
	if to != "" {
		if flags.To, err = db.NewDateFromString(to); err != nil {
			return nil, errors.Annotate(err, "invalid -to")
		}
	}
	if !flags.From.IsZero() && !flags.To.IsZero() && flags.To.Before(flags.From) {
		return nil, errors.Reason("-to %s is before -from %s", flags.To, flags.From)
	}
	return &flags, nil
}

type Config struct {
	Key             string  `toml:"key"`              // AEMET OpenData API key
	Start           db.Date `toml:"start"`            // first day, default 1920-01-01
	BreakerFailures *int    `toml:"breaker_failures"` // consecutive failed windows to stop at
}

const sampleConfig = `key = "YourAemetOpenDataKey"
start = "1920-01-01"
breaker_failures = 10
`

// parseConfig reads config.toml in dbdir. A missing file is an empty config,
// as the key may come from the environment.
func parseConfig(dbdir string) (*Config, error) {
	filePath := filepath.Join(dbdir, "config.toml")
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return &c, nil
}

// apiKey from the environment, loading the dotenv file first, or else from
// the config.
func apiKey(ctx context.Context, envFile string, c *Config) string {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logging.Debugf(ctx, "not loading %s: %s", envFile, err.Error())
		}
	}
	if key := os.Getenv(KeyEnv); key != "" {
		return key
	}
	return c.Key
}

// dateRange resolves the range to download from the flags and the config,
// clamped to [FirstDay, yesterday in Madrid]. Today is not complete yet.
func dateRange(flags *Flags, c *Config, now time.Time) (db.Date, db.Date) {
	yesterday := db.DateInMadrid(now).AddDays(-1)
	start := db.MaxDate(FirstDay, c.Start)
	if !flags.From.IsZero() {
		start = db.MaxDate(FirstDay, flags.From)
	}
	end := db.MinDate(flags.To, yesterday)
	return start, end
}

func download(ctx context.Context, flags *Flags) error {
	config, err := parseConfig(flags.DBDir)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	key := apiKey(ctx, flags.EnvFile, config)
	if key == "" {
		return errors.Reason("no API key: set %s or create %s containing:\n%s",
			KeyEnv, filepath.Join(flags.DBDir, "config.toml"), sampleConfig)
	}
	start, end := dateRange(flags, config, time.Now())

	store, closeStore, err := db.OpenStore(ctx, flags.Store, flags.DBDir)
	if err != nil {
		return errors.Annotate(err, "failed to open checkpoint store")
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := opendata.NewFetcher(nil)
	f.Metrics = m
	ctx = opendata.UseClient(ctx, key, f)

	a := acquire.NewAcquirer(store, opendata.GetClient(ctx))
	a.Interval = flags.Interval
	a.Metrics = m
	if config.BreakerFailures != nil {
		a.BreakerFailures = *config.BreakerFailures
	}

	logging.Infof(ctx, "downloading %s to %s into %s store", start, end, flags.Store)
	_, runErr := a.Run(ctx, start, end)
	if flags.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(flags.MetricsFile, reg); err != nil {
			logging.Warningf(ctx, "failed to write metrics: %s", err.Error())
		}
	}
	if runErr != nil {
		return errors.Annotate(runErr, "download stopped")
	}
	return nil
}

func run(ctx context.Context, args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return errors.Annotate(err, "failed to parse flags")
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))
	return download(ctx, flags)
}

// main is not tested, keep it short.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		ctx := logging.Use(context.Background(), logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
