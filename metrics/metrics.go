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

// Package metrics holds the Prometheus instruments of the download. All
// methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aemet"

// Window results.
const (
	WindowSkipped = "skipped"
	WindowFetched = "fetched"
	WindowNoData  = "nodata"
	WindowFailed  = "failed"
)

// Metrics of the fetcher and the acquisition loop.
type Metrics struct {
	Requests       *prometheus.CounterVec // labels: outcome={ok,ratelimited,server,status,transport}
	Backoffs       *prometheus.CounterVec // labels: reason={ratelimit,transport}
	BackoffSeconds prometheus.Counter
	Windows        *prometheus.CounterVec // labels: result={skipped,fetched,nodata,failed}
	DaysWritten    prometheus.Counter
	DroppedRecords prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg leaves them
// unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests issued to the API, by outcome.",
		}, []string{"outcome"}),
		Backoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backoffs_total",
			Help:      "Backoff waits before a retry, by reason.",
		}, []string{"reason"}),
		BackoffSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backoff_seconds_total",
			Help:      "Total time spent waiting before retries.",
		}),
		Windows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_total",
			Help:      "Date windows processed by the acquisition loop, by result.",
		}, []string{"result"}),
		DaysWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_written_total",
			Help:      "Daily checkpoints created.",
		}),
		DroppedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_records_total",
			Help:      "Records discarded for lacking a valid date.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Requests,
			m.Backoffs,
			m.BackoffSeconds,
			m.Windows,
			m.DaysWritten,
			m.DroppedRecords,
		)
	}
	return m
}

// Request records the outcome of a single HTTP request.
func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
}

// Backoff records a wait before a retry.
func (m *Metrics) Backoff(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.Backoffs.WithLabelValues(reason).Inc()
	m.BackoffSeconds.Add(d.Seconds())
}

// Window records the result of one window of the acquisition loop.
func (m *Metrics) Window(result string) {
	if m == nil {
		return
	}
	m.Windows.WithLabelValues(result).Inc()
}

// Saved records newly written checkpoints and dropped records of a batch.
func (m *Metrics) Saved(days, dropped int) {
	if m == nil {
		return
	}
	m.DaysWritten.Add(float64(days))
	m.DroppedRecords.Add(float64(dropped))
}
