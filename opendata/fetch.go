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

package opendata

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/datania/aemet/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

// DefaultMaxAttempts is the attempt budget of a single Fetch, shared by all
// retryable failure classes.
const DefaultMaxAttempts = 5

// BackoffPolicy computes the wait before retry number attempt+1 as
// Base * 2^attempt, capped at Max when Max > 0.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay after the failed attempt with the given 0-based index.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Default policies. Rate limiting and overload need a longer pause than a
// dropped connection.
var (
	RateLimitPolicy = BackoffPolicy{Base: 2 * time.Second, Max: 5 * time.Minute}
	TransportPolicy = BackoffPolicy{Base: time.Second, Max: time.Minute}
)

// Response is a successful (2xx) HTTP response with its body fully read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// BackoffEvent describes a wait before a retry.
type BackoffEvent struct {
	URL     string
	Attempt int // 0-based index of the failed attempt
	Delay   time.Duration
	Err     error // the retryable error of the failed attempt
}

// Fetcher issues GET requests and retries the transient failures. It is the
// only place in the package that talks to the network.
type Fetcher struct {
	// Client, when nil, is taken from the context by fetch.GetClient, and
	// defaults to http.DefaultClient.
	Client      *http.Client
	Clock       clockwork.Clock
	MaxAttempts int
	RateLimit   BackoffPolicy // for 429 and 500
	Transport   BackoffPolicy // for network-level failures
	Metrics     *metrics.Metrics
	// OnBackoff, when set, is called before every backoff wait. It must not
	// block.
	OnBackoff func(BackoffEvent)
}

// NewFetcher creates a Fetcher with the default policies and the real clock.
func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{
		Client:      client,
		Clock:       clockwork.NewRealClock(),
		MaxAttempts: DefaultMaxAttempts,
		RateLimit:   RateLimitPolicy,
		Transport:   TransportPolicy,
	}
}

// Fetch GETs the URL with the optional query, retrying 429, 500 and transport
// failures up to MaxAttempts. Any other non-2xx status fails immediately with
// *HTTPStatusError. A spent budget yields *RetriesExhausted wrapping the last
// error.
func (f *Fetcher) Fetch(ctx context.Context, uri string, query url.Values) (*Response, error) {
	maxAttempts := f.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 0; ; attempt++ {
		resp, err := f.get(ctx, uri, query)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Annotate(ctx.Err(), "fetch of %s interrupted", uri)
		}
		policy, reason, ok := f.classify(err)
		if !ok {
			return nil, err
		}
		if attempt+1 >= maxAttempts {
			return nil, &RetriesExhausted{Attempts: attempt + 1, Last: err}
		}
		delay := policy.Delay(attempt)
		logging.Infof(ctx, "retry %d/%d in %s: %s", attempt+1, maxAttempts-1, delay, err.Error())
		f.Metrics.Backoff(reason, delay)
		if f.OnBackoff != nil {
			f.OnBackoff(BackoffEvent{URL: uri, Attempt: attempt, Delay: delay, Err: err})
		}
		if err := f.sleep(ctx, delay); err != nil {
			return nil, errors.Annotate(err, "fetch of %s interrupted", uri)
		}
	}
}

// classify a failed attempt: the backoff policy to use, the metric label, and
// whether it is retryable at all.
func (f *Fetcher) classify(err error) (BackoffPolicy, string, bool) {
	switch err.(type) {
	case *RateLimitedError, *ServerError:
		return f.RateLimit, "ratelimit", true
	case *TransportError:
		return f.Transport, "transport", true
	}
	return BackoffPolicy{}, "", false
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	clock := f.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// get performs a single attempt.
func (f *Fetcher) get(ctx context.Context, uri string, query url.Values) (*Response, error) {
	full := uri
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create request for %s", uri)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	client := f.Client
	if client == nil {
		client = fetch.GetClient(ctx)
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		f.Metrics.Request("transport")
		return nil, &TransportError{URL: uri, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.Metrics.Request("transport")
		return nil, &TransportError{URL: uri, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		f.Metrics.Request("ratelimited")
		return nil, &RateLimitedError{URL: uri}
	case resp.StatusCode == http.StatusInternalServerError:
		f.Metrics.Request("server")
		return nil, &ServerError{URL: uri, Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		f.Metrics.Request("status")
		return nil, &HTTPStatusError{
			URL:    uri,
			Status: resp.StatusCode,
			Body:   truncate(string(body), 200),
		}
	}
	f.Metrics.Request("ok")
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
