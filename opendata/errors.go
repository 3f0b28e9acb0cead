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
	"fmt"
	"strings"
)

// TransportError is a network-level failure: no HTTP response was received,
// or its body could not be read. Retryable.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %s", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitedError is an HTTP 429 response. Retryable with the rate limit
// policy.
type RateLimitedError struct {
	URL string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (429) by %s", e.URL)
}

// ServerError is an HTTP 500 response. Retryable with the rate limit policy,
// since AEMET answers 500 when overloaded.
type ServerError struct {
	URL    string
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d) from %s", e.Status, e.URL)
}

// HTTPStatusError is any other non-2xx response. Not retried.
type HTTPStatusError struct {
	URL    string
	Status int
	Body   string // truncated
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.Status, e.URL, e.Body)
}

// DecodingError means no candidate character encoding produced valid JSON.
type DecodingError struct {
	Tried []string // decoder names, in the order tried
	Last  error    // the error of the last decoder
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("could not decode response with any of [%s]: %s",
		strings.Join(e.Tried, ", "), e.Last)
}

func (e *DecodingError) Unwrap() error { return e.Last }

// RetriesExhausted wraps the last retryable error once the attempt budget is
// spent.
type RetriesExhausted struct {
	Attempts int
	Last     error
}

func (e *RetriesExhausted) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %s", e.Attempts, e.Last)
}

func (e *RetriesExhausted) Unwrap() error { return e.Last }

// APIError is the error envelope AEMET returns in place of data, e.g.
// {"descripcion": "API key invalido", "estado": 401}.
type APIError struct {
	Estado      int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Estado, e.Description)
}

// truncate s to at most n bytes, for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
