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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/datania/aemet/db"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the server. It may be overwritten in tests
// before creating a new client.
var URL = "https://opendata.aemet.es/opendata/api"

// MaxSpanDays is the longest date range, in calendar days inclusive, that the
// daily values endpoint accepts in one request.
const MaxSpanDays = 15

// estadoNotFound is what AEMET reports for a range without data.
const estadoNotFound = 404

// Client for querying AEMET OpenData.
type Client struct {
	baseURL  string // the base URL of the server
	apiKey   string // your very own secret key
	fetcher  *Fetcher
	decoders []Decoder
}

// NewClient creates a new client. A nil fetcher means NewFetcher(nil).
func NewClient(baseURL, apiKey string, f *Fetcher) *Client {
	if f == nil {
		f = NewFetcher(nil)
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		fetcher:  f,
		decoders: DefaultDecoders,
	}
}

// WithDecoders returns a copy of the client trying the given decoders, in
// order, on data bodies.
func (c *Client) WithDecoders(decoders ...Decoder) *Client {
	c2 := *c
	c2.decoders = decoders
	return &c2
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client based on the API key and fetcher and injects
// it into the context.
func UseClient(ctx context.Context, apiKey string, f *Fetcher) context.Context {
	return context.WithValue(ctx, clientContextKey, NewClient(URL, apiKey, f))
}

// DailyPath is the URL path, relative to the base URL, of the daily values of
// all stations for the inclusive date range.
func DailyPath(start, end db.Date) string {
	return fmt.Sprintf(
		"/valores/climatologicos/diarios/datos/fechaini/%sT00:00:00UTC/fechafin/%sT23:59:59UTC/todasestaciones",
		start, end)
}

// handle is the JSON schema received by the first call. It points to the
// actual data in Datos, which is absent when there is nothing to download.
type handle struct {
	Description string `json:"descripcion"`
	Estado      int    `json:"estado"`
	Datos       string `json:"datos,omitempty"`
	Metadatos   string `json:"metadatos,omitempty"`
}

// TestHandle generates the JSON string in the format returned by the first
// call of the API. An empty datos generates the "no data" response. For use
// in tests.
func TestHandle(datos string) (string, error) {
	h := handle{Description: "exito", Estado: 200, Datos: datos}
	if datos == "" {
		h = handle{Description: "No hay datos que satisfagan esos criterios", Estado: estadoNotFound}
	}
	bytes, err := json.Marshal(&h)
	return string(bytes), err
}

// Outcome of resolving a date range. Exactly one of Records and NoData is
// meaningful: NoData means the API acknowledged the range but had nothing,
// while an empty Records means it sent an empty list.
type Outcome struct {
	Records     []db.Record
	NoData      bool
	Estado      int    // upstream status, when reported
	Description string // upstream message, when reported
	Encoding    string // the decoder that parsed the data
}

// Resolve downloads the daily values of all stations for the inclusive date
// range using the two-call protocol: the first call returns a handle with the
// data URL, the second fetches the data itself.
func (c *Client) Resolve(ctx context.Context, start, end db.Date) (*Outcome, error) {
	query := make(url.Values)
	query["api_key"] = []string{c.apiKey}
	resp, err := c.fetcher.Fetch(ctx, c.baseURL+DailyPath(start, end), query)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch data handle for %s..%s", start, end)
	}
	raw, _, err := DecodeJSON(resp.Body, c.decoders)
	if err != nil {
		return nil, err
	}
	var h handle
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, errors.Annotate(err, "failed to parse data handle")
	}
	if h.Datos == "" {
		logging.Debugf(ctx, "no data for %s..%s: estado=%d %s", start, end, h.Estado, h.Description)
		return &Outcome{NoData: true, Estado: h.Estado, Description: h.Description}, nil
	}

	// The data URL is self-contained, including authorization.
	resp, err = c.fetcher.Fetch(ctx, h.Datos, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch data for %s..%s", start, end)
	}
	raw, enc, err := DecodeJSON(resp.Body, c.decoders)
	if err != nil {
		return nil, err
	}
	return parseData(raw, enc)
}

// parseData interprets the decoded data body: either an array of records or
// an error envelope.
func parseData(raw json.RawMessage, enc string) (*Outcome, error) {
	switch {
	case bytes.HasPrefix(raw, []byte("[")):
		records, err := db.DecodeRecords(raw)
		if err != nil {
			return nil, err
		}
		return &Outcome{Records: records, Encoding: enc}, nil
	case bytes.HasPrefix(raw, []byte("{")):
		var h handle
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, errors.Annotate(err, "failed to parse error envelope")
		}
		if h.Estado == estadoNotFound {
			return &Outcome{NoData: true, Estado: h.Estado, Description: h.Description}, nil
		}
		return nil, &APIError{Estado: h.Estado, Description: h.Description}
	}
	return nil, errors.Reason("unexpected data body: %s", truncate(string(raw), 100))
}

// Resolve the date range with the Client from the context.
func Resolve(ctx context.Context, start, end db.Date) (*Outcome, error) {
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("no client in context")
	}
	return client.Resolve(ctx, start, end)
}
