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
	"encoding/json"
	"unicode/utf8"

	"github.com/stockparfait/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Decoder converts a response body in some character encoding to UTF-8.
type Decoder struct {
	Name   string
	Decode func(data []byte) ([]byte, error)
}

func textDecoder(name string, enc encoding.Encoding) Decoder {
	return Decoder{
		Name: name,
		Decode: func(data []byte) ([]byte, error) {
			return enc.NewDecoder().Bytes(data)
		},
	}
}

// Candidate decoders.
var (
	Latin1 = textDecoder("iso-8859-1", charmap.ISO8859_1)
	UTF8   = Decoder{
		Name: "utf-8",
		Decode: func(data []byte) ([]byte, error) {
			data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
			if !utf8.Valid(data) {
				return nil, errors.Reason("invalid UTF-8")
			}
			return data, nil
		},
	}
	UTF16 = textDecoder("utf-16", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM))
)

// DefaultDecoders is the order AEMET data bodies are tried in: the API serves
// ISO-8859-1, the rest are fallbacks for re-encoded responses. ISO-8859-1 maps
// every byte and keeps the JSON structure of any ASCII-compatible body, so the
// later decoders only win on a byte order mark or UTF-16.
var DefaultDecoders = []Decoder{Latin1, UTF8, UTF16}

// DecodeJSON tries each decoder in order and returns the first result that is
// syntactically valid JSON, together with the winning decoder's name. When
// none succeeds, the error is *DecodingError.
func DecodeJSON(data []byte, decoders []Decoder) (json.RawMessage, string, error) {
	dErr := &DecodingError{}
	for _, d := range decoders {
		dErr.Tried = append(dErr.Tried, d.Name)
		text, err := d.Decode(data)
		if err != nil {
			dErr.Last = errors.Annotate(err, "%s", d.Name)
			continue
		}
		text = bytes.TrimSpace(text)
		if !json.Valid(text) {
			dErr.Last = errors.Reason("%s: not valid JSON", d.Name)
			continue
		}
		return json.RawMessage(text), d.Name, nil
	}
	if dErr.Last == nil {
		dErr.Last = errors.Reason("no decoders")
	}
	return nil, "", dErr
}
