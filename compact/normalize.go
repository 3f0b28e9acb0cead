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

package compact

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// ParseDMS converts a degrees-minutes-seconds coordinate such as "415300N"
// or "0035500W" to signed decimal degrees. The degree part has 2 or 3 digits,
// minutes and seconds 2 each, followed by the hemisphere letter. South and
// west are negative.
func ParseDMS(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 7 {
		return 0, errors.Reason("coordinate too short: '%s'", s)
	}
	body, hemi := s[:len(s)-1], s[len(s)-1]
	var sign float64
	switch hemi {
	case 'N', 'E':
		sign = 1
	case 'S', 'W':
		sign = -1
	default:
		return 0, errors.Reason("bad hemisphere in '%s'", s)
	}
	degLen := len(body) - 4
	if degLen != 2 && degLen != 3 {
		return 0, errors.Reason("bad coordinate length: '%s'", s)
	}
	deg, err := strconv.ParseUint(body[:degLen], 10, 16)
	if err != nil {
		return 0, errors.Annotate(err, "bad degrees in '%s'", s)
	}
	mins, err := strconv.ParseUint(body[degLen:degLen+2], 10, 8)
	if err != nil || mins >= 60 {
		return 0, errors.Reason("bad minutes in '%s'", s)
	}
	secs, err := strconv.ParseUint(body[degLen+2:], 10, 8)
	if err != nil || secs >= 60 {
		return 0, errors.Reason("bad seconds in '%s'", s)
	}
	return sign * (float64(deg) + float64(mins)/60 + float64(secs)/3600), nil
}

// text of a raw value, which may be a string or a JSON number.
func text(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

// ParseFloat parses a raw value as a finite float, accepting a decimal comma.
func ParseFloat(v any) (float64, error) {
	if f, ok := v.(float64); ok {
		return finite(f)
	}
	s, ok := text(v)
	if !ok {
		return 0, errors.Reason("not a number: %v", v)
	}
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Annotate(err, "not a number: '%s'", s)
	}
	return finite(f)
}

func finite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Reason("not a finite number: %g", f)
	}
	return f, nil
}

// ParseInt32 parses a raw value as a 32-bit integer.
func ParseInt32(v any) (int32, error) {
	s, ok := text(v)
	if !ok {
		if f, isFloat := v.(float64); isFloat && f == float64(int32(f)) {
			return int32(f), nil
		}
		return 0, errors.Reason("not an integer: %v", v)
	}
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, errors.Annotate(err, "not an integer: '%s'", s)
	}
	return int32(i), nil
}
