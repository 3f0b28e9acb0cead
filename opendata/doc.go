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

// Package opendata implements the part of the AEMET OpenData API needed to
// download historical daily climatological values.
//
// Official documentation is at https://opendata.aemet.es/dist/index.html .
//
// Every data request takes two calls. The first one, authorized with the API
// key, returns a small JSON handle whose "datos" field is the URL of the
// actual payload; a handle without "datos" means the range has no data. The
// second call fetches that URL. The payload is nominally ISO-8859-1 but is
// not always consistent, so it is decoded by trying a fixed list of encodings
// until one yields valid JSON.
//
// The daily values endpoint accepts at most MaxSpanDays days per request and
// is rate limited per key. Fetcher retries 429 and 500 responses with
// exponential backoff, and network failures with a shorter one.
package opendata
