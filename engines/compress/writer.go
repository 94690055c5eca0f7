// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compress

import (
	"io"
	"net/http"
	"slices"
)

// writer decides whether to compress when the status is written, and
// compresses the body with the selected encoding.
type writer struct {
	http.ResponseWriter
	encoding string
	level    int
	mime     []string

	decided bool
	encoder io.WriteCloser
}

func (w *writer) WriteHeader(code int) {
	if !w.decided {
		w.decide(code)
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *writer) decide(code int) {
	w.decided = true
	if code < http.StatusOK || code == http.StatusNoContent || code == http.StatusNotModified {
		return
	}

	h := w.Header()
	if !canEncode(h, w.mime) {
		return
	}

	h.Del("Content-Length")
	h.Set("Content-Encoding", w.encoding)
	if !slices.Contains(h.Values("Vary"), "Accept-Encoding") {
		h.Add("Vary", "Accept-Encoding")
	}

	w.encoder = newEncoder(w.encoding, w.level, w.ResponseWriter)
}

func (w *writer) Write(b []byte) (int, error) {
	if !w.decided {
		w.WriteHeader(http.StatusOK)
	}

	if w.encoder == nil {
		return w.ResponseWriter.Write(b)
	}

	return w.encoder.Write(b)
}

// Flush flushes the buffered compressed data.
func (w *writer) Flush() {
	if f, ok := w.encoder.(interface{ Flush() error }); ok {
		f.Flush()
	}

	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Close writes the end of the compressed stream.
func (w *writer) Close() error {
	if w.encoder == nil {
		return nil
	}

	err := w.encoder.Close()
	w.encoder = nil
	return err
}

func (w *writer) Unwrap() http.ResponseWriter { return w.ResponseWriter }
