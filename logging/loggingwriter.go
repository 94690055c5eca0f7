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

package logging

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// LoggingWriter wraps a response writer and records the status code and
// the number of bytes written, for the access log and the metrics.
type LoggingWriter struct {
	writer http.ResponseWriter
	code   int
	bytes  int64
}

func NewLoggingWriter(writer http.ResponseWriter) *LoggingWriter {
	return &LoggingWriter{writer: writer}
}

func (lw *LoggingWriter) Write(data []byte) (count int, err error) {
	if lw.code == 0 {
		lw.code = http.StatusOK
	}

	count, err = lw.writer.Write(data)
	lw.bytes += int64(count)
	return
}

func (lw *LoggingWriter) WriteHeader(code int) {
	if lw.code != 0 {
		return
	}

	lw.writer.WriteHeader(code)
	if code == 0 {
		code = http.StatusOK
	}

	lw.code = code
}

func (lw *LoggingWriter) Header() http.Header {
	return lw.writer.Header()
}

func (lw *LoggingWriter) Flush() {
	if f, ok := lw.writer.(http.Flusher); ok {
		f.Flush()
	}
}

func (lw *LoggingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hij, ok := lw.writer.(http.Hijacker)
	if ok {
		return hij.Hijack()
	}

	return nil, nil, fmt.Errorf("could not hijack connection")
}

// Unwrap returns the wrapped writer, for http.ResponseController.
func (lw *LoggingWriter) Unwrap() http.ResponseWriter {
	return lw.writer
}

// Written tells whether the response status was already sent.
func (lw *LoggingWriter) Written() bool {
	return lw.code != 0
}

// GetCode returns the response status, 0 when nothing was written yet.
func (lw *LoggingWriter) GetCode() int {
	return lw.code
}

// GetBytes returns the number of body bytes written.
func (lw *LoggingWriter) GetBytes() int64 {
	return lw.bytes
}
