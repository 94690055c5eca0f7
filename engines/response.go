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

package engines

import (
	"encoding/json"
	"net/http"
)

// Response is a complete response returned by an engine, typically when
// short-circuiting the chain. The request handler writes it.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a plain text response.
func NewResponse(status int, body string) *Response {
	h := make(http.Header)
	if body != "" {
		h.Set("Content-Type", "text/plain; charset=utf-8")
	}

	return &Response{Status: status, Header: h, Body: []byte(body)}
}

// NewJSONResponse creates a response with the JSON encoding of v.
func NewJSONResponse(status int, v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &Response{Status: status, Header: h, Body: b}, nil
}

// StatusText returns a response with the standard text of the status.
func StatusText(status int) *Response {
	return NewResponse(status, http.StatusText(status))
}

// Respond writes the response. A zero status means 200.
func (r *Response) Respond(w http.ResponseWriter) error {
	h := w.Header()
	for k, v := range r.Header {
		h[k] = v
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}

	w.WriteHeader(status)
	if len(r.Body) == 0 {
		return nil
	}

	_, err := w.Write(r.Body)
	return err
}

// StatusError is an error carrying the HTTP status code the request
// handler responds with.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}

	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) StatusCode() int { return e.Status }
