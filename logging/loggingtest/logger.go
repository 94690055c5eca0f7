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

// Package loggingtest provides a logging.Logger that records entries and
// lets tests wait for expected messages.
package loggingtest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

type subscription struct {
	exp  string
	n    int
	done chan struct{}
}

// TestLogger records every entry, regardless of the level.
type TestLogger struct {
	mu      sync.Mutex
	entries []string
	subs    []*subscription
	closed  bool
}

var ErrWaitTimeout = errors.New("timeout")

func New() *TestLogger {
	return &TestLogger{}
}

func (tl *TestLogger) save(e string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.closed {
		return
	}

	tl.entries = append(tl.entries, e)
	for i := len(tl.subs) - 1; i >= 0; i-- {
		s := tl.subs[i]
		if !strings.Contains(e, s.exp) {
			continue
		}

		s.n--
		if s.n <= 0 {
			close(s.done)
			tl.subs = append(tl.subs[:i], tl.subs[i+1:]...)
		}
	}
}

func (tl *TestLogger) subscribe(exp string, n int) <-chan struct{} {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	s := &subscription{exp: exp, n: n, done: make(chan struct{})}
	for _, e := range tl.entries {
		if strings.Contains(e, exp) {
			s.n--
		}
	}

	if s.n <= 0 {
		close(s.done)
	} else {
		tl.subs = append(tl.subs, s)
	}

	return s.done
}

// WaitForN waits until n entries containing exp were logged, counting the
// ones logged before the call.
func (tl *TestLogger) WaitForN(exp string, n int, to time.Duration) error {
	select {
	case <-tl.subscribe(exp, n):
		return nil
	case <-time.After(to):
		return ErrWaitTimeout
	}
}

func (tl *TestLogger) WaitFor(exp string, to time.Duration) error {
	return tl.WaitForN(exp, 1, to)
}

// Count returns the number of entries containing exp.
func (tl *TestLogger) Count(exp string) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	var n int
	for _, e := range tl.entries {
		if strings.Contains(e, exp) {
			n++
		}
	}

	return n
}

// Entries returns a copy of the recorded entries.
func (tl *TestLogger) Entries() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]string(nil), tl.entries...)
}

func (tl *TestLogger) Reset() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.entries = nil
	tl.subs = nil
}

func (tl *TestLogger) Close() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.closed = true
}

func (tl *TestLogger) logf(f string, a ...any) { tl.save(fmt.Sprintf(f, a...)) }
func (tl *TestLogger) log(a ...any)            { tl.save(fmt.Sprint(a...)) }

func (tl *TestLogger) Error(a ...any)            { tl.log(a...) }
func (tl *TestLogger) Errorf(f string, a ...any) { tl.logf(f, a...) }
func (tl *TestLogger) Warn(a ...any)             { tl.log(a...) }
func (tl *TestLogger) Warnf(f string, a ...any)  { tl.logf(f, a...) }
func (tl *TestLogger) Info(a ...any)             { tl.log(a...) }
func (tl *TestLogger) Infof(f string, a ...any)  { tl.logf(f, a...) }
func (tl *TestLogger) Debug(a ...any)            { tl.log(a...) }
func (tl *TestLogger) Debugf(f string, a ...any) { tl.logf(f, a...) }
