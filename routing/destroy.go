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

package routing

import (
	"errors"
	"fmt"

	"github.com/zalando/rose/logging"
)

// Nesting is implemented by engines dispatching to a nested mapping. The
// engines of the nested mapping are destroyed together with the engines
// of the mapping the nesting engine is bound in, sharing the deduplication.
type Nesting interface {
	Nested() *Mapping
}

// Destroy calls Destroy on every distinct engine of the tree, once,
// including the engines of the nested mappings mounted in it. Failing and
// panicking engines are logged and the rest of the engines are destroyed
// anyway. The failures are returned joined, as *DestroyError. Calls after
// the first one return the same result without destroying anything.
func (m *Mapping) Destroy() error {
	m.destroyMu.Lock()
	defer m.destroyMu.Unlock()

	if m.destroyed {
		return m.destroyErr
	}

	m.destroyed = true
	m.Freeze()
	m.destroyErr = destroyEngines(m.log, m.destroyTargets())
	return m.destroyErr
}

// claim marks the mapping destroyed, and tells whether it was not
// destroyed before.
func (m *Mapping) claim() bool {
	m.destroyMu.Lock()
	defer m.destroyMu.Unlock()

	if m.destroyed {
		return false
	}

	m.destroyed = true
	m.Freeze()
	return true
}

// destroyTargets collects the distinct engines of the tree and of the
// nested mappings. The nested mappings are claimed, so destroying the
// nesting engines does not destroy their engines again.
func (m *Mapping) destroyTargets() []Engine {
	var (
		engines []Engine
		seen    = make(map[Engine]struct{})
		visited = map[*Mapping]bool{m: true}
	)

	var collect func(*Mapping)
	collect = func(cm *Mapping) {
		for _, e := range cm.Engines() {
			if !markSeen(seen, e) {
				continue
			}

			engines = append(engines, e)
			n, ok := e.(Nesting)
			if !ok {
				continue
			}

			nested := n.Nested()
			if nested == nil || visited[nested] {
				continue
			}

			visited[nested] = true
			if nested.claim() {
				collect(nested)
			}
		}
	}

	collect(m)
	return engines
}

// DestroyEngines destroys the distinct engines once, the same way as
// Mapping.Destroy, e.g. the engines of routes that could not be
// registered. The failures are logged and returned joined.
func DestroyEngines(l logging.Logger, engines ...Engine) error {
	if l == nil {
		l = &logging.DefaultLog{}
	}

	var distinct []Engine
	seen := make(map[Engine]struct{})
	for _, e := range engines {
		if e != nil && markSeen(seen, e) {
			distinct = append(distinct, e)
		}
	}

	return destroyEngines(l, distinct)
}

func destroyEngines(l logging.Logger, engines []Engine) error {
	var errs []error
	for _, e := range engines {
		if err := destroyEngine(e); err != nil {
			l.Errorf("%v", err)
			errs = append(errs, err)
		}
	}

	l.Infof("destroyed %d engines, %d failed", len(engines), len(errs))
	return errors.Join(errs...)
}

func destroyEngine(e Engine) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &DestroyError{Engine: EngineName(e), Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	if derr := e.Destroy(); derr != nil {
		return &DestroyError{Engine: EngineName(e), Err: derr}
	}

	return nil
}
