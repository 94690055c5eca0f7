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
	"strings"
)

type definitionError string

func (e definitionError) Error() string { return string(e) }
func (e definitionError) Code() string  { return string(e) }

// Registration errors. Returned errors wrap one of these, test them with
// errors.Is.
var (
	ErrInvalidPattern     = definitionError("invalid_pattern")
	ErrConflictingSegment = definitionError("conflicting_segment")
	ErrDuplicateRoute     = definitionError("duplicate_route")
	ErrNoEngines          = definitionError("no_engines")
	ErrFrozen             = definitionError("mapping_frozen")
)

// DefinitionErrorCode returns the code of a registration error, e.g.
// duplicate_route, or "other".
func DefinitionErrorCode(err error) string {
	var defErr definitionError
	if errors.As(err, &defErr) {
		return defErr.Code()
	}

	return "other"
}

var (
	// ErrResolution is wrapped by every resolution failure.
	ErrResolution = errors.New("resolution failure")

	// ErrNotFound is returned when no node matches the request path.
	ErrNotFound = fmt.Errorf("%w: not found", ErrResolution)
)

// MethodNotAllowedError is returned when the request path matches an end
// resource, but no engines are bound to the request method.
type MethodNotAllowedError struct {
	Method  string
	Path    string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf(
		"%v: method %s not allowed for %s, allowed: %s",
		ErrResolution, e.Method, e.Path, strings.Join(e.Allowed, ", "),
	)
}

func (e *MethodNotAllowedError) Unwrap() error { return ErrResolution }

var (
	// ErrChainProtocol is wrapped by every violation of the chain protocol.
	ErrChainProtocol = errors.New("chain protocol violation")

	// ErrChainExhausted is returned by Proceed after the last engine.
	ErrChainExhausted = fmt.Errorf("%w: chain exhausted", ErrChainProtocol)

	// ErrChainProceeded is returned by Proceed called for the second time
	// on the same chain.
	ErrChainProceeded = fmt.Errorf("%w: chain already proceeded", ErrChainProtocol)
)

// InvocationError wraps the errors returned by an engine.
type InvocationError struct {
	Engine string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

func wrapInvocationError(e Engine, err error) error {
	if errors.Is(err, ErrChainProtocol) {
		return err
	}

	var ie *InvocationError
	if errors.As(err, &ie) {
		return err
	}

	return &InvocationError{Engine: EngineName(e), Err: err}
}

// DestroyError is returned for engines that failed or panicked while
// being destroyed.
type DestroyError struct {
	Engine string
	Err    error
}

func (e *DestroyError) Error() string {
	return fmt.Sprintf("destroying engine %s: %v", e.Engine, e.Err)
}

func (e *DestroyError) Unwrap() error { return e.Err }
