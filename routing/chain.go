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

// ChainState is the state of the request's chain.
type ChainState int

const (
	// ChainReady means no engine was invoked yet.
	ChainReady ChainState = iota

	// ChainRunning means some, but not all of the engines were invoked.
	ChainRunning

	// ChainExhausted means every engine was invoked.
	ChainExhausted
)

func (s ChainState) String() string {
	switch s {
	case ChainReady:
		return "ready"
	case ChainRunning:
		return "running"
	default:
		return "exhausted"
	}
}

type chainState struct {
	rose    *Rose
	match   *MatchResult
	engines []Engine
	cursor  int
}

// Chain is the view of the remaining engines of a request. Every engine
// receives its own view, and each view can be proceeded once. The chain
// belongs to one request and must not be shared.
type Chain struct {
	state     *chainState
	index     int
	proceeded bool
}

// NewChain creates the chain for the engines of a match.
func NewChain(rose *Rose, mr *MatchResult) *Chain {
	return &Chain{state: &chainState{rose: rose, match: mr, engines: mr.engines}}
}

// Proceed invokes the next engine, passing it the view of the rest of the
// chain, and returns its result. Errors of the engines are returned as
// *InvocationError. Calling Proceed for the second time on the same view
// fails with ErrChainProceeded, and calling it after the last engine with
// ErrChainExhausted.
func (c *Chain) Proceed(instruction any) (any, error) {
	if c.proceeded {
		return nil, ErrChainProceeded
	}

	if c.index >= len(c.state.engines) {
		return nil, ErrChainExhausted
	}

	c.proceeded = true
	e := c.state.engines[c.index]
	c.state.cursor = c.index + 1

	next := &Chain{state: c.state, index: c.index + 1}
	result, err := e.Invoke(c.state.rose, c.state.match, instruction, next)
	if err != nil {
		return nil, wrapInvocationError(e, err)
	}

	return result, nil
}

// State returns the state of the whole chain, not of the view.
func (c *Chain) State() ChainState {
	switch c.state.cursor {
	case 0:
		return ChainReady
	case len(c.state.engines):
		return ChainExhausted
	default:
		return ChainRunning
	}
}

// Position returns the number of engines invoked so far in the request.
func (c *Chain) Position() int { return c.state.cursor }

// Remaining returns the number of engines after this view.
func (c *Chain) Remaining() int { return len(c.state.engines) - c.index }

// Rose returns the request context of the chain.
func (c *Chain) Rose() *Rose { return c.state.rose }

// MatchResult returns the match the chain was created for.
func (c *Chain) MatchResult() *MatchResult { return c.state.match }
