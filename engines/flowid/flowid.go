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

package flowid

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const (
	Name                = "flowId"
	ReuseParameterValue = "reuse"
	HeaderName          = "X-Flow-Id"

	// AttributeKey is the request attribute holding the flow id.
	AttributeKey = "flowid"
)

type engine struct {
	reuseExisting bool
	generator     Generator
}

// New creates a flow id engine.
func New(reuseExisting bool, g Generator) routing.Engine {
	return &engine{reuseExisting: reuseExisting, generator: g}
}

// Get returns the flow id of the request.
func Get(rose *routing.Rose) string {
	id, _ := rose.Get(AttributeKey)
	s, _ := id.(string)
	return s
}

func (e *engine) Name() string { return Name }

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	var id string
	req := rose.Request()
	if e.reuseExisting && req != nil {
		if h := req.Header.Get(HeaderName); e.generator.IsValid(h) {
			id = h
		}
	}

	if id == "" {
		var err error
		if id, err = e.generator.Generate(); err != nil {
			log.Errorf("failed to generate flow id: %v", err)
			return chain.Proceed(instruction)
		}
	}

	rose.Set(AttributeKey, id)
	if req != nil {
		req.Header.Set(HeaderName, id)
	}

	if w := rose.ResponseWriter(); w != nil {
		w.Header().Set(HeaderName, id)
	}

	return chain.Proceed(instruction)
}

func (e *engine) Destroy() error { return nil }

type spec struct{}

func NewSpec() engines.Spec { return spec{} }

func (spec) Name() string { return Name }

func (spec) CreateEngine(args []any) (routing.Engine, error) {
	if len(args) > 2 {
		return nil, engines.ErrInvalidEngineParameters
	}

	var reuse bool
	if len(args) > 0 {
		r, err := engines.StringArg(args[0])
		if err != nil {
			return nil, err
		}

		reuse = strings.ToLower(r) == ReuseParameterValue
	}

	generator := "standard"
	if len(args) > 1 {
		var err error
		if generator, err = engines.StringArg(args[1]); err != nil {
			return nil, err
		}
	}

	var g Generator
	switch generator {
	case "standard":
		g, _ = NewStandardGenerator(defaultLen)
	case "ulid":
		g = NewULIDGenerator()
	case "uuid":
		g = NewUUIDGenerator()
	default:
		return nil, engines.ErrInvalidEngineParameters
	}

	return New(reuse, g), nil
}
