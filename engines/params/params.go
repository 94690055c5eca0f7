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

/*
Package params provides the engine converting the path variables of the
match to typed request attributes.

The arguments are pairs of variable names and types:

	engines:
	- name: params
	  args: [id, int, owner, uuid]

Supported types: string, int, bool and uuid. When a variable is missing
or cannot be converted, the engine short-circuits the chain with a 400
Bad Request response.

The converted values are available for the engines invoked later:

	id, ok := params.Get[int](rose, "id")
*/
package params

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const Name = "params"

type Type string

const (
	String Type = "string"
	Int    Type = "int"
	Bool   Type = "bool"
	UUID   Type = "uuid"
)

// Param declares the type of a path variable.
type Param struct {
	Name string
	Type Type
}

type engine struct {
	params []Param
}

// New creates an engine converting the declared variables.
func New(params ...Param) (routing.Engine, error) {
	for _, p := range params {
		switch p.Type {
		case String, Int, Bool, UUID:
		default:
			return nil, fmt.Errorf("%w: unsupported type for %s: %s", engines.ErrInvalidEngineParameters, p.Name, p.Type)
		}
	}

	return &engine{params: params}, nil
}

// Key returns the request attribute key of a converted variable.
func Key(name string) string { return "param:" + name }

// Get returns the converted value of a variable.
func Get[V any](rose *routing.Rose, name string) (V, bool) {
	var zero V
	v, ok := rose.Get(Key(name))
	if !ok {
		return zero, false
	}

	tv, ok := v.(V)
	return tv, ok
}

func convert(t Type, value string) (any, error) {
	switch t {
	case Int:
		return strconv.Atoi(value)
	case Bool:
		return strconv.ParseBool(value)
	case UUID:
		return uuid.Parse(value)
	default:
		return value, nil
	}
}

func (e *engine) Name() string { return Name }

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	for _, p := range e.params {
		value, ok := mr.LookupVariable(p.Name)
		if !ok {
			return engines.NewResponse(http.StatusBadRequest, fmt.Sprintf("missing parameter: %s", p.Name)), nil
		}

		v, err := convert(p.Type, value)
		if err != nil {
			return engines.NewResponse(http.StatusBadRequest, fmt.Sprintf("invalid parameter %s, expected %s", p.Name, p.Type)), nil
		}

		rose.Set(Key(p.Name), v)
	}

	return chain.Proceed(instruction)
}

func (e *engine) Destroy() error { return nil }

type spec struct{}

func NewSpec() engines.Spec { return spec{} }

func (spec) Name() string { return Name }

func (spec) CreateEngine(args []any) (routing.Engine, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, engines.ErrInvalidEngineParameters
	}

	var params []Param
	for i := 0; i < len(args); i += 2 {
		name, err := engines.StringArg(args[i])
		if err != nil {
			return nil, err
		}

		t, err := engines.StringArg(args[i+1])
		if err != nil {
			return nil, err
		}

		params = append(params, Param{Name: name, Type: Type(t)})
	}

	return New(params...)
}
