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
Package script provides the engine running Lua scripts in the chain.

The first argument of the engine is the source of the script, or the path
of a file with the .lua extension. The rest of the arguments are passed to
the script functions as parameters:

	engines:
	- name: lua
	  args:
	  - |
	    function request(ctx, params)
	      if ctx.request.header["X-Token"] ~= params.token then
	        ctx.serve({status_code = 401, body = "unauthorized"})
	      end
	    end
	  - token=secret

The script defines the request function, the response function, or both.
The request function is called before the rest of the chain. When it
calls ctx.serve, the chain is short-circuited with the response. The
response function is called after the rest of the chain returned without
error.

The ctx table contains:

	ctx.request      method, path, url, host, remote_addr, proto,
	                 content_length and the header table
	ctx.vars         the path variables of the match
	ctx.attributes   the request attributes, read and write
	ctx.response     status and the header table of the response
	ctx.serve        function short-circuiting the chain, taking a table
	                 with the status_code, header and body fields

The params table contains the key=value arguments by key, and every
argument by position.

Besides the standard Lua libraries, the base64, json, url and http modules
can be loaded with require(). The available modules and the allowed source
types are set with LuaOptions.
*/
package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const (
	Name = "lua"

	SourceFile   = "file"
	SourceInline = "inline"
	SourceNone   = "none"

	DefaultPoolSize = 16
)

var (
	ErrSourceNotAllowed = errors.New("script source not allowed")
	ErrNoScriptFunction = errors.New("script must define the request or the response function")
)

// LuaOptions configures the scripts.
type LuaOptions struct {

	// Modules enables the listed modules, or only the listed symbols of
	// them in the module.symbol form. When empty, every module is
	// enabled.
	Modules []string

	// Sources lists the allowed source types: file, inline or none. When
	// empty, both files and inline sources are allowed.
	Sources []string

	// PoolSize is the number of idle Lua states kept by each engine.
	// Defaults to DefaultPoolSize.
	PoolSize int
}

type script struct {
	source  string
	proto   *lua.FunctionProto
	modules []string
	params  []string

	hasRequest  bool
	hasResponse bool

	mu     sync.Mutex
	pool   chan *lua.LState
	closed bool
}

func sourceType(source string) string {
	if strings.HasSuffix(source, ".lua") {
		return SourceFile
	}

	return SourceInline
}

func sourceAllowed(sources []string, t string) bool {
	return len(sources) == 0 || slices.Contains(sources, t)
}

func compile(source, t string) (*lua.FunctionProto, error) {
	var (
		r    io.Reader
		name string
	)

	if t == SourceFile {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}

		defer f.Close()
		r, name = bufio.NewReader(f), source
	} else {
		r, name = strings.NewReader(source), "<script>"
	}

	chunk, err := parse.Parse(r, name)
	if err != nil {
		return nil, err
	}

	return lua.Compile(chunk, name)
}

// New creates an engine running the script. The source is either the
// script itself, or the path of a file with the .lua extension.
func New(source string, o LuaOptions, params ...string) (routing.Engine, error) {
	t := sourceType(source)
	if !sourceAllowed(o.Sources, t) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotAllowed, t)
	}

	proto, err := compile(source, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engines.ErrInvalidEngineParameters, err)
	}

	if o.PoolSize <= 0 {
		o.PoolSize = DefaultPoolSize
	}

	s := &script{
		source:  source,
		proto:   proto,
		modules: o.Modules,
		params:  params,
		pool:    make(chan *lua.LState, o.PoolSize),
	}

	L, err := s.newState()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engines.ErrInvalidEngineParameters, err)
	}

	_, s.hasRequest = L.GetGlobal("request").(*lua.LFunction)
	_, s.hasResponse = L.GetGlobal("response").(*lua.LFunction)
	if !s.hasRequest && !s.hasResponse {
		L.Close()
		return nil, fmt.Errorf("%w: %w", engines.ErrInvalidEngineParameters, ErrNoScriptFunction)
	}

	s.putState(L)
	return s, nil
}

func (s *script) newState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	loadModules(L, s.modules)

	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, 0, nil); err != nil {
		L.Close()
		return nil, err
	}

	return L, nil
}

func (s *script) getState() (*lua.LState, error) {
	select {
	case L := <-s.pool:
		return L, nil
	default:
		return s.newState()
	}
}

func (s *script) putState(L *lua.LState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		L.Close()
		return
	}

	select {
	case s.pool <- L:
	default:
		L.Close()
	}
}

func (s *script) paramsTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	for i, p := range s.params {
		if k, v, ok := strings.Cut(p, "="); ok {
			t.RawSetString(k, lua.LString(v))
		}

		t.RawSetInt(i+1, lua.LString(p))
	}

	return t
}

// run calls a script function in a state from the pool. States that
// failed are not reused.
func (s *script) run(name string, c *luaContext) error {
	L, err := s.getState()
	if err != nil {
		return err
	}

	L.SetContext(c.rose.Context())
	err = L.CallByParam(
		lua.P{Fn: L.GetGlobal(name), NRet: 0, Protect: true},
		c.table(L),
		s.paramsTable(L),
	)

	L.RemoveContext()
	if err != nil {
		L.Close()
		return fmt.Errorf("error calling %s from %s: %w", name, s.source, err)
	}

	s.putState(L)
	return nil
}

func (s *script) Name() string { return Name }

func (s *script) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	if s.hasRequest {
		c := newContext(rose, mr, nil)
		if err := s.run("request", c); err != nil {
			return nil, err
		}

		if c.served != nil {
			return c.served, nil
		}
	}

	result, err := chain.Proceed(instruction)
	if err != nil || !s.hasResponse {
		return result, err
	}

	c := newContext(rose, mr, result)
	if err := s.run("response", c); err != nil {
		return nil, err
	}

	if c.served != nil {
		return c.served, nil
	}

	return result, nil
}

// Destroy closes the idle states. The states in use are closed when
// returned.
func (s *script) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for {
		select {
		case L := <-s.pool:
			L.Close()
		default:
			return nil
		}
	}
}

type spec struct {
	options LuaOptions
}

// NewSpec creates the specification of the script engines.
func NewSpec(o LuaOptions) engines.Spec {
	return &spec{options: o}
}

func (s *spec) Name() string { return Name }

func (s *spec) CreateEngine(args []any) (routing.Engine, error) {
	if len(args) == 0 {
		return nil, engines.ErrInvalidEngineParameters
	}

	source, err := engines.StringArg(args[0])
	if err != nil {
		return nil, err
	}

	var params []string
	for _, a := range args[1:] {
		p, err := engines.StringArg(a)
		if err != nil {
			return nil, err
		}

		params = append(params, p)
	}

	return New(source, s.options, params...)
}
