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

package script

import (
	"fmt"
	"net/http"

	lua "github.com/yuin/gopher-lua"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

// luaContext exposes the request context to a single script call.
type luaContext struct {
	rose   *routing.Rose
	match  *routing.MatchResult
	result any

	requestHeader  http.Header
	responseHeader http.Header
	served         *engines.Response
}

func newContext(rose *routing.Rose, mr *routing.MatchResult, result any) *luaContext {
	c := &luaContext{rose: rose, match: mr, result: result}

	c.requestHeader = make(http.Header)
	if req := rose.Request(); req != nil {
		c.requestHeader = req.Header
	}

	c.responseHeader = make(http.Header)
	if rsp, ok := result.(*engines.Response); ok {
		if rsp.Header == nil {
			rsp.Header = make(http.Header)
		}

		c.responseHeader = rsp.Header
	} else if w := rose.ResponseWriter(); w != nil {
		c.responseHeader = w.Header()
	}

	return c
}

func (c *luaContext) table(L *lua.LState) *lua.LTable {
	req := proxyTable(L, c.getRequestValue, nil)
	req.RawSetString("header", headerTable(L, c.requestHeader))

	rsp := proxyTable(L, c.getResponseValue, c.setResponseValue)
	rsp.RawSetString("header", headerTable(L, c.responseHeader))

	vars := L.NewTable()
	for k, v := range c.match.Variables() {
		vars.RawSetString(k, lua.LString(v))
	}

	t := L.NewTable()
	t.RawSetString("request", req)
	t.RawSetString("response", rsp)
	t.RawSetString("vars", vars)
	t.RawSetString("attributes", proxyTable(L, c.getAttribute, c.setAttribute))
	t.RawSetString("serve", L.NewFunction(c.serve))
	return t
}

// proxyTable returns a table delegating the reads, and the writes when
// set is not nil, to the functions.
func proxyTable(L *lua.LState, get, set lua.LGFunction) *lua.LTable {
	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(get))
	if set != nil {
		mt.RawSetString("__newindex", L.NewFunction(set))
	}

	t := L.NewTable()
	L.SetMetatable(t, mt)
	return t
}

// headerTable returns a table reading and writing the header fields. An
// empty or nil value deletes the field.
func headerTable(L *lua.LState, h http.Header) *lua.LTable {
	return proxyTable(
		L,
		func(L *lua.LState) int {
			L.Push(lua.LString(h.Get(L.CheckString(2))))
			return 1
		},
		func(L *lua.LState) int {
			name := L.CheckString(2)
			v := L.Get(3)
			if v == lua.LNil || v.String() == "" {
				h.Del(name)
				return 0
			}

			h.Set(name, v.String())
			return 0
		},
	)
}

func (c *luaContext) getRequestValue(L *lua.LState) int {
	var v lua.LValue = lua.LNil
	req := c.rose.Request()
	switch L.CheckString(2) {
	case "method":
		v = lua.LString(c.rose.Method())
	case "path":
		v = lua.LString(c.rose.Path())
	case "url":
		if req != nil {
			v = lua.LString(req.URL.String())
		}
	case "host":
		if req != nil {
			v = lua.LString(req.Host)
		}
	case "remote_addr":
		if req != nil {
			v = lua.LString(req.RemoteAddr)
		}
	case "proto":
		if req != nil {
			v = lua.LString(req.Proto)
		}
	case "content_length":
		if req != nil {
			v = lua.LNumber(req.ContentLength)
		}
	}

	L.Push(v)
	return 1
}

func (c *luaContext) getResponseValue(L *lua.LState) int {
	var v lua.LValue = lua.LNil
	if rsp, ok := c.result.(*engines.Response); ok && L.CheckString(2) == "status" {
		status := rsp.Status
		if status == 0 {
			status = http.StatusOK
		}

		v = lua.LNumber(status)
	}

	L.Push(v)
	return 1
}

// setResponseValue changes the status of the responses returned by the
// chain. Other results have no status to change.
func (c *luaContext) setResponseValue(L *lua.LState) int {
	if L.CheckString(2) != "status" {
		return 0
	}

	if rsp, ok := c.result.(*engines.Response); ok {
		rsp.Status = L.CheckInt(3)
	}

	return 0
}

func toLua(v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(v)
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case fmt.Stringer:
		return lua.LString(v.String())
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

func (c *luaContext) getAttribute(L *lua.LState) int {
	v, _ := c.rose.Get(L.CheckString(2))
	L.Push(toLua(v))
	return 1
}

func (c *luaContext) setAttribute(L *lua.LState) int {
	key := L.CheckString(2)
	switch v := L.Get(3).(type) {
	case lua.LString:
		c.rose.Set(key, string(v))
	case lua.LNumber:
		c.rose.Set(key, float64(v))
	case lua.LBool:
		c.rose.Set(key, bool(v))
	default:
		if v == lua.LNil {
			c.rose.Set(key, nil)
		} else {
			c.rose.Set(key, v.String())
		}
	}

	return 0
}

func (c *luaContext) serve(L *lua.LState) int {
	t := L.CheckTable(1)
	rsp := &engines.Response{Status: http.StatusOK, Header: make(http.Header)}
	if status, ok := t.RawGetString("status_code").(lua.LNumber); ok {
		rsp.Status = int(status)
	}

	if h, ok := t.RawGetString("header").(*lua.LTable); ok {
		h.ForEach(func(k, v lua.LValue) {
			rsp.Header.Set(k.String(), v.String())
		})
	}

	if body := t.RawGetString("body"); body != lua.LNil {
		rsp.Body = []byte(body.String())
	}

	c.served = rsp
	return 0
}
