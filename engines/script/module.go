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
	"net/http"
	"strings"
	"time"

	"github.com/cjoudrey/gluahttp"
	"github.com/cjoudrey/gluaurl"
	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
	luajson "layeh.com/gopher-json"

	"github.com/zalando/rose/engines/script/base64"
)

type luaModule struct {
	name   string
	loader lua.LGFunction

	disabledSymbols []string
}

var standardModules = []luaModule{
	// package and base first, see lua.LState.OpenLibs()
	{lua.LoadLibName, lua.OpenPackage, nil},
	{lua.BaseLibName, lua.OpenBase, nil},
	{lua.TabLibName, lua.OpenTable, nil},
	{lua.IoLibName, lua.OpenIo, nil},
	{lua.OsLibName, lua.OpenOs, nil},
	{lua.StringLibName, lua.OpenString, nil},
	{lua.MathLibName, lua.OpenMath, nil},
	{lua.DebugLibName, lua.OpenDebug, nil},
	{lua.ChannelLibName, lua.OpenChannel, nil},
	{lua.CoroutineLibName, lua.OpenCoroutine, nil},
}

// available with require()
var additionalModules = []luaModule{
	{"base64", base64.Loader, nil},
	{"json", luajson.Loader, nil},
	{"url", gluaurl.Loader, nil},
	{"http", gluahttp.NewHttpModule(&http.Client{}).Loader, nil},
}

// load loads a standard module, see lua.LState.OpenLibs()
func (m luaModule) load(L *lua.LState) {
	L.Push(L.NewFunction(m.loader))
	L.Push(lua.LString(m.name))
	L.Call(1, 0)

	if m.name == lua.BaseLibName {
		L.SetGlobal("print", L.NewFunction(printToLog))
		L.SetGlobal("sleep", L.NewFunction(sleep))
	}

	if len(m.disabledSymbols) > 0 {
		st := m.table(L)
		for _, name := range m.disabledSymbols {
			st.RawSetString(name, lua.LNil)
		}
	}
}

// withSymbols returns a copy of the module with only the enabled symbols.
func (m luaModule) withSymbols(L *lua.LState, enabledSymbols []string) luaModule {
	// gopher-lua cannot load selected symbols, so the disabled ones are
	// collected as the difference of all and the enabled symbols
	allSymbols := make(map[string]struct{})

	m.load(L)
	m.table(L).ForEach(func(k, _ lua.LValue) {
		if name, ok := k.(lua.LString); ok {
			allSymbols[name.String()] = struct{}{}
		}
	})

	for _, s := range enabledSymbols {
		delete(allSymbols, s)
	}

	result := luaModule{name: m.name, loader: m.loader}
	for s := range allSymbols {
		result.disabledSymbols = append(result.disabledSymbols, s)
	}

	return result
}

func (m luaModule) table(L *lua.LState) *lua.LTable {
	name := m.name
	if m.name == lua.BaseLibName {
		name = "_G"
	}

	return L.GetGlobal(name).(*lua.LTable)
}

func (m luaModule) preload(L *lua.LState) {
	L.PreloadModule(m.name, m.loader)
}

// loadModules loads the enabled modules. When none is configured, every
// module is loaded. The additional modules require the package module.
func loadModules(L *lua.LState, modules []string) {
	if len(modules) == 0 {
		for _, m := range standardModules {
			m.load(L)
		}

		for _, m := range additionalModules {
			m.preload(L)
		}

		return
	}

	config := moduleConfig(modules)
	for _, m := range standardModules {
		symbols, ok := config[m.name]
		if !ok {
			continue
		}

		if len(symbols) > 0 {
			m = m.withSymbols(L, symbols)
		}

		m.load(L)
	}

	if _, ok := config[lua.LoadLibName]; !ok {
		return
	}

	for _, m := range additionalModules {
		if _, ok := config[m.name]; ok {
			m.preload(L)
		}
	}
}

func printToLog(L *lua.LState) int {
	top := L.GetTop()
	args := make([]any, 0, top)
	for i := 1; i <= top; i++ {
		args = append(args, L.ToStringMeta(L.Get(i)).String())
	}

	log.Print(args...)
	return 0
}

func sleep(L *lua.LState) int {
	time.Sleep(time.Duration(L.CheckInt64(1)) * time.Millisecond)
	return 0
}

// moduleConfig maps the module names to the enabled symbols, from the
// module or module.symbol entries. An empty list enables every symbol.
func moduleConfig(modules []string) map[string][]string {
	config := make(map[string][]string)
	for _, m := range modules {
		if module, symbol, found := strings.Cut(m, "."); found {
			config[module] = append(config[module], symbol)
		} else if _, ok := config[module]; !ok {
			config[module] = []string{}
		}
	}

	return config
}
