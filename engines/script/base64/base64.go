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

// Package base64 provides the base64 Lua module of the scripts.
package base64

import (
	"encoding/base64"

	lua "github.com/yuin/gopher-lua"
)

// Loader loads the module with the encode and decode functions, using the
// standard encoding. The URL safe variants are available as url_encode
// and url_decode.
func Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"encode":     encoder(base64.StdEncoding),
		"decode":     decoder(base64.StdEncoding),
		"url_encode": encoder(base64.URLEncoding),
		"url_decode": decoder(base64.URLEncoding),
	})

	L.Push(mod)
	return 1
}

func encoder(enc *base64.Encoding) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(lua.LString(enc.EncodeToString([]byte(L.CheckString(1)))))
		return 1
	}
}

// the decoding functions return nil and the error message on failure
func decoder(enc *base64.Encoding) lua.LGFunction {
	return func(L *lua.LState) int {
		b, err := enc.DecodeString(L.CheckString(1))
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}

		L.Push(lua.LString(b))
		return 1
	}
}
