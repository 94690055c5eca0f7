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

package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zalando/rose/logging"
	"github.com/zalando/rose/routing"
)

const (
	AdminPathPrefix = "/rose-info/"
	treePath        = AdminPathPrefix + "tree"
	countPath       = AdminPathPrefix + "count"
)

type admin struct {
	mapping *routing.Mapping
	log     logging.Logger
}

// NewAdminHandler returns the handler of the introspection API of the
// mapping. It is meant for the support listener, and it does not create
// request contexts.
func NewAdminHandler(m *routing.Mapping) http.Handler {
	a := &admin{mapping: m, log: &logging.DefaultLog{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+treePath, a.tree)
	mux.HandleFunc("GET "+countPath, a.count)
	return mux
}

func (a *admin) writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// the status is sent already, only the client can be gone
	if _, err := w.Write(b); err != nil {
		a.log.Debugf("failed to write admin response: %v", err)
	}
}

func (a *admin) tree(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, a.mapping.Describe())
}

func (a *admin) count(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("prefix")

	var endOnly bool
	if q.Has("end") {
		if v := q.Get("end"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "invalid end parameter", http.StatusBadRequest)
				return
			}

			endOnly = b
		} else {
			endOnly = true
		}
	}

	a.writeJSON(w, struct {
		Prefix string `json:"prefix"`
		End    bool   `json:"end"`
		Count  int    `json:"count"`
	}{prefix, endOnly, a.mapping.Count(prefix, endOnly)})
}
