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
Package compress provides the engine compressing what the rest of the
chain and the request handler write to the response.

The engine checks the Accept-Encoding header of the request, and
supports br, gzip and deflate, preferring the highest quality value. The
response is compressed when it has no Content-Encoding, its Cache-Control
does not contain no-transform, and its Content-Type is one of the
compressed MIME types.

The default MIME types are: text/plain, text/html, text/css,
text/javascript, application/json, application/javascript,
application/xml and image/svg+xml. The arguments replace them, or extend
them when the first one is "...". An optional leading number sets the
compression level, 1 (fastest) to 9 (best):

	engines:
	- name: compress
	  args: [6, "...", "application/yaml"]

When compressing, the Content-Length header is removed, and Vary:
Accept-Encoding is set.
*/
package compress

import (
	"io"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/routing"
)

const (
	Name = "compress"

	DefaultLevel = 6
)

var supportedEncodings = []string{"br", "gzip", "deflate"}

var defaultMIME = []string{
	"text/plain",
	"text/html",
	"text/css",
	"text/javascript",
	"application/json",
	"application/javascript",
	"application/xml",
	"image/svg+xml",
}

type encoding struct {
	name string
	q    float64
}

// acceptedEncoding returns the supported encoding with the highest
// quality, or empty. * is ignored.
func acceptedEncoding(r *http.Request) string {
	var encs []encoding
	for _, s := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, params, _ := strings.Cut(s, ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if !slices.Contains(supportedEncodings, name) {
			continue
		}

		enc := encoding{name: name, q: 1}
		for _, p := range strings.Split(params, ";") {
			p = strings.TrimSpace(p)
			if v, ok := strings.CutPrefix(p, "q="); ok {
				if q, err := strconv.ParseFloat(v, 64); err == nil {
					enc.q = q
				}

				break
			}
		}

		if enc.q > 0 {
			encs = append(encs, enc)
		}
	}

	if len(encs) == 0 {
		return ""
	}

	sort.SliceStable(encs, func(i, j int) bool { return encs[i].q > encs[j].q })
	return encs[0].name
}

func canEncode(h http.Header, mime []string) bool {
	if ce := h.Get("Content-Encoding"); ce != "" && ce != "identity" {
		return false
	}

	for _, cc := range strings.Split(h.Get("Cache-Control"), ",") {
		if strings.ToLower(strings.TrimSpace(cc)) == "no-transform" {
			return false
		}
	}

	ct, _, _ := strings.Cut(h.Get("Content-Type"), ";")
	return slices.Contains(mime, strings.TrimSpace(ct))
}

func newEncoder(enc string, level int, w io.Writer) io.WriteCloser {
	switch enc {
	case "br":
		return brotli.NewWriterLevel(w, level)
	case "gzip":
		// the level is validated when creating the engine
		gw, _ := gzip.NewWriterLevel(w, level)
		return gw
	default:
		fw, _ := flate.NewWriter(w, level)
		return fw
	}
}

type engine struct {
	level int
	mime  []string
}

// New creates a compress engine. When mime is empty, the default MIME
// types are compressed.
func New(level int, mime ...string) routing.Engine {
	if len(mime) == 0 {
		mime = defaultMIME
	}

	return &engine{level: level, mime: mime}
}

func (e *engine) Name() string { return Name }

func (e *engine) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	req, w := rose.Request(), rose.ResponseWriter()
	if req == nil || w == nil {
		return chain.Proceed(instruction)
	}

	enc := acceptedEncoding(req)
	if enc == "" {
		return chain.Proceed(instruction)
	}

	cw := &writer{ResponseWriter: w, encoding: enc, level: e.level, mime: e.mime}
	rose.SetResponseWriter(cw)
	rose.AfterCompletion(func(error) { cw.Close() })
	return chain.Proceed(instruction)
}

func (e *engine) Destroy() error { return nil }

type spec struct{}

func NewSpec() engines.Spec { return spec{} }

func (spec) Name() string { return Name }

func (spec) CreateEngine(args []any) (routing.Engine, error) {
	level := DefaultLevel
	if len(args) > 0 {
		if _, isString := args[0].(string); !isString {
			l, err := engines.IntArg(args[0])
			if err != nil {
				return nil, err
			}

			if l < 1 || l > 9 {
				return nil, engines.ErrInvalidEngineParameters
			}

			level = l
			args = args[1:]
		}
	}

	var mime []string
	if len(args) > 0 && args[0] == "..." {
		mime = slices.Clone(defaultMIME)
		args = args[1:]
	}

	for _, a := range args {
		s, err := engines.StringArg(a)
		if err != nil {
			return nil, err
		}

		mime = append(mime, s)
	}

	return New(level, mime...), nil
}
