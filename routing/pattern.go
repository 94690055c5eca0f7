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
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type segmentKind int

const (
	literalSegment segmentKind = iota
	variableSegment
	catchAllSegment
)

type segment struct {
	kind segmentKind

	// literal text, or the name of the variable
	text string

	expr string
	rx   *regexp.Regexp
}

// key is the normalized form of the segment, used as the sibling key and
// as the last part of the node identity.
func (s segment) key() string {
	switch s.kind {
	case variableSegment:
		if s.expr != "" {
			return "{" + s.text + ":" + s.expr + "}"
		}

		return "{" + s.text + "}"
	case catchAllSegment:
		return "*" + s.text
	default:
		return s.text
	}
}

func (s segment) accepts(value string) bool {
	if value == "" {
		return false
	}

	return s.rx == nil || s.rx.MatchString(value)
}

func invalidPattern(pattern, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPattern, pattern, fmt.Sprintf(format, args...))
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/{}:*")
}

func parseSegment(pattern, part string) (segment, error) {
	switch {
	case part == "":
		return segment{}, invalidPattern(pattern, "empty segment")
	case part[0] == '*':
		name := part[1:]
		if !validName(name) {
			return segment{}, invalidPattern(pattern, "invalid catch-all name %q", name)
		}

		return segment{kind: catchAllSegment, text: name}, nil
	case part[0] == ':':
		name := part[1:]
		if !validName(name) {
			return segment{}, invalidPattern(pattern, "invalid variable name %q", name)
		}

		return segment{kind: variableSegment, text: name}, nil
	case part[0] == '{':
		if part[len(part)-1] != '}' {
			return segment{}, invalidPattern(pattern, "unterminated variable %q", part)
		}

		name, expr, constrained := strings.Cut(part[1:len(part)-1], ":")
		if catchAll, ok := strings.CutSuffix(name, "*"); ok && !constrained {
			if !validName(catchAll) {
				return segment{}, invalidPattern(pattern, "invalid catch-all name %q", catchAll)
			}

			return segment{kind: catchAllSegment, text: catchAll}, nil
		}

		if !validName(name) {
			return segment{}, invalidPattern(pattern, "invalid variable name %q", name)
		}

		s := segment{kind: variableSegment, text: name}
		if constrained {
			if expr == "" {
				return segment{}, invalidPattern(pattern, "empty constraint for %q", name)
			}

			rx, err := regexp.Compile("^(?:" + expr + ")$")
			if err != nil {
				return segment{}, invalidPattern(pattern, "invalid constraint for %q: %v", name, err)
			}

			s.expr = expr
			s.rx = rx
		}

		return s, nil
	case strings.ContainsAny(part, "{}*:"):
		return segment{}, invalidPattern(pattern, "* : { or } in the middle of segment %q", part)
	default:
		text, err := url.PathUnescape(part)
		if err != nil {
			return segment{}, invalidPattern(pattern, "invalid escaping in %q", part)
		}

		// would be indistinguishable from a variable or catch-all in the
		// identity of the node
		if strings.ContainsAny(text, "{}*:") {
			return segment{}, invalidPattern(pattern, "escaped * : { or } in segment %q", part)
		}

		return segment{kind: literalSegment, text: text}, nil
	}
}

// parsePattern splits a pattern into segments. The root pattern, "/",
// has no segments. A trailing slash is ignored.
func parsePattern(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, invalidPattern(pattern, "must start with /")
	}

	p := pattern
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}

	if p == "/" {
		return nil, nil
	}

	parts := strings.Split(p[1:], "/")
	segments := make([]segment, 0, len(parts))
	names := make(map[string]bool)
	for i, part := range parts {
		s, err := parseSegment(pattern, part)
		if err != nil {
			return nil, err
		}

		if s.kind == catchAllSegment && i != len(parts)-1 {
			return nil, invalidPattern(pattern, "catch-all must be the last segment")
		}

		if s.kind != literalSegment {
			if names[s.text] {
				return nil, invalidPattern(pattern, "duplicate variable %q", s.text)
			}

			names[s.text] = true
		}

		segments = append(segments, s)
	}

	return segments, nil
}

func joinIdentity(parent, key string) string {
	if parent == "/" {
		return "/" + key
	}

	return parent + "/" + key
}

func unescapeSegment(s string) string {
	u, err := url.PathUnescape(s)
	if err != nil {
		return s
	}

	return u
}
