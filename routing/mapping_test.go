package routing_test

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/rose/logging/loggingtest"
	"github.com/zalando/rose/routing"
)

func noop(name string) routing.Engine {
	return routing.Func(name, func(*routing.Rose, *routing.MatchResult, any, *routing.Chain) (any, error) {
		return name, nil
	})
}

func newMapping(t *testing.T, o routing.Options) *routing.Mapping {
	t.Helper()
	if o.Log == nil {
		l := loggingtest.New()
		t.Cleanup(l.Close)
		o.Log = l
	}

	return routing.New(o)
}

func TestRegistrationErrors(t *testing.T) {
	e := noop("e")
	for _, tt := range []struct {
		name     string
		existing []routing.Route
		route    routing.Route
		want     error
	}{{
		name:  "invalid pattern",
		route: routing.Route{Path: "foo", Engines: []routing.Engine{e}},
		want:  routing.ErrInvalidPattern,
	}, {
		name:     "escaped braces next to variable",
		existing: []routing.Route{{Path: "/items/{id}", Engines: []routing.Engine{e}}},
		route:    routing.Route{Path: "/items/%7Bid%7D", Engines: []routing.Engine{e}},
		want:     routing.ErrInvalidPattern,
	}, {
		name:  "no engines",
		route: routing.Route{Path: "/foo"},
		want:  routing.ErrNoEngines,
	}, {
		name:  "nil engine",
		route: routing.Route{Path: "/foo", Engines: []routing.Engine{e, nil}},
		want:  routing.ErrNoEngines,
	}, {
		name:     "duplicate route",
		existing: []routing.Route{{Method: "GET", Path: "/foo", Engines: []routing.Engine{e}}},
		route:    routing.Route{Method: "get", Path: "/foo/", Engines: []routing.Engine{e}},
		want:     routing.ErrDuplicateRoute,
	}, {
		name:     "duplicate any method",
		existing: []routing.Route{{Path: "/foo", Engines: []routing.Engine{e}}},
		route:    routing.Route{Method: "*", Path: "/foo", Engines: []routing.Engine{e}},
		want:     routing.ErrDuplicateRoute,
	}, {
		name:     "conflicting variables",
		existing: []routing.Route{{Path: "/user/{id}", Engines: []routing.Engine{e}}},
		route:    routing.Route{Path: "/user/{name}/x", Engines: []routing.Engine{e}},
		want:     routing.ErrConflictingSegment,
	}, {
		name:     "conflicting constraints",
		existing: []routing.Route{{Path: "/user/{id:[0-9]+}", Engines: []routing.Engine{e}}},
		route:    routing.Route{Path: "/user/{id}", Engines: []routing.Engine{e}},
		want:     routing.ErrConflictingSegment,
	}, {
		name:     "conflicting catch-all",
		existing: []routing.Route{{Path: "/assets/*path", Engines: []routing.Engine{e}}},
		route:    routing.Route{Path: "/assets/*file", Engines: []routing.Engine{e}},
		want:     routing.ErrConflictingSegment,
	}} {
		t.Run(tt.name, func(t *testing.T) {
			m := newMapping(t, routing.Options{})
			require.NoError(t, m.Register(tt.existing...))

			before := m.Count("", false)
			err := m.Register(tt.route)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, tt.want.(interface{ Code() string }).Code(), routing.DefinitionErrorCode(err))
			assert.Equal(t, before, m.Count("", false), "failed registration changed the tree")
		})
	}
}

func TestLiteralAndVariableSiblingsCoexist(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Add("GET", "/user/list", noop("list")))
	require.NoError(t, m.Add("GET", "/user/{id}", noop("user")))
	require.NoError(t, m.Add("GET", "/user/*rest", noop("rest")))

	root := m.Lookup("/user")
	require.NotNil(t, root)

	var keys []string
	for _, c := range root.Children() {
		keys = append(keys, c.Segment())
	}

	assert.Equal(t, []string{"list", "{id}", "*rest"}, keys)
}

func TestFrozen(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Add("GET", "/a", noop("a")))
	m.Freeze()
	m.Freeze()

	assert.True(t, m.Frozen())
	err := m.Add("GET", "/b", noop("b"))
	assert.True(t, errors.Is(err, routing.ErrFrozen))
	assert.Equal(t, "mapping_frozen", routing.DefinitionErrorCode(err))
	assert.Equal(t, "other", routing.DefinitionErrorCode(errors.New("foo")))
}

func TestResolve(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Register(
		routing.Route{Method: "GET", Path: "/", Engines: []routing.Engine{noop("root")}},
		routing.Route{Method: "GET", Path: "/user/list", Engines: []routing.Engine{noop("list")}},
		routing.Route{Method: "GET", Path: "/user/{id}", Engines: []routing.Engine{noop("user")}},
		routing.Route{Method: "GET", Path: "/user/{id}/posts/{post:[0-9]+}", Engines: []routing.Engine{noop("post")}},
		routing.Route{Method: "GET", Path: "/user/list/archive", Engines: []routing.Engine{noop("archive")}},
		routing.Route{Method: "GET", Path: "/assets/*path", Engines: []routing.Engine{noop("assets")}},
		routing.Route{Method: "GET", Path: "/docs/{page}", Engines: []routing.Engine{noop("page")}},
		routing.Route{Method: "GET", Path: "/docs/*rest", Engines: []routing.Engine{noop("docs")}},
		routing.Route{Method: "GET", Path: "/files/{name}", Engines: []routing.Engine{noop("file")}},
	))
	m.Freeze()

	for _, tt := range []struct {
		path      string
		identity  string
		variables map[string]string
	}{{
		path:     "/",
		identity: "/",
	}, {
		path:     "",
		identity: "/",
	}, {
		path:     "/user/list",
		identity: "/user/list",
	}, {
		path:      "/user/42",
		identity:  "/user/{id}",
		variables: map[string]string{"id": "42"},
	}, {
		path:      "/user/list/posts/7",
		identity:  "/user/{id}/posts/{post:[0-9]+}",
		variables: map[string]string{"id": "list", "post": "7"},
	}, {
		path:     "/user/list/archive",
		identity: "/user/list/archive",
	}, {
		path:      "/assets/css/main.css",
		identity:  "/assets/*path",
		variables: map[string]string{"path": "/css/main.css"},
	}, {
		path:      "/assets",
		identity:  "/assets/*path",
		variables: map[string]string{"path": "/"},
	}, {
		path:      "/assets/",
		identity:  "/assets/*path",
		variables: map[string]string{"path": "/"},
	}, {
		path:      "/docs/intro",
		identity:  "/docs/{page}",
		variables: map[string]string{"page": "intro"},
	}, {
		path:      "/docs/intro/more",
		identity:  "/docs/*rest",
		variables: map[string]string{"rest": "/intro/more"},
	}, {
		path:      "/files/a%20b",
		identity:  "/files/{name}",
		variables: map[string]string{"name": "a b"},
	}} {
		t.Run(tt.path, func(t *testing.T) {
			mr, err := m.Resolve("GET", tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.identity, mr.Resource().Identity())
			assert.True(t, mr.Resource().IsEndResource())

			if tt.variables == nil {
				tt.variables = map[string]string{}
			}

			assert.Equal(t, tt.variables, mr.Variables())
			assert.NotNil(t, mr.Engine())
		})
	}

	for _, p := range []string{
		"/unknown",
		"/user",
		"/user/42/posts/x",
		"/user/42/posts",
		"/user/",
		"/files/a/b",
		"relative",
	} {
		t.Run("not found "+p, func(t *testing.T) {
			_, err := m.Resolve("GET", p)
			assert.True(t, errors.Is(err, routing.ErrNotFound), "got %v", err)
			assert.True(t, errors.Is(err, routing.ErrResolution))
		})
	}
}

func TestResolveTrailingSlash(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Add("GET", "/a", noop("a")))

	_, err := m.Resolve("GET", "/a/")
	assert.True(t, errors.Is(err, routing.ErrNotFound))

	m = newMapping(t, routing.Options{MatchingOptions: routing.IgnoreTrailingSlash})
	require.NoError(t, m.Add("GET", "/a", noop("a")))

	mr, err := m.Resolve("GET", "/a/")
	require.NoError(t, err)
	assert.Equal(t, "/a", mr.Resource().Identity())
}

func TestResolveMethods(t *testing.T) {
	get, post, anyMethod := noop("get"), noop("post"), noop("any")

	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Register(
		routing.Route{Method: "GET", Path: "/items", Engines: []routing.Engine{get}},
		routing.Route{Method: "POST", Path: "/items", Engines: []routing.Engine{post}},
		routing.Route{Method: "PUT", Path: "/items/{id}", Engines: []routing.Engine{post}},
		routing.Route{Path: "/any", Engines: []routing.Engine{anyMethod}},
		routing.Route{Method: "GET", Path: "/any", Engines: []routing.Engine{get}},
	))

	for _, tt := range []struct {
		method, path string
		want         routing.Engine
	}{
		{"GET", "/items", get},
		{"get", "/items", get},
		{"HEAD", "/items", get},
		{"POST", "/items", post},
		{"GET", "/any", get},
		{"DELETE", "/any", anyMethod},
		{"HEAD", "/any", anyMethod},
	} {
		mr, err := m.Resolve(tt.method, tt.path)
		require.NoError(t, err, "%s %s", tt.method, tt.path)
		assert.Same(t, tt.want, mr.Engine(), "%s %s", tt.method, tt.path)
	}

	_, err := m.Resolve("DELETE", "/items")
	var mna *routing.MethodNotAllowedError
	require.True(t, errors.As(err, &mna), "got %v", err)
	assert.Equal(t, []string{http.MethodGet, http.MethodHead, http.MethodPost}, mna.Allowed)
	assert.Equal(t, "DELETE", mna.Method)
	assert.True(t, errors.Is(err, routing.ErrResolution))
	assert.False(t, errors.Is(err, routing.ErrNotFound))

	_, err = m.Resolve("GET", "/items/1")
	require.True(t, errors.As(err, &mna))
	assert.Equal(t, []string{http.MethodPut}, mna.Allowed)
}

func TestResolveNested(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Add("GET", "/tenant/{tenant}/*rest", noop("outer")))

	nested := newMapping(t, routing.Options{})
	require.NoError(t, nested.Add("GET", "/items/{id}", noop("inner")))

	outer, err := m.Resolve("GET", "/tenant/acme/items/7")
	require.NoError(t, err)
	assert.Equal(t, "/items/7", outer.Variable("rest"))

	rest, ok := outer.CatchAllRest()
	require.True(t, ok)
	inner, err := nested.ResolveNested("GET", rest, outer)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tenant": "acme", "rest": "/items/7", "id": "7"}, inner.Variables())

	v, ok := inner.LookupVariable("tenant")
	assert.True(t, ok)
	assert.Equal(t, "acme", v)
	_, ok = inner.LookupVariable("missing")
	assert.False(t, ok)
}

func TestCatchAllRestIsEscaped(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Add("GET", "/files/*path", noop("files")))
	require.NoError(t, m.Add("GET", "/items/{id}", noop("items")))

	mr, err := m.Resolve("GET", "/files/a%2Fb/c%2525d")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c%25d", mr.Variable("path"))

	rest, ok := mr.CatchAllRest()
	assert.True(t, ok)
	assert.Equal(t, "/a%2Fb/c%2525d", rest)

	mr, err = m.Resolve("GET", "/files")
	require.NoError(t, err)
	rest, ok = mr.CatchAllRest()
	assert.True(t, ok)
	assert.Equal(t, "/", rest)

	mr, err = m.Resolve("GET", "/items/1")
	require.NoError(t, err)
	_, ok = mr.CatchAllRest()
	assert.False(t, ok)
}

func TestResolveIsIdempotent(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Add("GET", "/items/{id}", noop("e")))
	m.Freeze()

	first, err := m.Resolve("GET", "/items/42")
	require.NoError(t, err)

	vars := first.Variables()
	vars["id"] = "changed"

	second, err := m.Resolve("GET", "/items/42")
	require.NoError(t, err)
	assert.Same(t, first.Node(), second.Node())
	assert.Equal(t, first.Variables(), second.Variables())
	assert.Equal(t, "42", second.Variable("id"))
}

func TestResolveConcurrently(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Add("GET", "/items/{id}", noop("e")))
	m.Freeze()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mr, err := m.Resolve("GET", "/items/42")
				if assert.NoError(t, err) {
					assert.Equal(t, "42", mr.Variable("id"))
				}
			}
		}()
	}

	wg.Wait()
}

// resolving the exact literal path of any registered literal pattern
// returns the node of that pattern
func TestResolveExactLiteralPaths(t *testing.T) {
	patterns := []string{
		"/",
		"/a",
		"/a/b",
		"/a/b/c",
		"/a/c",
		"/b",
		"/b/a/b/a",
		"/user/list",
		"/user/list/all",
	}

	m := newMapping(t, routing.Options{})
	for _, p := range patterns {
		require.NoError(t, m.Add("GET", p, noop(p)))
	}

	require.NoError(t, m.Add("GET", "/user/{id}", noop("user")))
	m.Freeze()

	for _, p := range patterns {
		mr, err := m.Resolve("GET", p)
		require.NoError(t, err, p)
		assert.Equal(t, p, mr.Resource().Identity())
	}
}

func TestLiteralPrecedence(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Add("GET", "/user/{id}", noop("user")))
	require.NoError(t, m.Add("GET", "/user/list", noop("list")))

	mr, err := m.Resolve("GET", "/user/list")
	require.NoError(t, err)
	assert.Equal(t, "/user/list", mr.Resource().Identity())
	_, ok := mr.LookupVariable("id")
	assert.False(t, ok)
}

func TestIterate(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Register(
		routing.Route{Path: "/b/x", Engines: []routing.Engine{noop("bx")}},
		routing.Route{Path: "/a", Engines: []routing.Engine{noop("a")}},
		routing.Route{Path: "/b/{y}", Engines: []routing.Engine{noop("by")}},
		routing.Route{Path: "/a/z", Engines: []routing.Engine{noop("az")}},
	))

	var first []string
	for n := range m.Iterate() {
		first = append(first, n.Resource().Identity())
	}

	assert.Equal(t, []string{"/", "/b", "/b/x", "/b/{y}", "/a", "/a/z"}, first)

	var second []string
	for n := range m.Iterate() {
		second = append(second, n.Resource().Identity())
	}

	assert.Equal(t, first, second)

	seen := make(map[*routing.Node]int)
	for n := range m.Iterate() {
		seen[n]++
	}

	assert.Len(t, seen, 6)
	for n, c := range seen {
		assert.Equal(t, 1, c, n.String())
	}

	var stopped []string
	for n := range m.Iterate() {
		if len(stopped) == 2 {
			break
		}

		stopped = append(stopped, n.Resource().Identity())
	}

	assert.Equal(t, []string{"/", "/b"}, stopped)
}

func TestCount(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Register(
		routing.Route{Path: "/api/users", Engines: []routing.Engine{noop("users")}},
		routing.Route{Path: "/api/users/{id}", Engines: []routing.Engine{noop("user")}},
		routing.Route{Path: "/api/orders/{id}/items", Engines: []routing.Engine{noop("items")}},
		routing.Route{Path: "/health", Engines: []routing.Engine{noop("health")}},
	))

	assert.Equal(t, 8, m.Count("", false))
	assert.Equal(t, 4, m.Count("", true))
	assert.Equal(t, 3, m.Count("/api/", true))
	assert.Equal(t, 2, m.Count("/api/users", true))
	assert.Equal(t, 6, m.Count("/api", false))
	assert.Equal(t, 0, m.Count("/none", false))
}

func TestNodeRelations(t *testing.T) {
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Register(routing.Route{
		Method:    "GET",
		Path:      "/items/:id",
		Modifiers: []string{"public", "cached"},
		Engines:   []routing.Engine{noop("e")},
	}, routing.Route{
		Method:    "POST",
		Path:      "/items/{id}",
		Modifiers: []string{"admin", "public"},
		Engines:   []routing.Engine{noop("p")},
	}))

	n := m.Lookup("/items/{id}")
	require.NotNil(t, n)
	assert.Same(t, n, m.Lookup("/items/:id"))
	assert.Nil(t, m.Lookup("/items/{other}"))
	assert.Nil(t, m.Lookup("/missing"))
	assert.Nil(t, m.Lookup("invalid"))

	assert.Equal(t, "{id}", n.Segment())
	assert.Same(t, m.Root(), n.Parent().Parent())
	assert.Nil(t, m.Root().Parent())
	assert.Same(t, n, n.Parent().Child("{id}"))
	assert.Equal(t, n.Parent().Resource().Identity()+"/"+n.Segment(), n.Resource().Identity())

	assert.True(t, n.IsEndResource())
	assert.False(t, n.Parent().IsEndResource())
	assert.False(t, n.Parent().Resource().IsEndResource())
	assert.Equal(t, []string{"GET", "POST"}, n.Methods())
	assert.Equal(t, []string{"admin", "cached", "public"}, n.Resource().Modifiers())
	assert.True(t, n.Resource().HasModifier("cached"))
	assert.False(t, n.Resource().HasModifier("private"))
	assert.Nil(t, n.Engines("DELETE"))
	assert.Len(t, n.Engines("post"), 1)
	assert.Equal(t, "/items/{id} (end) [admin,cached,public] GET,POST", n.String())
}

func TestMappingEngines(t *testing.T) {
	shared := noop("shared")
	m := newMapping(t, routing.Options{})
	require.NoError(t, m.Register(
		routing.Route{Path: "/a", Engines: []routing.Engine{shared, noop("a")}},
		routing.Route{Path: "/b", Engines: []routing.Engine{shared}},
		routing.Route{Method: "POST", Path: "/b", Engines: []routing.Engine{shared}},
	))

	var names []string
	for _, e := range m.Engines() {
		names = append(names, routing.EngineName(e))
	}

	assert.Equal(t, []string{"shared", "a"}, names)
}

func TestRegistrationIsLogged(t *testing.T) {
	l := loggingtest.New()
	defer l.Close()

	m := routing.New(routing.Options{Log: l})
	require.NoError(t, m.Add("GET", "/a", noop("a")))
	require.Error(t, m.Add("GET", "/a", noop("a")))
	m.Freeze()

	assert.Equal(t, 1, l.Count("failed to register route GET /a"))
	assert.True(t, slices.ContainsFunc(l.Entries(), func(e string) bool {
		return strings.HasPrefix(e, "mapping frozen, 2 nodes, 1 end resources")
	}))
}
