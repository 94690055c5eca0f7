package lookup_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/rose/engines/enginetest"
	"github.com/zalando/rose/engines/lookup"
	"github.com/zalando/rose/routing"
)

func nestedMapping(t *testing.T, engines ...routing.Engine) *routing.Mapping {
	m := routing.New(routing.Options{})
	require.NoError(t, m.Add("GET", "/items/{id}", engines...))
	require.NoError(t, m.Add("GET", "/", enginetest.Terminal("index", "index")))
	m.Freeze()
	return m
}

func TestLookup(t *testing.T) {
	var got map[string]string
	capture := routing.Func("capture", func(rose *routing.Rose, mr *routing.MatchResult, _ any, _ *routing.Chain) (any, error) {
		got = mr.Variables()
		return mr.Resource().Identity(), nil
	})

	l := &enginetest.Log{}
	nested := nestedMapping(t, enginetest.Recording("nested", l), capture)
	e := lookup.New(nested)

	result, rose, err := enginetest.Serve(
		httptest.NewRecorder(),
		httptest.NewRequest("GET", "/tenants/acme/api/items/42", nil),
		"/tenants/{tenant}/api/*rest",
		enginetest.Recording("outer", l), e,
	)

	require.NoError(t, err)
	assert.Equal(t, "/items/{id}", result)
	assert.Equal(t, map[string]string{"tenant": "acme", "id": "42", "rest": "/items/42"}, got)
	assert.Equal(t, []string{"outer", "nested", "nested:after", "outer:after"}, l.Entries())

	nmr, ok := rose.Get(lookup.KeyNestedMatch)
	require.True(t, ok)
	assert.Equal(t, "/items/{id}", nmr.(*routing.MatchResult).Resource().Identity())
}

func TestLookupEmptyRest(t *testing.T) {
	e := lookup.New(nestedMapping(t, enginetest.Terminal("item", "item")))

	result, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil), "/api/*rest", e)
	require.NoError(t, err)
	assert.Equal(t, "index", result)
}

func TestLookupFailures(t *testing.T) {
	e := lookup.New(nestedMapping(t, enginetest.Terminal("item", "item")))

	_, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/missing", nil), "/api/*rest", e)
	assert.ErrorIs(t, err, routing.ErrNotFound)

	_, _, err = enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/items/1", nil), "/api/*rest", e)
	var mna *routing.MethodNotAllowedError
	require.ErrorAs(t, err, &mna)
	assert.Equal(t, []string{"GET", "HEAD"}, mna.Allowed)

	_, _, err = enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil), "/api", e)
	assert.ErrorContains(t, err, "without catch-all")
}

func TestLookupDestroysNested(t *testing.T) {
	item := enginetest.Terminal("item", "item")
	e := lookup.New(nestedMapping(t, item))

	require.NoError(t, e.Destroy())
	require.NoError(t, e.Destroy())
	assert.Equal(t, 1, item.Destroyed())
}

func TestLookupEscapedSegments(t *testing.T) {
	capture := routing.Func("capture", func(_ *routing.Rose, mr *routing.MatchResult, _ any, _ *routing.Chain) (any, error) {
		return mr.Variable("id"), nil
	})

	e := lookup.New(nestedMapping(t, capture))
	for _, tt := range []struct {
		path string
		id   string
	}{
		{"/api/items/a%2525b", "a%25b"},
		{"/api/items/a%2Fb", "a/b"},
		{"/api/items/a%20b", "a b"},
	} {
		t.Run(tt.path, func(t *testing.T) {
			nested, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil), "/api/*rest", e)
			require.NoError(t, err)
			assert.Equal(t, tt.id, nested)

			// the same as resolving the path directly
			direct, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil), "/api/items/{id}", capture)
			require.NoError(t, err)
			assert.Equal(t, direct, nested)
		})
	}
}

func TestDestroySharedWithNested(t *testing.T) {
	shared := enginetest.Terminal("shared", "shared")
	nestedOnly := enginetest.Terminal("nestedOnly", "nestedOnly")

	inner := routing.New(routing.Options{})
	require.NoError(t, inner.Add("GET", "/x", shared))
	require.NoError(t, inner.Add("GET", "/y", nestedOnly))

	nested := routing.New(routing.Options{})
	require.NoError(t, nested.Add("GET", "/x", shared))
	require.NoError(t, nested.Add("GET", "/inner/*rest", lookup.New(inner)))

	outer := routing.New(routing.Options{})
	require.NoError(t, outer.Add("GET", "/a", shared))
	require.NoError(t, outer.Add("GET", "/n/*rest", lookup.New(nested)))

	require.NoError(t, outer.Destroy())
	assert.Equal(t, 1, shared.Destroyed())
	assert.Equal(t, 1, nestedOnly.Destroyed())

	require.NoError(t, outer.Destroy())
	require.NoError(t, nested.Destroy())
	assert.Equal(t, 1, shared.Destroyed())
	assert.Equal(t, 1, nestedOnly.Destroyed())
	assert.True(t, nested.Frozen())
}
