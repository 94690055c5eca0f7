package engines_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/engines/enginetest"
	"github.com/zalando/rose/metrics/metricstest"
	"github.com/zalando/rose/routing"
)

func TestRegistry(t *testing.T) {
	r := make(engines.Registry)
	r.Register(&enginetest.Spec{SpecName: "b"})
	r.Register(&enginetest.Spec{SpecName: "a"})

	assert.Equal(t, []string{"a", "b"}, r.Names())

	e, err := r.Create("a", []any{"x", 1.0})
	require.NoError(t, err)
	assert.Equal(t, "a", routing.EngineName(e))
	assert.Equal(t, []any{"x", 1.0}, e.(*enginetest.Engine).Args)

	_, err = r.Create("missing", nil)
	assert.ErrorIs(t, err, engines.ErrUnknownEngine)
}

type failingSpec struct{}

func (failingSpec) Name() string { return "failing" }

func (failingSpec) CreateEngine([]any) (routing.Engine, error) {
	return nil, engines.ErrInvalidEngineParameters
}

func TestRegistryCreateFails(t *testing.T) {
	r := make(engines.Registry)
	r.Register(failingSpec{})

	_, err := r.Create("failing", nil)
	assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters)
	assert.Contains(t, err.Error(), "failing")
}

func TestArgs(t *testing.T) {
	s, err := engines.StringArg("foo")
	assert.NoError(t, err)
	assert.Equal(t, "foo", s)

	_, err = engines.StringArg(1)
	assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters)

	i, err := engines.IntArg(3.0)
	assert.NoError(t, err)
	assert.Equal(t, 3, i)

	_, err = engines.IntArg(3.5)
	assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters)

	f, err := engines.Float64Arg(2)
	assert.NoError(t, err)
	assert.Equal(t, 2.0, f)

	d, err := engines.DurationArg("1s")
	assert.NoError(t, err)
	assert.Equal(t, time.Second, d)

	_, err = engines.DurationArg("-1s")
	assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters)

	_, err = engines.DurationArg(true)
	assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters)

	ss, err := engines.StringsArg([]any{"a", "b"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ss)

	_, err = engines.StringsArg([]any{"a", 1})
	assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters)
}

func TestResponse(t *testing.T) {
	rsp := engines.NewResponse(http.StatusTeapot, "short and stout")
	rsp.Header.Set("X-Test", "1")

	w := httptest.NewRecorder()
	require.NoError(t, rsp.Respond(w))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Test"))
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "short and stout", w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, (&engines.Response{}).Respond(w))
	assert.Equal(t, http.StatusOK, w.Code)

	jr, err := engines.NewJSONResponse(http.StatusCreated, map[string]int{"id": 42})
	require.NoError(t, err)
	w = httptest.NewRecorder()
	require.NoError(t, jr.Respond(w))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id": 42}`, w.Body.String())
}

func TestStatusError(t *testing.T) {
	cause := errors.New("no such item")
	err := error(&engines.StatusError{Status: http.StatusNotFound, Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "no such item", err.Error())

	var sc interface{ StatusCode() int }
	require.ErrorAs(t, err, &sc)
	assert.Equal(t, http.StatusNotFound, sc.StatusCode())

	assert.Equal(t, "Bad Gateway", (&engines.StatusError{Status: http.StatusBadGateway}).Error())
}

func TestMeasure(t *testing.T) {
	m := &metricstest.MockMetrics{}
	inner := enginetest.Terminal("invoke", "ok")
	e := engines.Measure(inner, m)
	assert.Equal(t, "invoke", routing.EngineName(e))

	result, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", e)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	_, ok := m.Measure("engine.invoke")
	assert.True(t, ok)

	require.NoError(t, e.Destroy())
	assert.Equal(t, 1, inner.Destroyed())
}
