package interceptor_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/engines/enginetest"
	"github.com/zalando/rose/engines/interceptor"
	"github.com/zalando/rose/routing"
)

type recorder struct {
	events []string
}

func (r *recorder) interceptor(name string, deny bool) interceptor.Interceptor {
	return interceptor.Funcs{
		BeforeFunc: func(*routing.Rose, *routing.MatchResult) (bool, any, error) {
			r.events = append(r.events, "before:"+name)
			return !deny, nil, nil
		},
		AfterFunc: func(_ *routing.Rose, _ *routing.MatchResult, result any) (any, error) {
			r.events = append(r.events, "after:"+name)
			return result.(string) + "+" + name, nil
		},
		AfterCompletionFunc: func(_ *routing.Rose, _ *routing.MatchResult, err error) {
			r.events = append(r.events, "completion:"+name)
		},
	}
}

func TestInterceptors(t *testing.T) {
	r := &recorder{}
	e := interceptor.New(r.interceptor("auth", false), r.interceptor("audit", false))

	result, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", e, enginetest.Terminal("handler", "result"))
	require.NoError(t, err)
	assert.Equal(t, "result+audit+auth", result)
	assert.Equal(t, []string{
		"before:auth",
		"before:audit",
		"after:audit",
		"after:auth",
		"completion:audit",
		"completion:auth",
	}, r.events)
}

func TestInterceptorDeny(t *testing.T) {
	r := &recorder{}
	next := enginetest.Terminal("handler", "result")
	e := interceptor.New(r.interceptor("auth", true), r.interceptor("audit", false))

	result, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", e, next)
	require.NoError(t, err)

	rsp, ok := result.(*engines.Response)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, rsp.Status)
	assert.Zero(t, next.Invoked())
	assert.Equal(t, []string{"before:auth", "completion:auth"}, r.events)
}

func TestInterceptorDenyWithResult(t *testing.T) {
	deny := interceptor.Funcs{BeforeFunc: func(*routing.Rose, *routing.MatchResult) (bool, any, error) {
		return false, engines.StatusText(http.StatusUnauthorized), nil
	}}

	result, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", interceptor.New(deny), enginetest.Terminal("handler", "result"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, result.(*engines.Response).Status)
}

func TestInterceptorErrors(t *testing.T) {
	errFailed := errors.New("failed")
	var completionErr error
	i := interceptor.Funcs{AfterCompletionFunc: func(_ *routing.Rose, _ *routing.MatchResult, err error) {
		completionErr = err
	}}

	_, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", interceptor.New(i), enginetest.Failing("handler", errFailed))
	assert.ErrorIs(t, err, errFailed)
	assert.ErrorIs(t, completionErr, errFailed)

	failing := interceptor.Funcs{BeforeFunc: func(*routing.Rose, *routing.MatchResult) (bool, any, error) {
		return false, nil, errFailed
	}}

	_, _, err = enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", interceptor.New(failing), enginetest.Terminal("handler", "result"))
	assert.ErrorIs(t, err, errFailed)
}

func TestInterceptorSpec(t *testing.T) {
	table := interceptor.NewTable()
	table.Register("noop", interceptor.Funcs{})
	spec := interceptor.NewSpec(table)

	e, err := spec.CreateEngine([]any{"noop", "noop"})
	require.NoError(t, err)

	result, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", e, enginetest.Terminal("handler", "result"))
	require.NoError(t, err)
	assert.Equal(t, "result", result)

	for _, args := range [][]any{nil, {1}, {"missing"}} {
		_, err := spec.CreateEngine(args)
		assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters, "%v", args)
	}
}
