package invoke_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/rose/engines"
	"github.com/zalando/rose/engines/enginetest"
	"github.com/zalando/rose/engines/invoke"
	"github.com/zalando/rose/routing"
)

func getItem(rose *routing.Rose, mr *routing.MatchResult, _ any) (any, error) {
	return map[string]string{"id": mr.Variable("id"), "method": rose.Method()}, nil
}

func TestInvoke(t *testing.T) {
	table := invoke.NewTable()
	table.Register("getItem", getItem)

	spec := invoke.NewSpec(table)
	assert.Equal(t, invoke.Name, spec.Name())

	e, err := spec.CreateEngine([]any{"getItem"})
	require.NoError(t, err)
	assert.Equal(t, "invoke:getItem", routing.EngineName(e))

	next := enginetest.Recording("next", &enginetest.Log{})
	result, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/items/42", nil), "/items/{id}", e, next)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "42", "method": "GET"}, result)
	assert.Zero(t, next.Invoked(), "invoke is terminal")
}

func TestInvokeError(t *testing.T) {
	errFailed := errors.New("failed")
	e := invoke.New("failing", func(*routing.Rose, *routing.MatchResult, any) (any, error) {
		return nil, errFailed
	})

	_, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", e)
	assert.ErrorIs(t, err, errFailed)

	var ie *routing.InvocationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "invoke:failing", ie.Engine)
}

func TestInvokeSpecArgs(t *testing.T) {
	spec := invoke.NewSpec(invoke.NewTable())
	for _, args := range [][]any{nil, {1}, {"missing"}, {"a", "b"}} {
		_, err := spec.CreateEngine(args)
		assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters, "%v", args)
	}
}

func TestRespond(t *testing.T) {
	spec := invoke.NewRespondSpec()
	for _, tt := range []struct {
		args        []any
		status      int
		body        string
		contentType string
	}{
		{[]any{404.0}, 404, "Not Found", "text/plain; charset=utf-8"},
		{[]any{418, "teapot"}, 418, "teapot", "text/plain; charset=utf-8"},
		{[]any{200, `{"ok":true}`, "application/json"}, 200, `{"ok":true}`, "application/json"},
		{[]any{204, ""}, 204, "", ""},
	} {
		e, err := spec.CreateEngine(tt.args)
		require.NoError(t, err)

		result, _, err := enginetest.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), "", e)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		require.NoError(t, result.(*engines.Response).Respond(w))
		assert.Equal(t, tt.status, w.Code)
		assert.Equal(t, tt.body, w.Body.String())
		assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
	}

	for _, args := range [][]any{nil, {"200"}, {99}, {600}, {200, 1}, {200, "", 1}, {200, "", "", ""}} {
		_, err := spec.CreateEngine(args)
		assert.ErrorIs(t, err, engines.ErrInvalidEngineParameters, "%v", args)
	}

}
