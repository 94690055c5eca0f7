package logging_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/rose/logging"
)

func TestDefaultLog(t *testing.T) {
	buf := &bytes.Buffer{}
	defer logrus.SetOutput(logrus.StandardLogger().Out)
	logrus.SetOutput(buf)
	defer logrus.SetLevel(logrus.GetLevel())
	logrus.SetLevel(logrus.DebugLevel)

	log := &logging.DefaultLog{}
	for _, tc := range []struct {
		log  func(string, ...any)
		want string
	}{
		{log.Errorf, "level=error"},
		{log.Warnf, "level=warning"},
		{log.Infof, "level=info"},
		{log.Debugf, "level=debug"},
	} {
		buf.Reset()
		tc.log("message: %s", "foo")
		s := buf.String()
		assert.Contains(t, s, tc.want)
		assert.Contains(t, s, "message: foo")
	}
}

func TestFieldLog(t *testing.T) {
	buf := &bytes.Buffer{}
	defer logrus.SetOutput(logrus.StandardLogger().Out)
	logrus.SetOutput(buf)

	logging.WithFields(map[string]any{"component": "routing"}).Warn("conflict")
	assert.Contains(t, buf.String(), "component=routing")
	assert.Contains(t, buf.String(), "conflict")
}

func TestApplicationLogPrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := logrus.StandardLogger().Formatter
	out := logrus.StandardLogger().Out
	defer func() {
		logrus.SetFormatter(formatter)
		logrus.SetOutput(out)
	}()

	logging.Init(logging.Options{
		ApplicationLogPrefix: "[APP]",
		ApplicationLogOutput: buf,
		AccessLogDisabled:    true,
	})

	logrus.Info("started")
	assert.True(t, strings.HasPrefix(buf.String(), "[APP]"), buf.String())
}

func TestAccessLog(t *testing.T) {
	buf := &bytes.Buffer{}
	logging.Init(logging.Options{AccessLogOutput: buf, AccessLogStripQuery: true})
	defer logging.Init(logging.Options{AccessLogDisabled: true})

	r := httptest.NewRequest("GET", "/items/42?secret=1", nil)
	r.RemoteAddr = "192.168.0.1:8080"
	r.Header.Set("User-Agent", "rose-test")
	logging.LogAccess(&logging.AccessEntry{
		Request:      r,
		StatusCode:   http.StatusTeapot,
		ResponseSize: 5,
		Duration:     15 * time.Millisecond,
		RequestTime:  time.Date(2009, 11, 10, 23, 0, 0, 0, time.UTC),
		FlowID:       "abc",
		Resource:     "/items/{id}",
	})

	s := buf.String()
	require.NotEmpty(t, s)
	assert.True(t, strings.HasPrefix(s, "192.168.0.1 - - [10/Nov/2009:23:00:00 +0000]"), s)
	assert.Contains(t, s, `"GET /items/42 HTTP/1.1" 418 5`)
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, `"rose-test" 15 example.com abc /items/{id}`)
}

func TestAccessLogJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logging.Init(logging.Options{AccessLogOutput: buf, AccessLogJSONEnabled: true})
	defer logging.Init(logging.Options{AccessLogDisabled: true})

	logging.LogAccess(&logging.AccessEntry{StatusCode: 200})
	assert.Contains(t, buf.String(), `"status":200`)
	assert.Contains(t, buf.String(), `"flow-id":"-"`)
}

func TestLoggingWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := logging.NewLoggingWriter(rec)
	assert.False(t, lw.Written())

	lw.WriteHeader(http.StatusCreated)
	lw.WriteHeader(http.StatusInternalServerError)
	_, err := lw.Write([]byte("hello"))
	require.NoError(t, err)

	assert.True(t, lw.Written())
	assert.Equal(t, http.StatusCreated, lw.GetCode())
	assert.Equal(t, int64(5), lw.GetBytes())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Same(t, rec, lw.Unwrap())
}
