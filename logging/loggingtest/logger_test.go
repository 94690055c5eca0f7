package loggingtest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/rose/logging"
	"github.com/zalando/rose/logging/loggingtest"
)

var _ logging.Logger = loggingtest.New()

func TestLoggingTest(t *testing.T) {
	lt := loggingtest.New()
	defer lt.Close()

	lt.Debug("debug")
	lt.Debugf("debugf: %s", "foo")
	lt.Info("info")
	lt.Infof("infof: %s", "foo")
	lt.Warn("warn")
	lt.Warnf("warnf: %s", "foo")
	lt.Error("error")
	lt.Errorf("errorf: %s", "foo")

	for _, exp := range []string{"debug", "info", "warn", "error"} {
		require.NoError(t, lt.WaitForN(exp, 2, 10*time.Millisecond), exp)
	}

	assert.Equal(t, 4, lt.Count("foo"))
	assert.Len(t, lt.Entries(), 8)
}

func TestWaitForLater(t *testing.T) {
	lt := loggingtest.New()
	defer lt.Close()

	go func() {
		time.Sleep(5 * time.Millisecond)
		lt.Info("late entry")
	}()

	require.NoError(t, lt.WaitFor("late", time.Second))
}

func TestWaitTimeout(t *testing.T) {
	lt := loggingtest.New()
	defer lt.Close()

	lt.Info("one")
	assert.ErrorIs(t, lt.WaitForN("one", 2, 5*time.Millisecond), loggingtest.ErrWaitTimeout)

	lt.Reset()
	assert.Zero(t, lt.Count("one"))
}
