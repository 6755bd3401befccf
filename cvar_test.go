package cml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCVar_setWakesWaiters(t *testing.T) {
	cv := NewCVar()
	const waiters = 4
	done := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			cv.Wait()
			done <- struct{}{}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cv.Set())
	for i := 0; i < waiters; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf(`waiter %d did not resume`, i)
		}
	}
}

func TestCVar_setTwice(t *testing.T) {
	cv := NewCVar()
	require.NoError(t, cv.Set())
	require.ErrorIs(t, cv.Set(), ErrCVarSet)
}

func TestCVar_waitAfterSet(t *testing.T) {
	cv := NewCVar()
	require.NoError(t, cv.Set())
	done := make(chan struct{})
	go func() {
		cv.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(`wait after set must be immediate`)
	}
	assert.True(t, cv.IsSet())
}

func TestCVar_setQuietIdempotent(t *testing.T) {
	cv := NewCVar()
	assert.True(t, cv.setQuiet())
	assert.False(t, cv.setQuiet())
	assert.True(t, cv.IsSet())
}
