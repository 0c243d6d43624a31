package federate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncCallCompletesAndPolls(t *testing.T) {
	f := newFS(t)
	call := f.EnterInitializingModeAsync()

	deadline := time.After(time.Second)
	for !call.IsCompleted() {
		select {
		case <-deadline:
			t.Fatal("async call never completed")
		default:
		}
	}

	_, err := call.Complete()
	require.NoError(t, err)
	require.Equal(t, Initializing, f.Mode())
}

func TestRequestTimeAsyncReflectsSyncResult(t *testing.T) {
	f := newFS(t)
	require.NoError(t, f.EnterInitializingMode())
	require.NoError(t, f.EnterExecutingMode())

	call := f.RequestTimeAsync(5)
	granted, err := call.Complete()
	require.NoError(t, err)
	require.EqualValues(t, 5, granted)
}
