package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	shutdownCalls int
}

func (f *fakeHandle) Shutdown() { f.shutdownCalls++ }

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	h := &fakeHandle{}
	id, join, err := r.Register("core1", h)
	require.NoError(t, err)
	require.NotNil(t, join)

	got, ok := r.Lookup(id)
	require.True(t, ok)
	require.Same(t, h, got)
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	r := New()
	_, _, err := r.Register("core1", &fakeHandle{})
	require.NoError(t, err)
	_, _, err = r.Register("core1", &fakeHandle{})
	require.Error(t, err)
}

func TestReleaseShutsDownAtZeroRefs(t *testing.T) {
	r := New()
	h := &fakeHandle{}
	id, join, err := r.Register("core1", h)
	require.NoError(t, err)

	require.NoError(t, r.AddRef(id))
	require.NoError(t, r.Release(id))
	require.Equal(t, 0, h.shutdownCalls, "one ref remains")

	require.NoError(t, r.Release(id))
	require.Equal(t, 1, h.shutdownCalls)

	select {
	case <-join.Done():
	default:
		t.Fatal("join token should be signaled after shutdown")
	}

	_, ok := r.Lookup(id)
	require.False(t, ok)
}

func TestReleaseUnknownIDFails(t *testing.T) {
	r := New()
	err := r.Release(999)
	require.Error(t, err)
}

func TestShutdownTokenFiresOnce(t *testing.T) {
	tok := NewShutdownToken()
	require.False(t, tok.IsFired())
	tok.Fire()
	tok.Fire() // idempotent
	require.True(t, tok.IsFired())
	select {
	case <-tok.Fired():
	default:
		t.Fatal("expected fired channel closed")
	}
}

func TestRegistryShutdownSignalsToken(t *testing.T) {
	r := New()
	require.False(t, r.ShutdownToken().IsFired())
	r.Shutdown()
	require.True(t, r.ShutdownToken().IsFired())
}
