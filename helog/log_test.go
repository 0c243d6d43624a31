package helog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewOpBuildsAtRequestedLevel(t *testing.T) {
	l, err := New("debug")
	require.NoError(t, err)
	require.NotNil(t, l)
	l.Debug("hello", zap.String("k", "v"))
	require.NoError(t, l.Sync())
}

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	l, err := New("not-a-level")
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestNoOpDoesNotPanic(t *testing.T) {
	l := NewNoOp()
	l.Debug("d", zap.Int("n", 1))
	l.Info("i")
	l.Warn("w", zap.Error(nil))
	l.Error("e")
	child := l.With(zap.String("federate", "f1"))
	child.Info("from child")
	require.NoError(t, l.Sync())
}
