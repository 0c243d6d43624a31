package wire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

func TestChannelCommunicatorSendRecv(t *testing.T) {
	a := NewChannelCommunicator("a", 4)
	b := NewChannelCommunicator("b", 4)

	require.NoError(t, a.AddRoute(idspace.ParentRoute, idspace.NewGlobalID(1)))
	a.Bind(idspace.ParentRoute, b.Inbox())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rec := NewRecord(ActionRegCore)
	rec.Counter = 7
	require.NoError(t, a.Send(ctx, idspace.ParentRoute, rec))

	got, err := b.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, ActionRegCore, got.Action)
	require.EqualValues(t, 7, got.Counter)
}

func TestChannelCommunicatorSendUnknownRoute(t *testing.T) {
	a := NewChannelCommunicator("a", 1)
	ctx := context.Background()
	err := a.Send(ctx, idspace.RouteID(99), NewRecord(ActionNoOp))
	require.Error(t, err)
}

func TestChannelCommunicatorRecvCanceled(t *testing.T) {
	a := NewChannelCommunicator("a", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Recv(ctx)
	require.Error(t, err)
}
