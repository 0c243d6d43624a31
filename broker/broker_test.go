package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/helog"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
	"github.com/GMLC-TDC/HELICS-sub010/registry"
	"github.com/GMLC-TDC/HELICS-sub010/wire"
)

func newRootBroker() *Broker {
	comm := wire.NewChannelCommunicator("root", 8)
	return New(hconfig.DefaultBrokerConfig("root"), comm, true, helog.NewNoOp(), nil)
}

func TestRootBrokerHasFixedID(t *testing.T) {
	b := newRootBroker()
	require.Equal(t, idspace.RootBroker, b.ID)
}

func TestRegisterChildCoreAllocatesBlock(t *testing.T) {
	b := newRootBroker()
	id, offset, err := b.RegisterChild("core1", wire.ActionRegCore, 3, idspace.RouteID(1))
	require.NoError(t, err)
	require.True(t, id.IsBroker())
	require.Equal(t, idspace.FederateShift, offset)

	_, offset2, err := b.RegisterChild("core2", wire.ActionRegCore, 2, idspace.RouteID(2))
	require.NoError(t, err)
	require.Equal(t, idspace.FederateShift+3, offset2)
}

func TestRegisterChildDuplicateNameFails(t *testing.T) {
	b := newRootBroker()
	_, _, err := b.RegisterChild("core1", wire.ActionRegCore, 1, idspace.RouteID(1))
	require.NoError(t, err)
	_, _, err = b.RegisterChild("core1", wire.ActionRegCore, 1, idspace.RouteID(2))
	require.Error(t, err)
}

func TestAnnounceInterfaceResolvesPendingDemand(t *testing.T) {
	b := newRootBroker()
	owner := idspace.NewGlobalID(idspace.FederateShift + 5)

	_, resolved := b.ResolveInterface("pub1", wire.NewRecord(wire.ActionPublish))
	require.False(t, resolved)

	require.NoError(t, b.AnnounceInterface(context.Background(), "pub1", owner))

	got, resolved := b.ResolveInterface("pub1", wire.NewRecord(wire.ActionPublish))
	require.True(t, resolved)
	require.Equal(t, owner, got)
}

func TestBarrierIsMonotonicNonDecreasing(t *testing.T) {
	b := newRootBroker()
	b.SetBarrier(10)
	b.SetBarrier(5) // should be ignored
	v, has := b.Barrier()
	require.True(t, has)
	require.EqualValues(t, 10, v)

	b.SetBarrier(20)
	v, _ = b.Barrier()
	require.EqualValues(t, 20, v)

	b.ClearBarrier()
	_, has = b.Barrier()
	require.False(t, has)
}

func TestCheckInitGrantRequiresAllFederates(t *testing.T) {
	b := newRootBroker()
	granted, err := b.CheckInitGrant(context.Background(), 3, 2, false, false)
	require.NoError(t, err)
	require.False(t, granted)

	granted, err = b.CheckInitGrant(context.Background(), 3, 3, false, false)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestCheckInitGrantBlockedByCycle(t *testing.T) {
	b := newRootBroker()
	granted, err := b.CheckInitGrant(context.Background(), 1, 1, false, true)
	require.NoError(t, err)
	require.False(t, granted)
}

func TestDataLinkQueuesDirective(t *testing.T) {
	b := newRootBroker()
	b.DataLink("pub1", "sub1")
	require.Len(t, b.PendingLinks(), 1)
}

func TestDisconnectRemovesChildAndUnblocksWait(t *testing.T) {
	b := newRootBroker()
	id, _, err := b.RegisterChild("core1", wire.ActionRegCore, 1, idspace.RouteID(1))
	require.NoError(t, err)
	require.Equal(t, 1, b.ChildCount())

	require.NoError(t, b.handle(context.Background(), wire.Record{Action: wire.ActionDisconnect, Source: id}))
	require.Equal(t, 0, b.ChildCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.True(t, b.WaitForDisconnect(ctx))
}

func TestRegisterWithRegistryReleasesOnFullDisconnect(t *testing.T) {
	b := newRootBroker()
	reg := registry.New()
	id, join, err := b.RegisterWithRegistry(reg)
	require.NoError(t, err)

	_, ok := reg.Lookup(id)
	require.True(t, ok)

	childID, _, err := b.RegisterChild("core1", wire.ActionRegCore, 1, idspace.RouteID(1))
	require.NoError(t, err)
	require.NoError(t, b.handle(context.Background(), wire.Record{Action: wire.ActionDisconnect, Source: childID}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.True(t, b.WaitForDisconnect(ctx))

	_, ok = reg.Lookup(id)
	require.False(t, ok, "broker should be released from the registry once fully disconnected")
	select {
	case <-join.Done():
	default:
		t.Fatal("join token should be signaled once the broker shuts down")
	}
}

func TestWaitForDisconnectTimesOutWithChildrenRemaining(t *testing.T) {
	b := newRootBroker()
	_, _, err := b.RegisterChild("core1", wire.ActionRegCore, 1, idspace.RouteID(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.False(t, b.WaitForDisconnect(ctx))
}
