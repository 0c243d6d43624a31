package filterfed

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/iface"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

func gh(fed, h int32) idspace.GlobalHandle {
	return idspace.GlobalHandle{Federate: idspace.FederateID{GlobalID: idspace.NewGlobalID(idspace.FederateShift + fed)}, Handle: idspace.Handle(h)}
}

func TestDelayFilterShiftsTime(t *testing.T) {
	f := iface.NewFilter("delay1", iface.FilterOnSource)
	f.Op = DelayFilter{Delay: 5}
	out, err := f.Run(iface.Message{Time: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.EqualValues(t, 15, out[0].Time)
}

func TestRandomDropFilterDropsDeterministically(t *testing.T) {
	f := RandomDropFilter{P: 1.0, Rand: rand.New(rand.NewSource(1))}
	out, err := f.Apply(iface.Message{})
	require.NoError(t, err)
	require.Empty(t, out)

	f2 := RandomDropFilter{P: 0.0, Rand: rand.New(rand.NewSource(1))}
	out2, err := f2.Apply(iface.Message{})
	require.NoError(t, err)
	require.Len(t, out2, 1)
}

func TestRerouteFilterRewritesDestination(t *testing.T) {
	newDest := gh(9, 0)
	f := RerouteFilter{NewDestination: newDest}
	out, err := f.Apply(iface.Message{Destination: gh(1, 0)})
	require.NoError(t, err)
	require.Equal(t, newDest, out[0].Destination)
}

func TestCloneFilterDuplicatesMessage(t *testing.T) {
	delivery := gh(2, 0)
	f := CloneFilter{DeliveryEndpoint: delivery}
	out, err := f.Apply(iface.Message{Destination: gh(1, 0)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, delivery, out[1].Destination)
	require.Equal(t, gh(1, 0), out[0].Destination)
}

func TestFirewallFilterBlocksSource(t *testing.T) {
	blocked := gh(3, 0)
	f := FirewallFilter{Blocked: map[idspace.GlobalHandle]bool{blocked: true}}
	out, err := f.Apply(iface.Message{Source: blocked})
	require.NoError(t, err)
	require.Empty(t, out)

	out2, err := f.Apply(iface.Message{Source: gh(4, 0)})
	require.NoError(t, err)
	require.Len(t, out2, 1)
}

func TestFilterFederateApplyStampsFreshIDs(t *testing.T) {
	ff := NewFilterFederate()
	h := gh(0, 0)
	f := iface.NewFilter("clone1", iface.FilterOnSource)
	delivery := gh(5, 0)
	f.Op = CloneFilter{DeliveryEndpoint: delivery}
	ff.Add(h, f)

	out, err := ff.Apply(h, iface.Message{ID: "orig", Destination: gh(1, 0)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotEqual(t, "orig", out[0].ID)
	require.NotEqual(t, out[0].ID, out[1].ID)
}

func TestTranslatorFederateRoundTrip(t *testing.T) {
	tf := NewTranslatorFederate()
	h := gh(0, 0)
	tr := iface.NewTranslator(h, "t1")
	tf.Add(h, tr)

	payload, newTime, err := tf.Translators[h].TranslateValueToMessage(iface.NewDouble(1), htime.Time(3))
	require.NoError(t, err)
	require.EqualValues(t, 3, newTime)

	v, valTime, err := tf.Translators[h].TranslateMessageToValue(payload, htime.Time(3))
	require.NoError(t, err)
	require.EqualValues(t, 3, valTime)
	require.Equal(t, iface.ValRaw, v.Kind)
}
