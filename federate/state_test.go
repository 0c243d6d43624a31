package federate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/helog"
	"github.com/GMLC-TDC/HELICS-sub010/herrors"
	"github.com/GMLC-TDC/HELICS-sub010/iface"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
	"github.com/GMLC-TDC/HELICS-sub010/timecoord"
)

func fedID(n int32) idspace.FederateID {
	return idspace.FederateID{GlobalID: idspace.NewGlobalID(idspace.FederateShift + n)}
}

func newFS(t *testing.T) *FederateState {
	t.Helper()
	cfg := hconfig.DefaultFederateConfig("f1")
	coord := timecoord.New(fedID(0), cfg, helog.NewNoOp(), nil)
	return New(fedID(0), cfg, coord, helog.NewNoOp())
}

func TestFederateLifecycleHappyPath(t *testing.T) {
	f := newFS(t)
	require.Equal(t, Created, f.Mode())
	require.NoError(t, f.EnterInitializingMode())
	require.Equal(t, Initializing, f.Mode())
	require.NoError(t, f.EnterExecutingMode())
	require.Equal(t, Executing, f.Mode())
	require.NoError(t, f.EnterExecutingMode(), "re-entering executing is idempotent")
}

func TestFederateInvalidTransitionRejected(t *testing.T) {
	f := newFS(t)
	err := f.Finalize()
	require.Error(t, err)
	require.Equal(t, Created, f.Mode())
}

func TestFederateErrorIsTerminal(t *testing.T) {
	f := newFS(t)
	var callbackErr error
	f.SetErrorCallback(func(err error) { callbackErr = err })

	f.Fail(herrors.New(herrors.ErrFatal, 0, "boom"))
	require.Equal(t, Error, f.Mode())
	require.Error(t, callbackErr)
	require.Error(t, f.EnterInitializingMode())
}

func TestPublishValueFansOutToSubscribers(t *testing.T) {
	f := newFS(t)
	require.NoError(t, f.EnterInitializingMode())
	require.NoError(t, f.EnterExecutingMode())

	pub := iface.NewPublication(idspace.GlobalHandle{Federate: f.ID, Handle: 0}, "p1", "double", "")
	sub := idspace.GlobalHandle{Federate: fedID(1), Handle: 3}
	pub.AddSubscriber(sub)
	f.RegisterPublication(0, pub)

	cmds, err := f.PublishValue(0, iface.NewDouble(42), 0)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	require.Equal(t, CmdPublishValue, cmds[0].Kind)
	require.Equal(t, sub, cmds[0].DestHandles[0])
}

func TestPublishValueUnknownHandle(t *testing.T) {
	f := newFS(t)
	_, err := f.PublishValue(99, iface.NewDouble(1), 0)
	require.Error(t, err)
}

func TestDeliverValueUpdatesInput(t *testing.T) {
	f := newFS(t)
	in := iface.NewInput(idspace.GlobalHandle{Federate: f.ID, Handle: 0}, "i1", "double", "", hconfig.MultiInputNoOp)
	source := idspace.GlobalHandle{Federate: fedID(1), Handle: 0}
	in.AddSource(source)
	f.RegisterInput(0, in)

	f.DeliverValue(0, source, iface.NewDouble(7), 0)
	v, err := in.GetValue()
	require.NoError(t, err)
	require.InDelta(t, 7.0, v.Double, 1e-9)
}

func TestSendMessageStampsSequenceAndID(t *testing.T) {
	f := newFS(t)
	dest := idspace.GlobalHandle{Federate: fedID(2), Handle: 1}
	c1 := f.SendMessage(0, dest, []byte("a"), 0)
	c2 := f.SendMessage(0, dest, []byte("b"), 0)

	require.Equal(t, CmdSendMessage, c1.Kind)
	require.NotEmpty(t, c1.Message.ID)
	require.NotEqual(t, c1.Message.ID, c2.Message.ID)
	require.Equal(t, uint64(1), c1.Message.SenderSeq)
	require.Equal(t, uint64(2), c2.Message.SenderSeq)
}

func TestRegisterTranslatorRoundTripsValueAndMessage(t *testing.T) {
	f := newFS(t)
	gh := idspace.GlobalHandle{Federate: f.ID, Handle: 0}
	tr := iface.NewTranslator(gh, "t1")
	f.RegisterTranslator(0, tr)

	got := f.Translator(0)
	require.NotNil(t, got)

	payload, msgTime, err := got.TranslateValueToMessage(iface.NewDouble(2.5), 7)
	require.NoError(t, err)
	require.EqualValues(t, 7, msgTime)

	v, valTime, err := got.TranslateMessageToValue(payload, msgTime)
	require.NoError(t, err)
	require.EqualValues(t, 7, valTime)
	require.Equal(t, iface.NewDouble(2.5).Bytes(), v.Bytes())
}

func TestDeliverMessageQueuesOnEndpoint(t *testing.T) {
	f := newFS(t)
	ep := iface.NewEndpoint(idspace.GlobalHandle{Federate: f.ID, Handle: 0}, "e1", "")
	f.RegisterEndpoint(0, ep)

	f.DeliverMessage(0, iface.Message{Payload: []byte("hi")})
	require.True(t, ep.HasMessage())
}

func TestMailboxEnqueueDrain(t *testing.T) {
	f := newFS(t)
	f.Enqueue(Command{Kind: CmdLog, LogMessage: "hello"})
	cmd := <-f.Drain()
	require.Equal(t, "hello", cmd.LogMessage)
}
