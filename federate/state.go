package federate

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/helog"
	"github.com/GMLC-TDC/HELICS-sub010/herrors"
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/iface"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
	"github.com/GMLC-TDC/HELICS-sub010/timecoord"
)

// mailboxDepth bounds the single-producer/single-consumer command queue
// described in spec §4.3.
const mailboxDepth = 256

// FederateState is the container of one federate's execution data, spec
// §4.3. It owns the federate's interface objects and processes routed
// commands from its core on the federate's execution thread.
type FederateState struct {
	log helog.Logger

	ID     idspace.FederateID
	Config hconfig.FederateConfig
	Coord  *timecoord.TimeCoordinator

	modeMu sync.Mutex
	mode   Mode

	publications map[idspace.Handle]*iface.Publication
	inputs       map[idspace.Handle]*iface.Input
	endpoints    map[idspace.Handle]*iface.Endpoint
	filters      map[idspace.Handle]*iface.Filter
	translators  map[idspace.Handle]*iface.Translator

	mailbox chan Command

	seqMu   sync.Mutex
	nextSeq uint64

	currentGranted htime.Time

	errCallback func(error)
}

// New constructs a FederateState in the Created mode, with an already
// constructed TimeCoordinator (built by the caller so Core/Broker can wire
// dependency edges before the federate starts requesting time).
func New(id idspace.FederateID, cfg hconfig.FederateConfig, coord *timecoord.TimeCoordinator, log helog.Logger) *FederateState {
	return &FederateState{
		log:          log,
		ID:           id,
		Config:       cfg,
		Coord:        coord,
		mode:         Created,
		publications: make(map[idspace.Handle]*iface.Publication),
		inputs:       make(map[idspace.Handle]*iface.Input),
		endpoints:    make(map[idspace.Handle]*iface.Endpoint),
		filters:      make(map[idspace.Handle]*iface.Filter),
		translators:  make(map[idspace.Handle]*iface.Translator),
		mailbox:      make(chan Command, mailboxDepth),
	}
}

// Mode returns the federate's current mode.
func (f *FederateState) Mode() Mode {
	f.modeMu.Lock()
	defer f.modeMu.Unlock()
	return f.mode
}

// SetErrorCallback registers cb to be invoked whenever the federate
// transitions to Error, per spec §7's "delivered to the registered error
// callback if any".
func (f *FederateState) SetErrorCallback(cb func(error)) { f.errCallback = cb }

func (f *FederateState) setMode(to Mode) error {
	f.modeMu.Lock()
	defer f.modeMu.Unlock()
	next, err := transition(f.mode, to)
	f.mode = next
	return err
}

// Fail transitions the federate to Error and notifies the error callback,
// per spec §7's propagation policy: "errors arriving on the command mailbox
// transition the federate to error mode."
func (f *FederateState) Fail(cause error) {
	f.modeMu.Lock()
	f.mode = Error
	f.modeMu.Unlock()
	if f.log != nil {
		f.log.Error("federate entered error state", zap.Int32("federate", f.ID.Base()), zap.Error(cause))
	}
	if f.errCallback != nil {
		f.errCallback(cause)
	}
}

// EnterInitializingMode transitions Created -> Initializing. Idempotent if
// already in Initializing, per spec §8 property 6.
func (f *FederateState) EnterInitializingMode() error {
	return f.setMode(Initializing)
}

// EnterExecutingMode transitions Initializing -> Executing, but only once
// the TimeCoordinator reports every dependency has reached executing
// (spec §4.2 "State machine for executing entry").
func (f *FederateState) EnterExecutingMode() error {
	if f.Mode() == Executing {
		return nil
	}
	if !f.Coord.CheckExecEntry() {
		return herrors.New(herrors.ErrInvalidStateTransition, herrors.InvalidStateTransition,
			"federate %s cannot enter executing: a dependency has not reached executing", f.ID)
	}
	return f.setMode(Executing)
}

// RequestTime performs a non-iterative time advance, delegating the grant
// decision to the TimeCoordinator and updating this federate's current
// granted time on success.
func (f *FederateState) RequestTime(requested htime.Time) (htime.Time, error) {
	if err := f.setMode(PendingTime); err != nil {
		return f.currentGranted, err
	}
	granted, ok, err := f.Coord.RequestTime(requested)
	if err != nil {
		f.Fail(err)
		return f.currentGranted, err
	}
	if !ok {
		// Still pending; caller retries once more dependency info arrives.
		return f.currentGranted, timecoord.ErrPending
	}
	f.currentGranted = granted
	for _, in := range f.inputs {
		in.BeginStep()
	}
	if err := f.setMode(Executing); err != nil {
		return f.currentGranted, err
	}
	return granted, nil
}

// RequestTimeIterative is RequestTime's iterative counterpart, spec §4.2.
func (f *FederateState) RequestTimeIterative(requested htime.Time, kind timecoord.IterationRequest, converged bool) (htime.Time, bool, error) {
	if err := f.setMode(PendingIterativeTime); err != nil {
		return f.currentGranted, false, err
	}
	granted, iterating, err := f.Coord.RequestTimeIterative(requested, kind, converged)
	if err != nil && err != timecoord.ErrPending {
		f.Fail(err)
		return f.currentGranted, false, err
	}
	if err == timecoord.ErrPending {
		return f.currentGranted, false, err
	}
	f.currentGranted = granted
	if !iterating {
		for _, in := range f.inputs {
			in.BeginStep()
		}
	}
	if modeErr := f.setMode(Executing); modeErr != nil {
		return f.currentGranted, iterating, modeErr
	}
	return granted, iterating, nil
}

// Finalize transitions Executing -> Finalize.
func (f *FederateState) Finalize() error {
	return f.setMode(Finalize)
}

// nextSequence returns a monotonically increasing per-federate sender
// sequence number, used for spec §4.3's same-time message ordering.
func (f *FederateState) nextSequence() uint64 {
	f.seqMu.Lock()
	defer f.seqMu.Unlock()
	f.nextSeq++
	return f.nextSeq
}

// RegisterPublication catalogs a new publication owned by this federate.
func (f *FederateState) RegisterPublication(h idspace.Handle, p *iface.Publication) {
	f.publications[h] = p
}

// RegisterInput catalogs a new input owned by this federate.
func (f *FederateState) RegisterInput(h idspace.Handle, in *iface.Input) {
	f.inputs[h] = in
}

// RegisterEndpoint catalogs a new endpoint owned by this federate.
func (f *FederateState) RegisterEndpoint(h idspace.Handle, ep *iface.Endpoint) {
	f.endpoints[h] = ep
}

// RegisterFilter catalogs a new filter owned by this federate (via an
// implicit FilterFederate, spec §4.7).
func (f *FederateState) RegisterFilter(h idspace.Handle, flt *iface.Filter) {
	f.filters[h] = flt
}

// RegisterTranslator catalogs a new translator owned by this federate.
func (f *FederateState) RegisterTranslator(h idspace.Handle, tr *iface.Translator) {
	f.translators[h] = tr
}

// Publication looks up a locally owned publication by handle.
func (f *FederateState) Publication(h idspace.Handle) *iface.Publication { return f.publications[h] }

// Input looks up a locally owned input by handle.
func (f *FederateState) Input(h idspace.Handle) *iface.Input { return f.inputs[h] }

// Endpoint looks up a locally owned endpoint by handle.
func (f *FederateState) Endpoint(h idspace.Handle) *iface.Endpoint { return f.endpoints[h] }

// Translator looks up a locally owned translator by handle.
func (f *FederateState) Translator(h idspace.Handle) *iface.Translator { return f.translators[h] }

// PublishValue implements spec §4.3 "Publish": clamps now to the allowed
// send time, applies onlyTransmitOnChange, and returns the outbound
// commands to enqueue to every current subscriber (including local ones,
// per spec: "local subscribers are looped back through the core").
func (f *FederateState) PublishValue(h idspace.Handle, v iface.Value, now htime.Time) ([]Command, error) {
	pub := f.publications[h]
	if pub == nil {
		return nil, herrors.New(herrors.ErrInvalidArgument, herrors.InvalidObject, "no publication at handle %d", h)
	}
	allowed := f.Coord.AllowedSendTime()
	stamped, send := pub.Publish(v.Bytes(), now, allowed, f.Config.Flags.OnlyTransmitOnChange)
	if !send {
		return nil, nil
	}
	src := idspace.GlobalHandle{Federate: f.ID, Handle: h}
	cmds := make([]Command, 0, len(pub.Subscribers))
	for _, sub := range pub.Subscribers {
		cmds = append(cmds, Command{
			Kind:         CmdPublishValue,
			SourceHandle: src,
			DestHandles:  []idspace.GlobalHandle{sub},
			Value:        v,
			Time:         stamped,
		})
	}
	return cmds, nil
}

// DeliverValue implements spec §4.3 "Value arrival" steps 1, 3, 4 for one
// input (step 2, unit conversion, is applied by the caller before this is
// invoked, since it needs both ends' declared units).
func (f *FederateState) DeliverValue(h idspace.Handle, source idspace.GlobalHandle, v iface.Value, arrivalTime htime.Time) {
	in := f.inputs[h]
	if in == nil {
		return
	}
	arrivalTime = htime.Max(arrivalTime, f.currentGranted)
	in.OnValueArrival(source, v, arrivalTime, f.Config.Flags.OnlyUpdateOnChange, 0)
}

// SendMessage implements spec §4.3's endpoint send path: stamps a message
// id, sequence number, and send time (clamped to the allowed send time).
func (f *FederateState) SendMessage(h idspace.Handle, dest idspace.GlobalHandle, payload []byte, now htime.Time) Command {
	src := idspace.GlobalHandle{Federate: f.ID, Handle: h}
	stamped := htime.Max(now, f.Coord.AllowedSendTime())
	msg := iface.Message{
		Source:      src,
		Destination: dest,
		Payload:     payload,
		Time:        stamped,
		ID:          uuid.New().String(),
		SenderSeq:   f.nextSequence(),
	}
	return Command{Kind: CmdSendMessage, Message: msg}
}

// DeliverMessage implements spec §4.3 "Message arrival": appends to the
// destination endpoint's FIFO in delivery order.
func (f *FederateState) DeliverMessage(h idspace.Handle, m iface.Message) {
	ep := f.endpoints[h]
	if ep == nil {
		return
	}
	ep.Deliver(m)
}

// Enqueue pushes a command onto this federate's mailbox. It is the only
// way another goroutine (the owning core's routing loop) communicates with
// a FederateState; all mutation happens on the execution thread that drains
// the mailbox via Drain.
func (f *FederateState) Enqueue(cmd Command) {
	f.mailbox <- cmd
}

// Drain returns the mailbox channel for the execution thread's processing
// loop to range over.
func (f *FederateState) Drain() <-chan Command { return f.mailbox }
