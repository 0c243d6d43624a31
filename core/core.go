// Package core implements Core (spec §4.4): the leaf router that hosts one
// process's federates, handles their REG_CORE/CORE_ACK federate-id block
// handshake, and routes interface traffic to local federates or up to the
// parent broker. Grounded on the original source's CommonCore routing split
// (_examples/original_source/src/helics/core/CommonCore.{hpp,cpp}) and the
// teacher's router.Router child/route mapping idiom
// (_examples/luxfi-consensus/networking/router/router.go,
// _examples/luxfi-consensus/networking/router/chain_router.go).
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GMLC-TDC/HELICS-sub010/federate"
	"github.com/GMLC-TDC/HELICS-sub010/filterfed"
	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/helog"
	"github.com/GMLC-TDC/HELICS-sub010/herrors"
	"github.com/GMLC-TDC/HELICS-sub010/hmetrics"
	"github.com/GMLC-TDC/HELICS-sub010/handle"
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/iface"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
	"github.com/GMLC-TDC/HELICS-sub010/query"
	"github.com/GMLC-TDC/HELICS-sub010/registry"
	"github.com/GMLC-TDC/HELICS-sub010/timecoord"
	"github.com/GMLC-TDC/HELICS-sub010/wire"
)

// Core is one process's leaf router: it owns a HandleManager, the
// FederateStates it hosts, and the single communicator connection to its
// parent broker, per spec §4.4.
type Core struct {
	log     helog.Logger
	metrics *hmetrics.CoreMetrics

	Config hconfig.CoreConfig
	comm   wire.Communicator

	mu sync.Mutex

	ID        idspace.BrokerID // a core is addressed in the same id graph as a broker leaf
	allocator *idspace.Allocator
	connected bool

	handles    *handle.HandleManager
	federates  map[idspace.FederateID]*federate.FederateState
	nameToFed  map[string]idspace.FederateID
	coords     map[idspace.FederateID]*timecoord.TimeCoordinator

	// routeTable addresses every known id (local federate, parent broker, or
	// a remote federate routed through the parent) to an outbound route, per
	// SPEC_FULL.md §7.
	routeTable map[idspace.Base]idspace.RouteID

	// pendingDemand queues records that named an interface this core has
	// not yet resolved (local registration in flight, or awaiting a remote
	// announcement from the broker), keyed by interface name.
	pendingDemand map[string][]wire.Record

	// filters and translators implement spec §4.7's FilterFederate/
	// TranslatorFederate: implicit federates hosted inside this core whose
	// objects participate in the publish/send paths below rather than in
	// their own time-coordination loop.
	filters     *filterfed.FilterFederate
	translators *filterfed.TranslatorFederate

	// translatorByKey resolves a Pub/Input/Endpoint-kind interface key to
	// its bound translator, since HandleManager indexes a translator under
	// all three kinds (handle.translatorKinds) for the same key.
	translatorByKey map[string]idspace.GlobalHandle

	// sourceFilters/destFilters index a Filter's BoundEndpoints by leg, so
	// routing can find in O(1) which filters a message must pass through,
	// per spec §4.4 "filter interposition".
	sourceFilters map[idspace.GlobalHandle][]idspace.GlobalHandle
	destFilters   map[idspace.GlobalHandle][]idspace.GlobalHandle

	queryIDs *query.IDGenerator

	// reg/regID/regJoin track this core's entry in a process-wide
	// registry.Registry, per spec §9's explicit-lifecycle redesign; all
	// three are nil/zero until RegisterWithRegistry is called.
	reg     *registry.Registry
	regID   uint64
	regJoin *registry.JoinToken
}

// New constructs an unconnected Core. Call Connect before registering
// federates.
func New(cfg hconfig.CoreConfig, comm wire.Communicator, log helog.Logger, metrics *hmetrics.CoreMetrics) *Core {
	return &Core{
		log:           log,
		metrics:       metrics,
		Config:        cfg,
		comm:          comm,
		ID:            idspace.InvalidBrokerID,
		handles:       handle.New(),
		federates:     make(map[idspace.FederateID]*federate.FederateState),
		nameToFed:     make(map[string]idspace.FederateID),
		coords:        make(map[idspace.FederateID]*timecoord.TimeCoordinator),
		routeTable:    make(map[idspace.Base]idspace.RouteID),
		pendingDemand: make(map[string][]wire.Record),
		filters:         filterfed.NewFilterFederate(),
		translators:     filterfed.NewTranslatorFederate(),
		translatorByKey: make(map[string]idspace.GlobalHandle),
		sourceFilters:   make(map[idspace.GlobalHandle][]idspace.GlobalHandle),
		destFilters:     make(map[idspace.GlobalHandle][]idspace.GlobalHandle),
		queryIDs:      &query.IDGenerator{},
	}
}

// Connect performs the REG_CORE/CORE_ACK handshake of spec §4.4: it sends a
// registration request to the parent and blocks for the acknowledgment that
// carries this core's assigned id and federate-id block.
func (c *Core) Connect(ctx context.Context) error {
	rec := wire.NewRecord(wire.ActionRegCore)
	rec.Strings = []string{c.Config.Name}
	rec.Counter = int32(c.Config.Federates)
	if err := c.comm.Send(ctx, idspace.ParentRoute, rec); err != nil {
		return herrors.New(herrors.ErrConnectionFailure, herrors.ConnectionFailure, "core %q: send reg_core: %v", c.Config.Name, err)
	}

	ack, err := c.comm.Recv(ctx)
	if err != nil {
		return herrors.New(herrors.ErrConnectionFailure, herrors.ConnectionFailure, "core %q: awaiting core_ack: %v", c.Config.Name, err)
	}
	if ack.Action != wire.ActionCoreAck {
		return herrors.New(herrors.ErrConnectionFailure, herrors.ConnectionFailure, "core %q: expected core_ack, got %s", c.Config.Name, ack.Action)
	}

	c.mu.Lock()
	c.ID = idspace.BrokerID{GlobalID: ack.Source}
	start := idspace.FederateShift
	if ack.Counter >= idspace.FederateShift {
		start = ack.Counter
	}
	c.allocator = idspace.NewAllocator(start)
	c.routeTable[idspace.ParentBroker.Base()] = idspace.ParentRoute
	c.connected = true
	c.mu.Unlock()

	c.log.Info("core connected", zap.String("core", c.Config.Name), zap.Int32("id", ack.Source.Base()))
	return nil
}

// RegisterFederate allocates a new federate id from this core's block, wires
// up its TimeCoordinator, and returns its FederateState, per spec §4.3/§4.4.
func (c *Core) RegisterFederate(cfg hconfig.FederateConfig) (*federate.FederateState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, herrors.New(herrors.ErrRegistrationFailure, herrors.RegistrationFailure, "core %q is not connected", c.Config.Name)
	}
	if _, exists := c.nameToFed[cfg.Name]; exists {
		return nil, herrors.New(herrors.ErrDuplicateInterface, herrors.InvalidArgument, "federate %q already registered on core %q", cfg.Name, c.Config.Name)
	}

	base := c.allocator.Reserve(1)
	fid := idspace.FederateID{GlobalID: idspace.NewGlobalID(base)}

	var tcMetrics *hmetrics.TimeCoordinatorMetrics
	coord := timecoord.New(fid, cfg, c.log, tcMetrics)
	fs := federate.New(fid, cfg, coord, c.log)

	c.federates[fid] = fs
	c.nameToFed[cfg.Name] = fid
	c.coords[fid] = coord
	c.routeTable[fid.Base()] = idspace.RouteID(fid.Base()) // local federates route to themselves

	c.log.Info("federate registered", zap.String("federate", cfg.Name), zap.Int32("id", fid.Base()))
	return fs, nil
}

// FederateByName looks up a locally hosted federate by its configured name.
func (c *Core) FederateByName(name string) (*federate.FederateState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fid, ok := c.nameToFed[name]
	if !ok {
		return nil, false
	}
	return c.federates[fid], true
}

// isLocal reports whether fid names a federate hosted directly by this core.
func (c *Core) isLocal(fid idspace.FederateID) bool {
	_, ok := c.federates[fid]
	return ok
}

// RegisterInterface adds handleID to the local HandleManager and, once
// registered, flushes any pending-demand records that were waiting on key,
// per spec §4.4's "unknown handle" resolution path.
func (c *Core) RegisterInterface(fed idspace.FederateID, handleID idspace.Handle, kind hconfig.InterfaceKind, key, typ, units string) (*handle.BasicHandleInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, err := c.handles.AddHandle(fed, handleID, kind, key, typ, units)
	if err != nil {
		return nil, err
	}
	if waiting, ok := c.pendingDemand[info.Key]; ok {
		delete(c.pendingDemand, info.Key)
		for _, rec := range waiting {
			c.routeLocked(rec)
		}
	}
	return info, nil
}

// RegisterFilter registers a new filter owned by fed inside this core's
// implicit FilterFederate, per spec §4.7. Use AttachFilter to bind it to the
// endpoints whose traffic it should intercept.
func (c *Core) RegisterFilter(fed idspace.FederateID, handleID idspace.Handle, key string, leg iface.FilterLeg, op iface.Operator) (*iface.Filter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, err := c.handles.AddHandle(fed, handleID, hconfig.KindFilter, key, "", "")
	if err != nil {
		return nil, err
	}
	f := iface.NewFilter(key, leg)
	f.Op = op
	gh := info.Global()
	c.filters.Add(gh, f)
	if fs, ok := c.federates[fed]; ok {
		fs.RegisterFilter(handleID, f)
	}
	return f, nil
}

// AttachFilter binds an already-registered filter to endpoint, per spec
// §4.7's "endpoints with filters attached"; routing indexes the binding by
// the filter's leg so SendMessage and local delivery can find it in O(1).
func (c *Core) AttachFilter(filterHandle, endpoint idspace.GlobalHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.handles.FindHandle(filterHandle)
	if info == nil || info.Kind != hconfig.KindFilter {
		return herrors.New(herrors.ErrUnknownInterface, herrors.InvalidObject, "no filter at handle %s", filterHandle)
	}
	f := c.filters.Filters[filterHandle]
	if f == nil {
		return herrors.New(herrors.ErrUnknownInterface, herrors.InvalidObject, "no filter at handle %s", filterHandle)
	}
	f.BindEndpoint(endpoint)
	switch f.Leg {
	case iface.FilterOnSource:
		c.sourceFilters[endpoint] = append(c.sourceFilters[endpoint], filterHandle)
	case iface.FilterOnDestination:
		c.destFilters[endpoint] = append(c.destFilters[endpoint], filterHandle)
	}
	return nil
}

// RegisterTranslator registers a new translator owned by fed inside this
// core's implicit TranslatorFederate, per spec §4.7. op may be nil, in which
// case the translator uses iface.IdentityTranslatorOperator.
func (c *Core) RegisterTranslator(fed idspace.FederateID, handleID idspace.Handle, key string, op iface.TranslatorOperator) (*iface.Translator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, err := c.handles.AddHandle(fed, handleID, hconfig.KindTranslator, key, "", "")
	if err != nil {
		return nil, err
	}
	gh := info.Global()
	tr := iface.NewTranslator(gh, key)
	if op != nil {
		tr.Op = op
	}
	c.translators.Add(gh, tr)
	c.translatorByKey[key] = gh
	if fs, ok := c.federates[fed]; ok {
		fs.RegisterTranslator(handleID, tr)
	}
	return tr, nil
}

// Route dispatches rec to a local federate's mailbox, or forwards it to the
// parent broker if the destination is not hosted here, per spec §4.4's
// "local / peer / parent / control" routing decision (SPEC_FULL.md §7). An
// unresolvable named interface is queued in pendingDemand rather than
// dropped.
func (c *Core) Route(ctx context.Context, rec wire.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.routeLocked(rec)
}

func (c *Core) routeLocked(rec wire.Record) error {
	if rec.Action == wire.ActionError {
		return c.globalErrorLocked(rec)
	}
	if rec.Action == wire.ActionDisconnect && !rec.DestHandle.Federate.IsValid() {
		return c.disconnectFederateLocked(rec.Source)
	}
	dest := rec.DestHandle.Federate
	if dest.IsValid() && c.isLocal(dest) {
		return c.deliverLocal(rec)
	}
	if dest.IsValid() {
		// Not hosted here: forward upward. The parent (or an intervening
		// broker) resolves the rest of the path.
		return c.forwardToParent(rec)
	}
	// No concrete destination yet (name-based addressing still pending
	// resolution) — queue it.
	info := c.handles.FindHandle(rec.SourceHandle)
	key := rec.SourceHandle.String()
	if info != nil {
		key = info.Key
	}
	c.pendingDemand[key] = append(c.pendingDemand[key], rec)
	return nil
}

func (c *Core) deliverLocal(rec wire.Record) error {
	if rec.Action == wire.ActionSendMessage {
		return c.deliverMessageLocked(rec)
	}
	fs := c.federates[rec.DestHandle.Federate]
	if fs == nil {
		return herrors.New(herrors.ErrUnknownInterface, herrors.InvalidObject, "no local federate for %s", rec.DestHandle.Federate)
	}
	cmd, ok := recordToCommand(rec)
	if !ok {
		return nil
	}
	fs.Enqueue(cmd)
	if c.metrics != nil {
		c.metrics.MessagesRouted.Inc()
	}
	return nil
}

// deliverMessageLocked implements destination-leg filter interposition, per
// spec §4.4 "filter interposition": any filter bound to rec.DestHandle's
// destination leg runs before the message reaches the endpoint's mailbox. A
// filter that reroutes or clones the message (RerouteFilter, CloneFilter)
// causes the result to be re-injected through routeLocked rather than
// delivered directly, since its new destination may not be local anymore.
func (c *Core) deliverMessageLocked(rec wire.Record) error {
	m := iface.Message{
		Source:      rec.SourceHandle,
		Destination: rec.DestHandle,
		Payload:     rec.Payload,
		Time:        rec.ActionTime,
		SenderSeq:   uint64(rec.Counter),
	}
	outs, err := c.runFiltersLocked([]iface.Message{m}, c.destFilters[rec.DestHandle])
	if err != nil {
		return err
	}
	for _, out := range outs {
		if out.Destination == rec.DestHandle {
			fs := c.federates[out.Destination.Federate]
			if fs == nil {
				return herrors.New(herrors.ErrUnknownInterface, herrors.InvalidObject, "no local federate for %s", out.Destination)
			}
			fs.Enqueue(federate.Command{Kind: federate.CmdSendMessage, Message: out})
			if c.metrics != nil {
				c.metrics.MessagesRouted.Inc()
			}
			continue
		}
		outRec := wire.NewRecord(wire.ActionSendMessage)
		outRec.SourceHandle = out.Source
		outRec.DestHandle = out.Destination
		outRec.Payload = out.Payload
		outRec.ActionTime = out.Time
		if err := c.routeLocked(outRec); err != nil {
			return err
		}
	}
	return nil
}

// runFiltersLocked threads in through every filter named in filterHandles in
// order, feeding each filter's output messages into the next, per spec
// §4.7's filter-chain semantics. Call with c.mu held.
func (c *Core) runFiltersLocked(in []iface.Message, filterHandles []idspace.GlobalHandle) ([]iface.Message, error) {
	cur := in
	for _, fh := range filterHandles {
		var next []iface.Message
		for _, msg := range cur {
			out, err := c.filters.Apply(fh, msg)
			if err != nil {
				return nil, herrors.New(herrors.ErrFatal, herrors.ExecutionFailure, "filter %s: %v", fh, err)
			}
			next = append(next, out...)
		}
		cur = next
	}
	return cur, nil
}

func (c *Core) forwardToParent(rec wire.Record) error {
	if c.metrics != nil {
		c.metrics.MessagesRouted.Inc()
	}
	return c.comm.Send(context.Background(), idspace.ParentRoute, rec)
}

// disconnectFederateLocked drops a federate that reported disconnection,
// spec §5 "waitForDisconnect — until child count reaches zero or deadline".
func (c *Core) disconnectFederateLocked(id idspace.GlobalID) error {
	fid := idspace.FederateID{GlobalID: id}
	if fs, ok := c.federates[fid]; ok {
		_ = fs.Finalize()
	}
	delete(c.federates, fid)
	for name, v := range c.nameToFed {
		if v == fid {
			delete(c.nameToFed, name)
			break
		}
	}
	return nil
}

// globalErrorLocked implements spec §7's GLOBAL_ERROR propagation on a core:
// every locally hosted federate is forced to Error. The record is not
// relayed to the parent.
func (c *Core) globalErrorLocked(rec wire.Record) error {
	cause := herrors.New(herrors.ErrFatal, herrors.Code(rec.ErrCode), "%s", rec.ErrMsg)
	for _, fs := range c.federates {
		fs.Fail(cause)
	}
	return nil
}

// WaitForDisconnect blocks until every locally hosted federate has
// disconnected or the context is done, spec §5's wait-for-disconnect
// suspension point. It returns true if all federates disconnected before ctx
// was canceled.
// WaitForDisconnect additionally releases this core's own registry
// reference once every federate has disconnected, so a core registered via
// RegisterWithRegistry tears itself down as part of the normal disconnect
// path rather than requiring a separate explicit Close call.
func (c *Core) WaitForDisconnect(ctx context.Context) bool {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		c.mu.Lock()
		remaining := len(c.federates)
		c.mu.Unlock()
		if remaining == 0 {
			if err := c.Close(); err != nil {
				c.log.Warn("core close after disconnect failed", zap.Error(err))
			}
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// RegisterWithRegistry registers this core under a process-wide
// registry.Registry so other components can hold a stable id rather than a
// direct pointer, per spec §9's redesign of the original source's
// TripWire/delayedDestructor scheme. The registry and the returned id are
// also kept on c so Close can release its own reference without the caller
// threading them back in.
func (c *Core) RegisterWithRegistry(reg *registry.Registry) (uint64, *registry.JoinToken, error) {
	id, join, err := reg.Register(c.Config.Name, c)
	if err != nil {
		return 0, nil, err
	}
	c.mu.Lock()
	c.reg = reg
	c.regID = id
	c.regJoin = join
	c.mu.Unlock()
	return id, join, nil
}

// Shutdown implements registry.Handle: it closes this core's communicator
// connection. Called by the Registry exactly once, when the core's
// reference count reaches zero.
func (c *Core) Shutdown() {
	_ = c.comm.Close()
}

// Close releases this core's own reference in the registry it was
// registered with, per spec §9's "a core drops only once its reference
// count reaches zero." If the core was never registered, it shuts itself
// down directly instead.
func (c *Core) Close() error {
	c.mu.Lock()
	reg, id := c.reg, c.regID
	c.mu.Unlock()
	if reg == nil {
		c.Shutdown()
		return nil
	}
	return reg.Release(id)
}

// recordToCommand translates a wire-level Record into the in-process
// federate.Command its destination mailbox expects.
func recordToCommand(rec wire.Record) (federate.Command, bool) {
	switch rec.Action {
	case wire.ActionPublish:
		return federate.Command{
			Kind:         federate.CmdPublishValue,
			SourceHandle: rec.SourceHandle,
			DestHandles:  []idspace.GlobalHandle{rec.DestHandle},
			Value:        iface.NewRaw(rec.Payload),
			Time:         rec.ActionTime,
		}, true
	case wire.ActionSendMessage:
		return federate.Command{
			Kind: federate.CmdSendMessage,
			Message: iface.Message{
				Source:      rec.SourceHandle,
				Destination: rec.DestHandle,
				Payload:     rec.Payload,
				Time:        rec.ActionTime,
				SenderSeq:   uint64(rec.Counter),
			},
		}, true
	case wire.ActionTimeGrant:
		return federate.Command{Kind: federate.CmdTimeGrant, Granted: rec.ActionTime, Iterating: rec.Iterating}, true
	case wire.ActionDisconnect:
		return federate.Command{Kind: federate.CmdDisconnect}, true
	default:
		return federate.Command{}, false
	}
}

// PublishValue is the entry point a federate-facing API calls to publish: it
// looks up the publication's subscribers and routes one record per
// subscriber. A subscriber that is itself an endpoint (bridged by a
// Translator registered via RegisterTranslator, per spec §4.7) has the
// value converted to a message instead of delivered as a raw publish
// record; that message then passes through the same destination-leg filter
// interposition as any other SendMessage, in deliverMessageLocked.
func (c *Core) PublishValue(ctx context.Context, fed idspace.FederateID, h idspace.Handle, v iface.Value, now htime.Time) error {
	fs, ok := c.federateLocked(fed)
	if !ok {
		return herrors.New(herrors.ErrUnknownInterface, herrors.InvalidObject, "core %q has no federate %s", c.Config.Name, fed)
	}
	cmds, err := fs.PublishValue(h, v, now)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		dest := cmd.DestHandles[0]
		c.mu.Lock()
		info := c.handles.FindHandle(dest)
		c.mu.Unlock()
		// A subscriber position backed by a Translator is indexed under
		// KindPublication/KindInput/KindEndpoint for name resolution (see
		// handle.translatorKinds), but its stored BasicHandleInfo.Kind
		// stays KindTranslator; that is the real signal a value needs
		// converting to a message rather than delivered raw.
		if info != nil && info.Kind == hconfig.KindTranslator {
			if err := c.publishThroughTranslator(ctx, cmd, info); err != nil {
				return err
			}
			continue
		}
		rec := wire.NewRecord(wire.ActionPublish)
		rec.SourceHandle = cmd.SourceHandle
		rec.DestHandle = dest
		rec.Payload = cmd.Value.Bytes()
		rec.ActionTime = cmd.Time
		if err := c.Route(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// publishThroughTranslator converts cmd's published value into a message via
// the Translator registered under info's key, per spec §4.7
// "TranslatorFederate". If the lookup somehow misses despite info.Kind
// reporting KindTranslator, the value falls back to a plain publish record.
func (c *Core) publishThroughTranslator(ctx context.Context, cmd federate.Command, info *handle.BasicHandleInfo) error {
	c.mu.Lock()
	trHandle, ok := c.translatorByKey[info.Key]
	var tr *iface.Translator
	if ok {
		tr = c.translators.Translators[trHandle]
	}
	c.mu.Unlock()

	if tr == nil {
		rec := wire.NewRecord(wire.ActionPublish)
		rec.SourceHandle = cmd.SourceHandle
		rec.DestHandle = cmd.DestHandles[0]
		rec.Payload = cmd.Value.Bytes()
		rec.ActionTime = cmd.Time
		return c.Route(ctx, rec)
	}

	payload, msgTime, err := tr.TranslateValueToMessage(cmd.Value, cmd.Time)
	if err != nil {
		return err
	}
	rec := wire.NewRecord(wire.ActionSendMessage)
	rec.SourceHandle = cmd.SourceHandle
	rec.DestHandle = cmd.DestHandles[0]
	rec.Payload = payload
	rec.ActionTime = msgTime
	return c.Route(ctx, rec)
}

// SendMessage is the entry point a federate-facing API calls to send a
// message from an endpoint: it stamps the message (FederateState.SendMessage)
// then runs source-leg filter interposition, per spec §4.4 "filter
// interposition" — any filter bound to h's source leg sees the message, and
// its output (possibly rerouted, cloned, or dropped) is what actually gets
// routed.
func (c *Core) SendMessage(ctx context.Context, fed idspace.FederateID, h idspace.Handle, dest idspace.GlobalHandle, payload []byte, now htime.Time) error {
	c.mu.Lock()
	fs, ok := c.federates[fed]
	if !ok {
		c.mu.Unlock()
		return herrors.New(herrors.ErrUnknownInterface, herrors.InvalidObject, "core %q has no federate %s", c.Config.Name, fed)
	}
	cmd := fs.SendMessage(h, dest, payload, now)
	outs, err := c.runFiltersLocked([]iface.Message{cmd.Message}, c.sourceFilters[cmd.Message.Source])
	c.mu.Unlock()
	if err != nil {
		return err
	}

	for _, out := range outs {
		rec := wire.NewRecord(wire.ActionSendMessage)
		rec.SourceHandle = out.Source
		rec.DestHandle = out.Destination
		rec.Payload = out.Payload
		rec.ActionTime = out.Time
		if err := c.Route(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (c *Core) federateLocked(fed idspace.FederateID) (*federate.FederateState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fs, ok := c.federates[fed]
	return fs, ok
}

// Query answers a federation introspection request for one of the
// core-local targets spec §4.8 requires every node to answer: "name",
// "federates", "isinit". Anything else is forwarded to the parent.
func (c *Core) Query(ctx context.Context, q query.Query) query.Reply {
	switch q.QueryString {
	case "name":
		return query.Reply{ID: q.ID, Result: c.Config.Name}
	case "federates":
		c.mu.Lock()
		names := make([]string, 0, len(c.nameToFed))
		for name := range c.nameToFed {
			names = append(names, name)
		}
		c.mu.Unlock()
		return query.Reply{ID: q.ID, Result: fmt.Sprintf("%v", names)}
	case "isinit":
		return query.Reply{ID: q.ID, Result: fmt.Sprintf("%t", c.connected)}
	default:
		rec := wire.NewRecord(wire.ActionQuery)
		rec.Strings = []string{q.QueryString}
		rec.Counter = int32(q.ID)
		if err := c.comm.Send(ctx, idspace.ParentRoute, rec); err != nil {
			return query.Reply{ID: q.ID, Err: err.Error()}
		}
		reply, err := c.comm.Recv(ctx)
		if err != nil {
			return query.Reply{ID: q.ID, Err: err.Error()}
		}
		return query.Reply{ID: q.ID, Result: string(reply.Payload)}
	}
}

// Run drives the core's inbound message loop until ctx is canceled,
// dispatching every received Record through Route. A routing failure on one
// message is logged and the loop continues; Run returns only when Recv
// fails (including ctx cancellation).
func (c *Core) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			rec, err := c.comm.Recv(ctx)
			if err != nil {
				return err
			}
			if err := c.Route(ctx, rec); err != nil {
				c.log.Warn("routing failure", zap.Error(err))
			}
		}
	})
	return g.Wait()
}
