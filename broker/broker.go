// Package broker implements Broker (spec §4.5): the interior router holding
// a child registry and global-name directory instead of FederateStates. It
// shares Core's message-processing-loop shape but resolves names across a
// subtree rather than hosting execution threads directly. Grounded on the
// original source's BrokerBase/CoreBroker split
// (_examples/original_source/src/helics/core/CoreBroker.{hpp,cpp}) and the
// teacher's router.Router child mapping
// (_examples/luxfi-consensus/networking/router/router.go).
package broker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/helog"
	"github.com/GMLC-TDC/HELICS-sub010/herrors"
	"github.com/GMLC-TDC/HELICS-sub010/hmetrics"
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
	"github.com/GMLC-TDC/HELICS-sub010/query"
	"github.com/GMLC-TDC/HELICS-sub010/registry"
	"github.com/GMLC-TDC/HELICS-sub010/wire"
)

// childInfo records one registered child (a core or a nested broker), per
// spec §4.5's "records (childName -> route)".
type childInfo struct {
	id    idspace.GlobalID
	name  string
	route idspace.RouteID
	// expectedFederates is the size of the id block this child received;
	// used to tell when the whole subtree has reported in.
	expectedFederates int
	reportedFederates int
}

// dataLink is a name-level directive surviving node ordering, per spec §4.5:
// it resolves once both endpoints have registered.
type dataLink struct {
	source, target string
	kind           string // "pubsub" or "filter"
}

// Broker is an interior node of the federation tree, spec §4.5.
type Broker struct {
	log     helog.Logger
	metrics *hmetrics.BrokerMetrics

	Config hconfig.BrokerConfig
	comm   wire.Communicator
	isRoot bool

	mu sync.Mutex

	ID           idspace.BrokerID
	allocator    *idspace.Allocator
	fedAllocator *idspace.Allocator

	children   map[idspace.Base]*childInfo
	nameToID   map[string]idspace.Base
	routeTable map[idspace.Base]idspace.RouteID

	// directory summarizes "who owns interface X" across the whole subtree,
	// populated by REG_INTERFACE announcements bubbling up, per spec §4.5
	// point 3.
	directory map[string]idspace.GlobalID

	pendingDemand map[string][]wire.Record
	pendingLinks  []dataLink

	timeCoord *timeBarrier

	queryIDs *query.IDGenerator

	initGranted bool

	// reg/regID/regJoin track this broker's entry in a process-wide
	// registry.Registry, per spec §9's explicit-lifecycle redesign; all
	// three are nil/zero until RegisterWithRegistry is called.
	reg     *registry.Registry
	regID   uint64
	regJoin *registry.JoinToken
}

// New constructs a Broker. isRoot marks the unique root broker of a
// federation (spec §3 "Broker - interior router; root broker exists uniquely
// per federation").
func New(cfg hconfig.BrokerConfig, comm wire.Communicator, isRoot bool, log helog.Logger, metrics *hmetrics.BrokerMetrics) *Broker {
	b := &Broker{
		log:           log,
		metrics:       metrics,
		Config:        cfg,
		comm:          comm,
		isRoot:        isRoot,
		children:      make(map[idspace.Base]*childInfo),
		nameToID:      make(map[string]idspace.Base),
		routeTable:    make(map[idspace.Base]idspace.RouteID),
		directory:     make(map[string]idspace.GlobalID),
		pendingDemand: make(map[string][]wire.Record),
		queryIDs:      &query.IDGenerator{},
		timeCoord:     newTimeBarrier(),
	}
	if isRoot {
		b.ID = idspace.RootBroker
		b.allocator = idspace.NewAllocator(idspace.BrokerShift + 1)
	}
	return b
}

// Connect performs the REG_BROKER/ACK handshake with this broker's own
// parent. Root brokers skip this (they have no parent).
func (b *Broker) Connect(ctx context.Context) error {
	if b.isRoot {
		return nil
	}
	rec := wire.NewRecord(wire.ActionRegBroker)
	rec.Strings = []string{b.Config.Name}
	if err := b.comm.Send(ctx, idspace.ParentRoute, rec); err != nil {
		return herrors.New(herrors.ErrConnectionFailure, herrors.ConnectionFailure, "broker %q: send reg_broker: %v", b.Config.Name, err)
	}
	ack, err := b.comm.Recv(ctx)
	if err != nil {
		return herrors.New(herrors.ErrConnectionFailure, herrors.ConnectionFailure, "broker %q: awaiting broker_ack: %v", b.Config.Name, err)
	}
	if ack.Action != wire.ActionBrokerAck {
		return herrors.New(herrors.ErrConnectionFailure, herrors.ConnectionFailure, "broker %q: expected broker_ack, got %s", b.Config.Name, ack.Action)
	}
	b.mu.Lock()
	b.ID = idspace.BrokerID{GlobalID: ack.Source}
	b.allocator = idspace.NewAllocator(ack.Source.Base() + 1)
	b.routeTable[idspace.ParentBroker.Base()] = idspace.ParentRoute
	b.mu.Unlock()
	return nil
}

// RegisterChild performs this broker's half of the REG_BROKER/REG_CORE
// handshake: allocate a contiguous id block and record (childName -> route),
// spec §4.5 point 2.
func (b *Broker) RegisterChild(name string, kind wire.Action, blockSize int, route idspace.RouteID) (idspace.GlobalID, idspace.Base, error) {
	if blockSize <= 0 {
		blockSize = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.nameToID[name]; exists {
		return idspace.GlobalID{}, 0, herrors.New(herrors.ErrRegistrationFailure, herrors.RegistrationFailure, "child %q already registered on broker %q", name, b.Config.Name)
	}

	var id idspace.GlobalID
	switch kind {
	case wire.ActionRegCore:
		offset := b.reserveFederateBlock(blockSize)
		id = idspace.NewGlobalID(b.allocator.Reserve(1))
		b.children[id.Base()] = &childInfo{id: id, name: name, route: route, expectedFederates: blockSize}
		b.nameToID[name] = id.Base()
		b.routeTable[id.Base()] = route
		if b.metrics != nil {
			b.metrics.ChildrenRegistered.Set(float64(len(b.children)))
		}
		b.log.Info("core registered", zap.String("broker", b.Config.Name), zap.String("core", name), zap.Int32("offset", offset))
		return id, offset, nil
	case wire.ActionRegBroker:
		childID := b.allocator.Reserve(1)
		id = idspace.NewGlobalID(childID)
		b.children[id.Base()] = &childInfo{id: id, name: name, route: route}
		b.nameToID[name] = id.Base()
		b.routeTable[id.Base()] = route
		if b.metrics != nil {
			b.metrics.ChildrenRegistered.Set(float64(len(b.children)))
		}
		b.log.Info("child broker registered", zap.String("broker", b.Config.Name), zap.String("child", name))
		return id, 0, nil
	default:
		return idspace.GlobalID{}, 0, herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "unexpected registration action %s", kind)
	}
}

// reserveFederateBlock hands out a federate-id block to a newly registering
// core, via a dedicated federate allocator so core blocks never collide with
// broker ids.
func (b *Broker) reserveFederateBlock(n int) idspace.Base {
	if b.fedAllocator == nil {
		b.fedAllocator = idspace.NewAllocator(idspace.FederateShift)
	}
	return b.fedAllocator.Reserve(n)
}

// AnnounceInterface records that interfaceName is owned by owner somewhere
// in this broker's subtree and, if this is not the root, bubbles the
// announcement further up, per spec §4.5 point 3. It also resolves any
// pendingDemand queued under interfaceName.
func (b *Broker) AnnounceInterface(ctx context.Context, interfaceName string, owner idspace.GlobalID) error {
	b.mu.Lock()
	b.directory[interfaceName] = owner
	waiting := b.pendingDemand[interfaceName]
	delete(b.pendingDemand, interfaceName)
	b.mu.Unlock()

	for _, rec := range waiting {
		if err := b.comm.Send(ctx, b.routeTable[owner.Base()], rec); err != nil {
			return err
		}
	}
	if b.isRoot {
		return nil
	}
	rec := wire.NewRecord(wire.ActionRegInterface)
	rec.Source = owner
	rec.Strings = []string{interfaceName}
	return b.comm.Send(ctx, idspace.ParentRoute, rec)
}

// ResolveInterface looks up interfaceName in this broker's directory. If
// unknown, rec is queued in pendingDemand to be flushed once AnnounceInterface
// learns of it, per spec §4.4 "unknown-handle table".
func (b *Broker) ResolveInterface(interfaceName string, demand wire.Record) (idspace.GlobalID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owner, ok := b.directory[interfaceName]
	if !ok {
		b.pendingDemand[interfaceName] = append(b.pendingDemand[interfaceName], demand)
	}
	return owner, ok
}

// DataLink records a name-level publish/subscribe directive (spec §4.5
// "Data links"), resolved once both source and target are known. Until then
// it sits in pendingLinks.
func (b *Broker) DataLink(source, target string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingLinks = append(b.pendingLinks, dataLink{source: source, target: target, kind: "pubsub"})
}

// AddSourceFilterToEndpoint records a filter-to-endpoint binding directive,
// symmetric to DataLink, per spec §4.5.
func (b *Broker) AddSourceFilterToEndpoint(filter, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingLinks = append(b.pendingLinks, dataLink{source: filter, target: endpoint, kind: "filter"})
}

// PendingLinks returns the directives not yet resolvable because one or both
// named endpoints are still unregistered.
func (b *Broker) PendingLinks() []dataLink {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]dataLink, len(b.pendingLinks))
	copy(out, b.pendingLinks)
	return out
}

// CheckInitGrant evaluates spec §4.5 point 4's three conditions on the root
// broker. Once they hold, it records that init was granted and returns true
// (and keeps returning true on later calls); it does not send any record to
// children. registeredFederates, unresolvedRequired and hasBlockingCycle are
// supplied by the caller, which has the full dependency-graph and
// connection-requirement view this package does not duplicate.
func (b *Broker) CheckInitGrant(ctx context.Context, expectedFederates, registeredFederates int, unresolvedRequired bool, hasBlockingCycle bool) (bool, error) {
	if !b.isRoot {
		return false, herrors.New(herrors.ErrInvalidStateTransition, herrors.InvalidStateTransition, "only the root broker issues init_grant")
	}
	b.mu.Lock()
	already := b.initGranted
	b.mu.Unlock()
	if already {
		return true, nil
	}
	if registeredFederates < expectedFederates || unresolvedRequired || hasBlockingCycle {
		return false, nil
	}
	b.mu.Lock()
	b.initGranted = true
	b.mu.Unlock()
	b.log.Info("init_grant broadcast", zap.String("broker", b.Config.Name))
	return true, nil
}

// SetBarrier raises the federation-wide time barrier, spec §4.5 "Time
// barrier": strictly monotonic non-decreasing, lowering is ignored.
func (b *Broker) SetBarrier(t htime.Time) {
	b.timeCoord.set(t)
	if b.metrics != nil {
		b.metrics.BarrierSets.Inc()
	}
}

// ClearBarrier removes the federation-wide time barrier.
func (b *Broker) ClearBarrier() {
	b.timeCoord.clear()
}

// Barrier returns the current barrier value and whether one is active.
func (b *Broker) Barrier() (htime.Time, bool) {
	return b.timeCoord.get()
}

// Run drives the broker's inbound message loop until ctx is canceled.
func (b *Broker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			rec, err := b.comm.Recv(ctx)
			if err != nil {
				return err
			}
			if err := b.handle(ctx, rec); err != nil {
				b.log.Warn("broker message handling failure", zap.Error(err))
			}
		}
	})
	return g.Wait()
}

func (b *Broker) handle(ctx context.Context, rec wire.Record) error {
	switch rec.Action {
	case wire.ActionRegCore, wire.ActionRegBroker:
		name := ""
		if len(rec.Strings) > 0 {
			name = rec.Strings[0]
		}
		blockSize := int(rec.Counter)
		id, offset, err := b.RegisterChild(name, rec.Action, blockSize, rec.Route)
		if err != nil {
			return err
		}
		ackAction := wire.ActionCoreAck
		if rec.Action == wire.ActionRegBroker {
			ackAction = wire.ActionBrokerAck
		}
		ack := wire.NewRecord(ackAction)
		ack.Source = id
		ack.Counter = offset
		return b.comm.Send(ctx, rec.Route, ack)
	case wire.ActionRegInterface:
		if len(rec.Strings) == 0 {
			return nil
		}
		return b.AnnounceInterface(ctx, rec.Strings[0], rec.Source)
	case wire.ActionSetBarrier:
		b.SetBarrier(rec.ActionTime)
		return nil
	case wire.ActionClearBarrier:
		b.ClearBarrier()
		return nil
	case wire.ActionError:
		return b.broadcastGlobalError(ctx, rec)
	case wire.ActionDisconnect:
		b.removeChild(rec.Source.Base())
		if !b.isRoot {
			return b.comm.Send(ctx, idspace.ParentRoute, rec)
		}
		return nil
	default:
		// Everything else is forwarded per the destination's route, same as
		// a Core's routing decision (spec §4.4/§4.5 share this fallback).
		if route, ok := b.routeTable[rec.Dest.Base()]; ok {
			return b.comm.Send(ctx, route, rec)
		}
		if !b.isRoot {
			return b.comm.Send(ctx, idspace.ParentRoute, rec)
		}
		return nil
	}
}

// removeChild drops a child that reported disconnection, spec §5
// "waitForDisconnect — until child count reaches zero or deadline".
func (b *Broker) removeChild(id idspace.Base) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.children[id]; ok {
		delete(b.nameToID, c.name)
	}
	delete(b.children, id)
	delete(b.routeTable, id)
	if b.metrics != nil {
		b.metrics.ChildrenRegistered.Set(float64(len(b.children)))
	}
}

// broadcastGlobalError implements spec §7's GLOBAL_ERROR propagation: every
// known child is sent the same error record and, if this is not the root,
// it is also relayed upward.
func (b *Broker) broadcastGlobalError(ctx context.Context, rec wire.Record) error {
	b.mu.Lock()
	routes := make([]idspace.RouteID, 0, len(b.children))
	for _, route := range b.routeTable {
		routes = append(routes, route)
	}
	b.mu.Unlock()

	for _, route := range routes {
		if err := b.comm.Send(ctx, route, rec); err != nil {
			b.log.Warn("global_error broadcast failed", zap.Error(err))
		}
	}
	if b.metrics != nil {
		b.metrics.GlobalErrors.Inc()
	}
	return nil
}

// ChildCount returns the number of currently registered children.
func (b *Broker) ChildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.children)
}

// WaitForDisconnect blocks until every child has disconnected or ctx is
// done, spec §5's wait-for-disconnect suspension point. Once every child has
// gone, it also releases this broker's own registry reference (if any), so
// a broker registered via RegisterWithRegistry tears itself down as part of
// the normal disconnect path.
func (b *Broker) WaitForDisconnect(ctx context.Context) bool {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.ChildCount() == 0 {
			if err := b.Close(); err != nil {
				b.log.Warn("broker close after disconnect failed", zap.Error(err))
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

// RegisterWithRegistry registers this broker under a process-wide
// registry.Registry so other components can hold a stable id rather than a
// direct pointer, per spec §9's redesign of the original source's
// TripWire/delayedDestructor scheme.
func (b *Broker) RegisterWithRegistry(reg *registry.Registry) (uint64, *registry.JoinToken, error) {
	id, join, err := reg.Register(b.Config.Name, b)
	if err != nil {
		return 0, nil, err
	}
	b.mu.Lock()
	b.reg = reg
	b.regID = id
	b.regJoin = join
	b.mu.Unlock()
	return id, join, nil
}

// Shutdown implements registry.Handle: it closes this broker's communicator
// connection. Called by the Registry exactly once, when the broker's
// reference count reaches zero.
func (b *Broker) Shutdown() {
	_ = b.comm.Close()
}

// Close releases this broker's own reference in the registry it was
// registered with. If the broker was never registered, it shuts itself
// down directly instead.
func (b *Broker) Close() error {
	b.mu.Lock()
	reg, id := b.reg, b.regID
	b.mu.Unlock()
	if reg == nil {
		b.Shutdown()
		return nil
	}
	return reg.Release(id)
}

// timeBarrier is the monotonic federation-wide barrier of spec §4.5,
// factored out of TimeCoordinator's per-federate barrier since a Broker
// enforces it federation-wide rather than per dependency.
type timeBarrier struct {
	mu     sync.Mutex
	has    bool
	value  htime.Time
}

func newTimeBarrier() *timeBarrier { return &timeBarrier{} }

func (t *timeBarrier) set(v htime.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.has || v > t.value {
		t.has = true
		t.value = v
	}
}

func (t *timeBarrier) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.has = false
}

func (t *timeBarrier) get() (htime.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.has
}
