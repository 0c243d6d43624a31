package wire

import (
	"context"

	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// Communicator is the abstract transport a Core or Broker sends Records
// through, per spec §6 "Transport: Non-goals — concrete networking
// protocol". Grounded on the teacher's router.Router route-table interface
// (_examples/luxfi-consensus/networking/router/router.go), generalized from
// chain ids to route ids.
type Communicator interface {
	// Send delivers rec on the connection registered at route. Implementations
	// may be in-process (a Go channel, for single-process federations) or
	// networked; neither is mandated by spec §6.
	Send(ctx context.Context, route idspace.RouteID, rec Record) error

	// Recv blocks until a Record arrives for this communicator, or ctx is
	// canceled.
	Recv(ctx context.Context) (Record, error)

	// AddRoute registers a new outbound connection under the caller-chosen
	// route, which future Send calls use to address it.
	AddRoute(route idspace.RouteID, target idspace.GlobalID) error

	// RemoveRoute tears down a previously registered route.
	RemoveRoute(route idspace.RouteID) error

	// LocalAddress identifies this communicator's own endpoint, used when
	// registering with a parent.
	LocalAddress() string

	// Close releases any resources held by the communicator.
	Close() error
}

// ChannelCommunicator is an in-process Communicator backed by Go channels,
// suitable for a single-process federation (spec §8's seed scenarios all run
// this way). It is not safe for use as a networked transport.
type ChannelCommunicator struct {
	address string
	inbox   chan Record
	routes  map[idspace.RouteID]chan Record
}

// NewChannelCommunicator constructs a ChannelCommunicator identified by
// address with an inbox of the given depth.
func NewChannelCommunicator(address string, inboxDepth int) *ChannelCommunicator {
	return &ChannelCommunicator{
		address: address,
		inbox:   make(chan Record, inboxDepth),
		routes:  make(map[idspace.RouteID]chan Record),
	}
}

// Inbox exposes the receive channel so a peer's AddRoute can be wired
// directly to it without a network hop.
func (c *ChannelCommunicator) Inbox() chan Record { return c.inbox }

func (c *ChannelCommunicator) Send(ctx context.Context, route idspace.RouteID, rec Record) error {
	ch, ok := c.routes[route]
	if !ok {
		return errUnknownRoute(route)
	}
	select {
	case ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ChannelCommunicator) Recv(ctx context.Context) (Record, error) {
	select {
	case rec := <-c.inbox:
		return rec, nil
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

// AddRoute wires route to target's inbox channel. target here is resolved by
// the caller (typically a Core/Broker's registry) to the peer's
// ChannelCommunicator.Inbox(); this method just records the slot, the actual
// channel is attached via Bind.
func (c *ChannelCommunicator) AddRoute(route idspace.RouteID, _ idspace.GlobalID) error {
	if _, exists := c.routes[route]; exists {
		return nil
	}
	c.routes[route] = nil
	return nil
}

// Bind attaches the destination channel for a route previously declared with
// AddRoute. Splitting route declaration from binding lets a registry create
// both communicators before either knows the other's channel.
func (c *ChannelCommunicator) Bind(route idspace.RouteID, dest chan Record) {
	c.routes[route] = dest
}

func (c *ChannelCommunicator) RemoveRoute(route idspace.RouteID) error {
	delete(c.routes, route)
	return nil
}

func (c *ChannelCommunicator) LocalAddress() string { return c.address }

func (c *ChannelCommunicator) Close() error {
	close(c.inbox)
	return nil
}

type routeError struct {
	route idspace.RouteID
}

func (e routeError) Error() string { return "wire: no route bound" }

func errUnknownRoute(route idspace.RouteID) error { return routeError{route: route} }
