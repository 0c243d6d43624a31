// Package idspace implements the global identifier space for a HELICS-style
// federation: a single 32-bit signed integer range partitioned between
// federate ids, broker ids, and the sentinels used to address the local
// core/parent without a handshake.
package idspace

import "fmt"

// Base is the underlying integer type backing every id in this package.
type Base = int32

const (
	// FederateShift is the lowest valid global federate id. Below it, and
	// above Invalid, the range is reserved.
	FederateShift Base = 0x0002_0000
	// BrokerShift is the lowest valid global broker id. Ids in
	// [FederateShift, BrokerShift) are federates.
	BrokerShift Base = 0x7000_0000

	// ParentBrokerID addresses "the parent of this node" without needing to
	// know the parent's real id.
	ParentBrokerID Base = 0
	// RootBrokerID is the fixed id of the root broker.
	RootBrokerID Base = 1

	// Invalid marks an id that was never assigned.
	Invalid Base = -1
)

// GlobalID is a broker-or-federate identifier drawn from the partitioned
// 32-bit space described in spec §3.
type GlobalID struct {
	base Base
}

// NewGlobalID wraps a raw integer. Callers that need strong typing should
// prefer FederateID/BrokerID.
func NewGlobalID(base Base) GlobalID { return GlobalID{base: base} }

// Base returns the underlying integer.
func (g GlobalID) Base() Base { return g.base }

// IsFederate reports whether g falls in the federate sub-range.
func (g GlobalID) IsFederate() bool {
	return g.base >= FederateShift && g.base < BrokerShift
}

// IsBroker reports whether g falls in the broker sub-range, including the
// root broker's reserved id of 1.
func (g GlobalID) IsBroker() bool {
	return g.base >= BrokerShift || g.base == RootBrokerID
}

// IsValid reports whether g was ever assigned.
func (g GlobalID) IsValid() bool {
	return g.base != Invalid && g.base >= 0
}

// LocalIndex returns the offset of a broker id from BrokerShift, used to
// index into a broker's contiguous child-id block.
func (g GlobalID) LocalIndex() Base {
	return g.base - BrokerShift
}

func (g GlobalID) String() string {
	switch {
	case g.base == Invalid:
		return "invalid"
	case g.base == ParentBrokerID:
		return "parent"
	case g.base == RootBrokerID:
		return "root"
	case g.IsFederate():
		return fmt.Sprintf("fed(%d)", g.base)
	case g.IsBroker():
		return fmt.Sprintf("broker(%d)", g.base)
	default:
		return fmt.Sprintf("id(%d)", g.base)
	}
}

// FederateID is a GlobalID known to be in the federate sub-range.
type FederateID struct{ GlobalID }

// InvalidFederateID is the zero-value sentinel for "no federate".
var InvalidFederateID = FederateID{NewGlobalID(Invalid)}

// BrokerID is a GlobalID known to be in the broker sub-range.
type BrokerID struct{ GlobalID }

// InvalidBrokerID is the zero-value sentinel for "no broker".
var InvalidBrokerID = BrokerID{NewGlobalID(Invalid)}

// RootBroker is the well-known id of the root broker of any federation.
var RootBroker = BrokerID{NewGlobalID(RootBrokerID)}

// ParentBroker addresses the caller's own parent without naming it.
var ParentBroker = BrokerID{NewGlobalID(ParentBrokerID)}

// Handle is a per-core interface id. It is only unique within the core that
// issued it; combined with a FederateID it becomes a GlobalHandle.
type Handle int32

// InvalidHandle marks a handle that was never assigned.
const InvalidHandle Handle = -1

// GlobalHandle is the (global federate id, local handle) pair that uniquely
// addresses an interface across the whole federation.
type GlobalHandle struct {
	Federate FederateID
	Handle   Handle
}

// IsValid reports whether both halves of the pair were assigned.
func (h GlobalHandle) IsValid() bool {
	return h.Federate.IsValid() && h.Handle != InvalidHandle
}

func (h GlobalHandle) String() string {
	return fmt.Sprintf("%s#%d", h.Federate, h.Handle)
}

// RouteID names an outbound communicator slot on a core or broker.
type RouteID int32

const (
	// ParentRoute always addresses the node's parent connection.
	ParentRoute RouteID = 0
	// ControlRoute addresses the node's own control-message handler rather
	// than any peer.
	ControlRoute RouteID = -1
)

// Allocator hands out contiguous blocks of global ids, mirroring the
// REG_CORE/CORE_ACK and REG_BROKER/ACK handshakes of spec §4.4/§4.5: a
// parent allocates a block and the child then assigns from it locally.
type Allocator struct {
	next Base
}

// NewAllocator returns an Allocator that starts handing out ids at start,
// typically FederateShift (for a core allocating federate ids) or
// BrokerShift (for a broker allocating child ids).
func NewAllocator(start Base) *Allocator {
	return &Allocator{next: start}
}

// Reserve hands out a contiguous block of size n and returns its starting
// offset. Offsets granted by a single Allocator never overlap.
func (a *Allocator) Reserve(n int) Base {
	if n <= 0 {
		n = 1
	}
	offset := a.next
	a.next += Base(n)
	return offset
}
