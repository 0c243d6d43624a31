// Package wire defines the abstract routing record and transport interface
// that a Core/Broker pass messages through, per spec §6's "Wire protocol:
// Non-goals — concrete byte format". Grounded on the original source's
// unified-envelope design (_examples/original_source/include/helics/core/ActionMessage.hpp,
// action_message_def.h) but deliberately left as an in-process struct rather
// than a serialized byte format: spec §1 scopes the wire encoding out, and no
// library in this pack supplies a HELICS-compatible framing to wire in
// (see DESIGN.md's protobuf entry).
package wire

import (
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// Action enumerates the routing record kinds a Core/Broker exchange, a
// condensed analogue of the original source's action_t enumeration
// restricted to what spec §4/§5/§6 actually describe.
type Action int

const (
	ActionNoOp Action = iota
	ActionRegCore
	ActionCoreAck
	ActionRegBroker
	ActionBrokerAck
	ActionRegFederate
	ActionFedAck
	ActionRegInterface
	ActionAddDependency
	ActionRemoveDependency
	ActionTimeRequest
	ActionTimeGrant
	ActionSetBarrier
	ActionClearBarrier
	ActionPublish
	ActionSendMessage
	ActionQuery
	ActionQueryReply
	ActionDisconnect
	ActionError
)

func (a Action) String() string {
	switch a {
	case ActionNoOp:
		return "no_op"
	case ActionRegCore:
		return "reg_core"
	case ActionCoreAck:
		return "core_ack"
	case ActionRegBroker:
		return "reg_broker"
	case ActionBrokerAck:
		return "broker_ack"
	case ActionRegFederate:
		return "reg_federate"
	case ActionFedAck:
		return "fed_ack"
	case ActionRegInterface:
		return "reg_interface"
	case ActionAddDependency:
		return "add_dependency"
	case ActionRemoveDependency:
		return "remove_dependency"
	case ActionTimeRequest:
		return "time_request"
	case ActionTimeGrant:
		return "time_grant"
	case ActionSetBarrier:
		return "set_barrier"
	case ActionClearBarrier:
		return "clear_barrier"
	case ActionPublish:
		return "publish"
	case ActionSendMessage:
		return "send_message"
	case ActionQuery:
		return "query"
	case ActionQueryReply:
		return "query_reply"
	case ActionDisconnect:
		return "disconnect"
	case ActionError:
		return "error"
	default:
		return "unknown"
	}
}

// Record is the single routing envelope every core/broker message uses
// internally, an analogue of ActionMessage. It carries enough of every
// action's payload in one shape so a routing loop can switch on Action
// without type assertions; unused fields for a given Action are zero.
type Record struct {
	Action Action

	Source idspace.GlobalID
	Dest   idspace.GlobalID

	SourceHandle idspace.GlobalHandle
	DestHandle   idspace.GlobalHandle

	Route idspace.RouteID

	ActionTime htime.Time

	Payload []byte

	// Counter carries a block-allocation handshake's size (in the REG_*
	// request) and the block's starting offset (in the CORE_ACK reply), and
	// is reused for query ids and flags where a small integer suffices.
	Counter int32

	Iterating bool

	Strings []string

	ErrCode int32
	ErrMsg  string
}

// NewRecord builds a bare Record for action, leaving every other field at
// its zero value for the caller to fill in.
func NewRecord(action Action) Record { return Record{Action: action} }
