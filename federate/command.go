package federate

import (
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/iface"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// CommandKind enumerates the design-level command taxonomy of spec §4.3:
// "register-interface; publish-value; send-message; add-dependency /
// remove-dependency; time-request; time-grant; mode-change; query; log;
// disconnect." It is not a wire format (spec §6 keeps that abstract) — only
// the in-process shape a Core routes into a FederateState's mailbox.
type CommandKind int

const (
	CmdRegisterInterface CommandKind = iota
	CmdPublishValue
	CmdSendMessage
	CmdAddDependency
	CmdRemoveDependency
	CmdTimeRequest
	CmdTimeGrant
	CmdModeChange
	CmdQuery
	CmdLog
	CmdDisconnect
)

// Command is one entry in a FederateState's mailbox.
type Command struct {
	Kind CommandKind

	// PublishValue
	SourceHandle idspace.GlobalHandle
	DestHandles  []idspace.GlobalHandle
	Value        iface.Value
	Time         htime.Time

	// SendMessage
	Message iface.Message

	// AddDependency / RemoveDependency
	Dependency idspace.FederateID

	// TimeGrant
	Granted   htime.Time
	Iterating bool

	// ModeChange
	NewMode Mode

	// Query
	QueryID     uint64
	QueryString string

	// Log
	LogMessage string
}
