package iface

import (
	"sort"

	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// Message is a single addressed message traveling between endpoints, per
// spec §3 "Endpoint" and §4.3 "Message arrival".
type Message struct {
	Source      idspace.GlobalHandle
	Destination idspace.GlobalHandle
	Payload     []byte
	Type        string
	Time        htime.Time
	ID          string // spec §4.3 command taxonomy "message-id"
	SenderSeq   uint64
	Flags       uint32
}

// Endpoint is a named bidirectional message port, per spec §3 "Endpoint".
type Endpoint struct {
	Key                string
	Type               string
	Handle             idspace.GlobalHandle
	DefaultDestination idspace.GlobalHandle
	SourceTargets      []idspace.GlobalHandle
	DestTargets        []idspace.GlobalHandle

	fifo []Message
	Tags Tags
}

// NewEndpoint constructs an empty Endpoint.
func NewEndpoint(handle idspace.GlobalHandle, key, typ string) *Endpoint {
	return &Endpoint{Key: key, Type: typ, Handle: handle}
}

// Deliver appends an arriving message to this endpoint's FIFO in the
// ordering spec §4.3 defines: within the same time, messages are ordered
// by (source federate id, source handle id, sender sequence number).
func (e *Endpoint) Deliver(m Message) {
	e.fifo = append(e.fifo, m)
	sort.SliceStable(e.fifo, func(i, j int) bool {
		a, b := e.fifo[i], e.fifo[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Source.Federate.Base() != b.Source.Federate.Base() {
			return a.Source.Federate.Base() < b.Source.Federate.Base()
		}
		if a.Source.Handle != b.Source.Handle {
			return a.Source.Handle < b.Source.Handle
		}
		return a.SenderSeq < b.SenderSeq
	})
}

// HasMessage reports whether a message is queued.
func (e *Endpoint) HasMessage() bool { return len(e.fifo) > 0 }

// PendingCount returns the number of messages currently queued.
func (e *Endpoint) PendingCount() int { return len(e.fifo) }

// GetMessage pops and returns the earliest-ordered queued message.
func (e *Endpoint) GetMessage() (Message, bool) {
	if len(e.fifo) == 0 {
		return Message{}, false
	}
	m := e.fifo[0]
	e.fifo = e.fifo[1:]
	return m, true
}
