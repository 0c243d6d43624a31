// Package query implements the Query protocol of spec §4.8: federation
// introspection requests that travel either ORDERED (queued behind in-flight
// time coordination traffic) or FAST (answered out of band, without waiting
// on the time-advancement pipeline). Grounded on the original source's
// QueryData/ActionMessage query_id handling
// (_examples/original_source/src/helics/core/BrokerBase.cpp's
// generateQueryId) and the teacher's atomic counter idiom in
// _examples/luxfi-consensus/protocol/nova/consensus.go.
package query

import "sync"

// Mode selects a query's delivery discipline, spec §4.8.
type Mode int

const (
	// Ordered queries are interleaved with normal message traffic and see a
	// consistent federation state as of when they are processed.
	Ordered Mode = iota
	// Fast queries bypass the ordered pipeline for answers that do not
	// depend on in-flight time-coordination state (e.g. "isinit", "name").
	Fast
)

func (m Mode) String() string {
	if m == Fast {
		return "fast"
	}
	return "ordered"
}

// Query is one outstanding query request, spec §4.8.
type Query struct {
	ID          uint64
	Target      string
	QueryString string
	Mode        Mode
}

// Reply is the QUERY_REPLY shape of spec §4.8: a query id plus its result
// payload, or an error string if the target could not be resolved.
type Reply struct {
	ID     uint64
	Result string
	Err    string
}

// IDGenerator hands out monotonically increasing query ids, mirroring the
// original source's mutex-protected queryId counter (every query across a
// broker's lifetime gets a distinct id, never reused).
type IDGenerator struct {
	mu   sync.Mutex
	next uint64
}

// Next returns the next query id, starting at 1.
func (g *IDGenerator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next
}
