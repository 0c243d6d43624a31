// Package federate implements FederateState (spec §4.3): one federate's
// execution data, mode state machine, and single-producer/single-consumer
// command mailbox. Grounded on the original source's Federate::op_states
// enumeration (_examples/original_source/src/helics/application_api/Federate.h)
// renamed to spec §3's vocabulary, and on the teacher's
// atomic-state-plus-mutex pattern in
// _examples/luxfi-consensus/networking/handler/notifier.go's NotificationForwarder.
package federate

import "github.com/GMLC-TDC/HELICS-sub010/herrors"

// Mode is the federate lifecycle state of spec §3.
type Mode int

const (
	Created Mode = iota
	Initializing
	Executing
	Finalize
	PendingInit
	PendingExec
	PendingTime
	PendingIterativeTime
	PendingFinalize
	Error
)

func (m Mode) String() string {
	switch m {
	case Created:
		return "created"
	case Initializing:
		return "initializing"
	case Executing:
		return "executing"
	case Finalize:
		return "finalize"
	case PendingInit:
		return "pending_init"
	case PendingExec:
		return "pending_exec"
	case PendingTime:
		return "pending_time"
	case PendingIterativeTime:
		return "pending_iterative_time"
	case PendingFinalize:
		return "pending_finalize"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// validTransitions enumerates the legal (from, to) mode edges, per spec
// §3's "Mode is a finite-state machine" description. Error is reachable
// from every state and is handled separately in transition().
var validTransitions = map[Mode]map[Mode]bool{
	Created:              {PendingInit: true, Initializing: true},
	PendingInit:          {Initializing: true},
	Initializing:         {PendingExec: true, Executing: true},
	PendingExec:          {Executing: true},
	Executing:            {PendingTime: true, PendingIterativeTime: true, Executing: true, PendingFinalize: true, Finalize: true},
	PendingTime:          {Executing: true},
	PendingIterativeTime: {Executing: true},
	PendingFinalize:      {Finalize: true},
	Finalize:             {},
}

// transition validates and applies a mode change. Re-entering the current
// mode with the same target is idempotent (spec §8 property 6:
// "enterExecutingMode() called while already in executing returns success
// without state change").
func transition(from, to Mode) (Mode, error) {
	if from == to {
		return from, nil
	}
	if to == Error {
		return Error, nil
	}
	if from == Error {
		return from, herrors.New(herrors.ErrInvalidStateTransition, herrors.InvalidStateTransition,
			"federate is in error state, no further transitions are possible")
	}
	edges, ok := validTransitions[from]
	if !ok || !edges[to] {
		return from, herrors.New(herrors.ErrInvalidStateTransition, herrors.InvalidStateTransition,
			"invalid transition %s -> %s", from, to)
	}
	return to, nil
}
