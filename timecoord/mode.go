package timecoord

// DependencyState mirrors the original source's DependencyInfo::time_state_t
// (_examples/original_source/src/helics/core/TimeDependencies.h), renamed to
// the vocabulary of spec §4.2.
type DependencyState int

const (
	StateInitializing DependencyState = iota
	StateExecRequested
	StateExecGranted
	StateTimeRequested
	StateTimeGranted
	StateError
)

func (s DependencyState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateExecRequested:
		return "exec_requested"
	case StateExecGranted:
		return "exec_granted"
	case StateTimeRequested:
		return "time_requested"
	case StateTimeGranted:
		return "time_granted"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IterationRequest selects how the coordinator should treat a request to
// advance, per spec §4.2.
type IterationRequest int

const (
	NoIterations IterationRequest = iota
	IterateIfNeeded
	ForceIteration
)
