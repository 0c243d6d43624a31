// Package timecoord implements TimeCoordinator (spec §4.2): the per-federate
// state machine that turns a federate's own requests plus its dependencies'
// reported times into grant decisions. Grounded on the original source's
// TimeDependencies/DependencyInfo shape
// (_examples/original_source/src/helics/core/TimeDependencies.h) and the
// teacher's "recompute from scratch on every relevant event" style in
// Topological.RecordPrism (_examples/luxfi-consensus/protocol/nova/consensus.go).
package timecoord

import (
	"go.uber.org/zap"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/helog"
	"github.com/GMLC-TDC/HELICS-sub010/herrors"
	"github.com/GMLC-TDC/HELICS-sub010/hmetrics"
	"github.com/GMLC-TDC/HELICS-sub010/hset"
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// TimeCoordinator decides when one federate may advance, per spec §4.2.
type TimeCoordinator struct {
	log     helog.Logger
	metrics *hmetrics.TimeCoordinatorMetrics

	fedID idspace.FederateID

	delta       htime.Time
	period      htime.Time
	offset      htime.Time
	inputDelay  htime.Time
	outputDelay htime.Time
	maxIter     int

	ignoreTimeMismatch bool
	terminateOnError   bool

	deps       *TimeDependencies
	dependents hset.Set[idspace.FederateID]

	hasGranted       bool
	lastGranted      htime.Time
	currentIteration int

	hasBarrier bool
	barrier    htime.Time

	// NotConverged accumulates federates (here, just this one) that hit
	// maxIterations without converging, per spec §8 scenario S5.
	NotConverged hset.Set[idspace.FederateID]

	errored bool
}

// New builds a TimeCoordinator for fedID from its time-related federate
// configuration.
func New(fedID idspace.FederateID, cfg hconfig.FederateConfig, log helog.Logger, metrics *hmetrics.TimeCoordinatorMetrics) *TimeCoordinator {
	return &TimeCoordinator{
		log:                log,
		metrics:            metrics,
		fedID:              fedID,
		delta:              cfg.TimeDelta,
		period:             cfg.Period,
		offset:             cfg.Offset,
		inputDelay:         cfg.InputDelay,
		outputDelay:        cfg.OutputDelay,
		maxIter:            cfg.MaxIterations,
		ignoreTimeMismatch: cfg.Flags.IgnoreTimeMismatch,
		terminateOnError:   cfg.Flags.TerminateOnError,
		deps:               NewTimeDependencies(),
		dependents:         hset.New[idspace.FederateID](4),
		lastGranted:        htime.Zero,
		NotConverged:       hset.New[idspace.FederateID](0),
	}
}

// AddDependency registers fed as an upstream dependency.
func (tc *TimeCoordinator) AddDependency(fed idspace.FederateID) bool {
	return tc.deps.Add(fed)
}

// RemoveDependency drops fed as an upstream dependency.
func (tc *TimeCoordinator) RemoveDependency(fed idspace.FederateID) {
	tc.deps.Remove(fed)
}

// AddDependent registers fed as a downstream consumer of this federate.
func (tc *TimeCoordinator) AddDependent(fed idspace.FederateID) {
	tc.dependents.Add(fed)
}

// UpdateDependency applies a TIME_REQUEST/TIME_GRANT/EXEC_REQUEST-shaped
// update from a peer federate, per spec §4.2's protocol message list.
func (tc *TimeCoordinator) UpdateDependency(fed idspace.FederateID, minNext, minTimeEvent, minDe htime.Time, state DependencyState, iterating bool) error {
	d := tc.deps.Get(fed)
	if d == nil {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "unknown dependency %s", fed)
	}
	d.MinNext = minNext
	d.MinTimeEvent = minTimeEvent
	d.MinDe = minDe
	d.State = state
	d.Iterating = iterating

	if state == StateError && !tc.ignoreTimeMismatch && tc.terminateOnError {
		tc.errored = true
		return herrors.New(herrors.ErrTimingError, herrors.ExecutionFailure,
			"dependency %s entered error state", fed)
	}
	return nil
}

// Disconnect marks fed as permanently disconnected (spec §4.2 DISCONNECT).
func (tc *TimeCoordinator) Disconnect(fed idspace.FederateID) {
	tc.deps.Disconnect(fed)
}

// SetBarrier raises the federation-wide barrier to b. Per spec §4.5,
// barriers are monotonic non-decreasing; a lower value is ignored.
func (tc *TimeCoordinator) SetBarrier(b htime.Time) {
	if tc.hasBarrier && b <= tc.barrier {
		return
	}
	tc.hasBarrier = true
	tc.barrier = b
	if tc.metrics != nil {
		tc.metrics.BarrierValue.Set(float64(b))
	}
}

// ClearBarrier removes any active barrier.
func (tc *TimeCoordinator) ClearBarrier() {
	tc.hasBarrier = false
	tc.barrier = htime.MaxVal
}

// AllowedSendTime returns the earliest time this federate may stamp on an
// outgoing value or message: currentGranted + outputDelay, per spec §4.2
// "Safe-send time".
func (tc *TimeCoordinator) AllowedSendTime() htime.Time {
	return tc.lastGranted.Add(tc.outputDelay)
}

// LastGranted returns the most recently granted time, or htime.Zero before
// any grant.
func (tc *TimeCoordinator) LastGranted() htime.Time { return tc.lastGranted }

// allowableTime returns the tightest upper bound the dependency graph and
// barrier currently impose, per spec §4.2 rule 3.
func (tc *TimeCoordinator) allowableTime() htime.Time {
	allowable := htime.MaxVal
	for _, d := range tc.deps.All() {
		if d.EventTriggered {
			continue
		}
		bound := d.MinNext.Add(tc.inputDelay)
		allowable = htime.Min(allowable, bound)
	}
	if tc.hasBarrier {
		allowable = htime.Min(allowable, tc.barrier)
	}
	return allowable
}

// CheckExecEntry reports whether this federate may be granted entry to
// executing mode, per spec §4.2's "State machine for executing entry":
// every dependency must have entered executing (or later) unless it is
// compatibly source-only/observer, represented here by the caller excluding
// such dependencies from the tracked set entirely.
func (tc *TimeCoordinator) CheckExecEntry() bool {
	for _, d := range tc.deps.All() {
		if d.disconnected() {
			continue
		}
		if d.State < StateExecGranted {
			return false
		}
	}
	return true
}

// RequestTime performs a single non-iterative time-advancement computation,
// per spec §4.2 rules 1-4 and the boundary rule "requestTime(t <
// currentGranted) is snapped up to currentGranted + epsilon". It returns
// (grantedTime, true) if a grant can be issued right now, or (lastGranted,
// false) if the dependency graph does not yet allow advancing past
// requested — the caller should retry once new dependency information
// arrives (a DEPENDENCY_ADD/TIME_GRANT from a peer).
func (tc *TimeCoordinator) RequestTime(requested htime.Time) (htime.Time, bool, error) {
	if tc.errored {
		return tc.lastGranted, false, herrors.New(herrors.ErrTimingError, herrors.ExecutionFailure, "coordinator for %s is in error state", tc.fedID)
	}

	wanted := requested
	if tc.hasGranted {
		floor := tc.lastGranted.Add(tc.delta)
		wanted = htime.Max(wanted, floor)
		if requested <= tc.lastGranted {
			wanted = htime.Max(wanted, tc.lastGranted.Add(htime.Epsilon))
		}
	}

	candidate := htime.SnapToGrid(wanted, tc.offset, tc.period)
	allowable := tc.allowableTime()

	if candidate > allowable {
		tc.log.Debug("time request blocked by dependency graph",
			zap.Int32("federate", tc.fedID.Base()), zap.Int64("requested", int64(candidate)), zap.Int64("allowable", int64(allowable)))
		return tc.lastGranted, false, nil
	}

	tc.hasGranted = true
	tc.lastGranted = candidate
	if tc.metrics != nil {
		tc.metrics.GrantsIssued.Inc()
		tc.metrics.CurrentGranted.Set(float64(candidate))
	}
	return candidate, true, nil
}

// RequestTimeIterative is RequestTime's iterative counterpart, per spec
// §4.2's no_iterations/iterate_if_needed/force_iteration distinction.
// converged reports whether the caller's own model reached a fixed point at
// the current logical time; it is ignored when kind is NoIterations, and for
// ForceIteration the coordinator always runs at least one more iteration
// (up to maxIterations) regardless of its value.
func (tc *TimeCoordinator) RequestTimeIterative(requested htime.Time, kind IterationRequest, converged bool) (htime.Time, bool, error) {
	if kind == NoIterations {
		t, granted, err := tc.RequestTime(requested)
		return t, false, wrapPending(granted, err)
	}

	if kind == ForceIteration || !converged {
		if tc.currentIteration < tc.maxIter {
			tc.currentIteration++
			if tc.metrics != nil {
				tc.metrics.IterationsRun.Inc()
			}
			return tc.lastGranted, true, nil
		}
		tc.NotConverged.Add(tc.fedID)
		tc.log.Warn("federate did not converge within max iterations",
			zap.Int32("federate", tc.fedID.Base()), zap.Int("maxIterations", tc.maxIter))
	}

	tc.currentIteration = 0
	t, granted, err := tc.RequestTime(requested)
	return t, false, wrapPending(granted, err)
}

// wrapPending turns "not yet granted, no error" into a sentinel the caller
// can retry on, keeping RequestTime's three-value return internal to this
// package's public two-value convenience wrapper.
func wrapPending(granted bool, err error) error {
	if err != nil {
		return err
	}
	if !granted {
		return ErrPending
	}
	return nil
}

// ErrPending indicates a time request cannot be granted yet because the
// dependency graph has not advanced far enough; it is not a failure.
var ErrPending = herrors.New(herrors.ErrTimingError, herrors.Discard, "time request pending on dependency graph")
