package timecoord

import (
	"testing"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/helog"
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
	"github.com/stretchr/testify/require"
)

func fed(n int32) idspace.FederateID {
	return idspace.FederateID{GlobalID: idspace.NewGlobalID(idspace.FederateShift + n)}
}

func newTC(t *testing.T, period htime.Time) *TimeCoordinator {
	t.Helper()
	cfg := hconfig.DefaultFederateConfig("f1")
	cfg.Period = period
	cfg.Offset = 0
	cfg.TimeDelta = htime.Epsilon
	return New(fed(0), cfg, helog.NewNoOp(), nil)
}

func TestRequestTimeGrantsWithoutDependencies(t *testing.T) {
	tc := newTC(t, 0)
	granted, ok, err := tc.RequestTime(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, htime.Time(5), granted)
}

func TestRequestTimeBoundaryBelowCurrentGranted(t *testing.T) {
	tc := newTC(t, 0)
	_, _, err := tc.RequestTime(5)
	require.NoError(t, err)

	granted, ok, err := tc.RequestTime(2) // t < currentGranted
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, htime.Time(5)+htime.Epsilon, granted)
}

func TestRequestTimeSnapsToPeriodGrid(t *testing.T) {
	tc := newTC(t, 1) // period=1, offset=0
	granted, ok, err := tc.RequestTime(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, htime.Time(3), granted)

	granted, ok, err = tc.RequestTime(4) // not exactly on grid math needed
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, htime.Time(4), granted)
}

func TestRequestTimeBlockedByDependency(t *testing.T) {
	tc := newTC(t, 0)
	d := fed(1)
	tc.AddDependency(d)
	require.NoError(t, tc.UpdateDependency(d, 2, 2, 0, StateTimeGranted, false))

	granted, ok, err := tc.RequestTime(5)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, htime.Zero, granted)
}

func TestBarrierBlocksGrant(t *testing.T) {
	// Scenario S3: broker barrier at 2, fed1 requests 3 -> blocked; fed2
	// requests 1 -> granted; clearing the barrier unblocks fed1 at 3.
	tc1 := newTC(t, 0)
	tc1.SetBarrier(2)
	_, ok, err := tc1.RequestTime(3)
	require.NoError(t, err)
	require.False(t, ok)

	tc2 := newTC(t, 0)
	tc2.SetBarrier(2)
	granted, ok, err := tc2.RequestTime(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, htime.Time(1), granted)

	tc1.ClearBarrier()
	granted, ok, err = tc1.RequestTime(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, htime.Time(3), granted)
}

func TestBarrierIsMonotonic(t *testing.T) {
	tc := newTC(t, 0)
	tc.SetBarrier(5)
	tc.SetBarrier(3) // lower: ignored, barrier stays 5
	granted, ok, err := tc.RequestTime(4)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, htime.Time(4), granted)

	_, ok, err = tc.RequestTime(6) // now blocked by the still-active barrier of 5
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIterativeConvergence(t *testing.T) {
	// Scenario S5: iterate_if_needed until convergence or max iterations.
	tc := newTC(t, 0)
	tc.maxIter = 3

	_, iterating, err := tc.RequestTimeIterative(1, IterateIfNeeded, false)
	require.NoError(t, err)
	require.True(t, iterating)

	_, iterating, err = tc.RequestTimeIterative(1, IterateIfNeeded, false)
	require.NoError(t, err)
	require.True(t, iterating)

	granted, iterating, err := tc.RequestTimeIterative(1, IterateIfNeeded, true)
	require.NoError(t, err)
	require.False(t, iterating)
	require.Equal(t, htime.Time(1), granted)
	require.Equal(t, 0, tc.NotConverged.Len())
}

func TestIterativeHitsMaxIterations(t *testing.T) {
	tc := newTC(t, 0)
	tc.maxIter = 1

	_, iterating, err := tc.RequestTimeIterative(1, IterateIfNeeded, false)
	require.NoError(t, err)
	require.True(t, iterating)

	// Still not converged but iterations exhausted: forced to advance.
	granted, iterating, err := tc.RequestTimeIterative(1, IterateIfNeeded, false)
	require.NoError(t, err)
	require.False(t, iterating)
	require.Equal(t, htime.Time(1), granted)
	require.Equal(t, 1, tc.NotConverged.Len())
}

func TestForceIterationIteratesEvenWhenConverged(t *testing.T) {
	// ForceIteration must differ from IterateIfNeeded: it keeps iterating
	// even when the caller reports convergence, up to maxIterations.
	tc := newTC(t, 0)
	tc.maxIter = 2

	_, iterating, err := tc.RequestTimeIterative(1, ForceIteration, true)
	require.NoError(t, err)
	require.True(t, iterating, "ForceIteration must iterate at least once regardless of converged")

	_, iterating, err = tc.RequestTimeIterative(1, ForceIteration, true)
	require.NoError(t, err)
	require.True(t, iterating)

	// Once maxIterations is exhausted, even ForceIteration must advance.
	granted, iterating, err := tc.RequestTimeIterative(1, ForceIteration, true)
	require.NoError(t, err)
	require.False(t, iterating)
	require.Equal(t, htime.Time(1), granted)
	require.Equal(t, 1, tc.NotConverged.Len())
}

func TestIterateIfNeededAdvancesImmediatelyWhenConverged(t *testing.T) {
	// Contrast with ForceIteration: IterateIfNeeded should advance on the
	// very first call once converged is true.
	tc := newTC(t, 0)
	tc.maxIter = 3

	granted, iterating, err := tc.RequestTimeIterative(1, IterateIfNeeded, true)
	require.NoError(t, err)
	require.False(t, iterating)
	require.Equal(t, htime.Time(1), granted)
}

func TestCheckExecEntry(t *testing.T) {
	tc := newTC(t, 0)
	d := fed(1)
	tc.AddDependency(d)
	require.False(t, tc.CheckExecEntry())

	require.NoError(t, tc.UpdateDependency(d, 0, 0, 0, StateExecGranted, false))
	require.True(t, tc.CheckExecEntry())
}

func TestAllowedSendTimeIncludesOutputDelay(t *testing.T) {
	cfg := hconfig.DefaultFederateConfig("f1")
	cfg.OutputDelay = 2
	tc := New(fed(0), cfg, helog.NewNoOp(), nil)
	_, _, _ = tc.RequestTime(5)
	require.Equal(t, htime.Time(7), tc.AllowedSendTime())
}
