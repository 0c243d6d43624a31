package federate

import (
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/timecoord"
)

// AsyncCall wraps one blocking federate operation so it can be started on a
// worker goroutine and later polled or awaited, spec §5: "every blocking
// call has a matching …Async + …Complete pair and an isAsyncOperationCompleted
// poller, enabling cooperative overlap on the federate thread." Grounded on
// the same one-shot-channel idiom as registry.JoinToken.
type AsyncCall[T any] struct {
	done   chan struct{}
	result T
	err    error
}

func newAsyncCall[T any](fn func() (T, error)) *AsyncCall[T] {
	a := &AsyncCall[T]{done: make(chan struct{})}
	go func() {
		a.result, a.err = fn()
		close(a.done)
	}()
	return a
}

// IsCompleted is the isAsyncOperationCompleted poller: non-blocking check of
// whether the call has finished.
func (a *AsyncCall[T]) IsCompleted() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Complete blocks until the call finishes and returns its result, the …Complete
// half of the pair.
func (a *AsyncCall[T]) Complete() (T, error) {
	<-a.done
	return a.result, a.err
}

// EnterInitializingModeAsync starts EnterInitializingMode on a worker
// goroutine.
func (f *FederateState) EnterInitializingModeAsync() *AsyncCall[struct{}] {
	return newAsyncCall(func() (struct{}, error) { return struct{}{}, f.EnterInitializingMode() })
}

// EnterExecutingModeAsync starts EnterExecutingMode on a worker goroutine.
func (f *FederateState) EnterExecutingModeAsync() *AsyncCall[struct{}] {
	return newAsyncCall(func() (struct{}, error) { return struct{}{}, f.EnterExecutingMode() })
}

// RequestTimeAsync starts RequestTime on a worker goroutine.
func (f *FederateState) RequestTimeAsync(requested htime.Time) *AsyncCall[htime.Time] {
	return newAsyncCall(func() (htime.Time, error) { return f.RequestTime(requested) })
}

// RequestTimeIterativeResult is RequestTimeIterative's async result pair.
type RequestTimeIterativeResult struct {
	Granted   htime.Time
	Iterating bool
}

// RequestTimeIterativeAsync starts RequestTimeIterative on a worker
// goroutine.
func (f *FederateState) RequestTimeIterativeAsync(requested htime.Time, kind timecoord.IterationRequest, converged bool) *AsyncCall[RequestTimeIterativeResult] {
	return newAsyncCall(func() (RequestTimeIterativeResult, error) {
		granted, iterating, err := f.RequestTimeIterative(requested, kind, converged)
		return RequestTimeIterativeResult{Granted: granted, Iterating: iterating}, err
	})
}

// FinalizeAsync starts Finalize on a worker goroutine.
func (f *FederateState) FinalizeAsync() *AsyncCall[struct{}] {
	return newAsyncCall(func() (struct{}, error) { return struct{}{}, f.Finalize() })
}
