package timecoord

import (
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// DependencyInfo is one federate's view of a single upstream or downstream
// federate, renamed and trimmed from the original source's DependencyInfo
// (_examples/original_source/src/helics/core/TimeDependencies.h): MinNext
// is Tnext, MinTimeEvent is Te, MinDe is Tdemin.
type DependencyInfo struct {
	Federate     idspace.FederateID
	State        DependencyState
	MinNext      htime.Time // next possible message or value
	MinTimeEvent htime.Time // next currently scheduled event
	MinDe        htime.Time // min dependency event time
	Iterating    bool
	EventTriggered bool // spec §4.2 rule 3 exempts event-triggered deps
}

// disconnected reports whether this dependency has signaled DISCONNECT
// (spec §4.2: "treated as a dependency whose minNext = maxVal").
func (d *DependencyInfo) disconnected() bool {
	return d.MinNext == htime.MaxVal
}

// TimeDependencies is a per-federate set of dependency views, renamed from
// the original source's TimeDependencies container.
type TimeDependencies struct {
	byFederate map[idspace.FederateID]*DependencyInfo
	order      []idspace.FederateID
}

// NewTimeDependencies returns an empty dependency set.
func NewTimeDependencies() *TimeDependencies {
	return &TimeDependencies{byFederate: make(map[idspace.FederateID]*DependencyInfo)}
}

// IsDependency reports whether fed is already tracked.
func (t *TimeDependencies) IsDependency(fed idspace.FederateID) bool {
	_, ok := t.byFederate[fed]
	return ok
}

// Add inserts a new dependency, returning false if it already existed.
func (t *TimeDependencies) Add(fed idspace.FederateID) bool {
	if t.IsDependency(fed) {
		return false
	}
	t.byFederate[fed] = &DependencyInfo{Federate: fed}
	t.order = append(t.order, fed)
	return true
}

// Remove drops a dependency from consideration.
func (t *TimeDependencies) Remove(fed idspace.FederateID) {
	if !t.IsDependency(fed) {
		return
	}
	delete(t.byFederate, fed)
	for i, f := range t.order {
		if f == fed {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Get returns the dependency record for fed, or nil.
func (t *TimeDependencies) Get(fed idspace.FederateID) *DependencyInfo {
	return t.byFederate[fed]
}

// All returns every tracked dependency in insertion order.
func (t *TimeDependencies) All() []*DependencyInfo {
	out := make([]*DependencyInfo, 0, len(t.order))
	for _, f := range t.order {
		out = append(out, t.byFederate[f])
	}
	return out
}

// Disconnect marks fed as disconnected per spec §4.2's DISCONNECT handling.
func (t *TimeDependencies) Disconnect(fed idspace.FederateID) {
	if d := t.Get(fed); d != nil {
		d.MinNext = htime.MaxVal
		d.MinTimeEvent = htime.MaxVal
	}
}
