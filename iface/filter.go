package iface

import "github.com/GMLC-TDC/HELICS-sub010/idspace"

// FilterLeg selects whether a filter is bound to an endpoint's outgoing
// (source) or incoming (destination) side, per spec §3 "Filter".
type FilterLeg int

const (
	FilterOnSource FilterLeg = iota
	FilterOnDestination
)

// Operator transforms one message into zero or more messages. Built-in
// filter types (delay, random-delay, random-drop, reroute, clone, firewall)
// and custom user callbacks both implement this, per spec §4.7.
type Operator interface {
	Apply(m Message) ([]Message, error)
}

// OperatorFunc adapts a plain function to Operator.
type OperatorFunc func(m Message) ([]Message, error)

func (f OperatorFunc) Apply(m Message) ([]Message, error) { return f(m) }

// Filter is a message transformer bound to an endpoint's source or
// destination leg, per spec §3 "Filter".
type Filter struct {
	Key              string
	InputType        string
	OutputType       string
	DeliveryEndpoint idspace.GlobalHandle // used by reroute/clone
	Leg              FilterLeg
	BoundEndpoints   []idspace.GlobalHandle
	Op               Operator
	Tags             Tags
}

// NewFilter constructs a Filter with no operator bound yet.
func NewFilter(key string, leg FilterLeg) *Filter {
	return &Filter{Key: key, Leg: leg}
}

// BindEndpoint adds ep to the set of endpoints this filter is applied to.
func (f *Filter) BindEndpoint(ep idspace.GlobalHandle) {
	for _, e := range f.BoundEndpoints {
		if e == ep {
			return
		}
	}
	f.BoundEndpoints = append(f.BoundEndpoints, ep)
}

// Run invokes the filter's operator, passing the message through unchanged
// if no operator is bound.
func (f *Filter) Run(m Message) ([]Message, error) {
	if f.Op == nil {
		return []Message{m}, nil
	}
	return f.Op.Apply(m)
}
