// Package filterfed implements FilterFederate and TranslatorFederate (spec
// §4.7): implicit federates hosted inside a core whose "interfaces" are
// filter/translator objects rather than ordinary pubs/subs/endpoints. They
// hold catalogs and dispatch logic only and take no part in time
// coordination. Grounded on the
// original source's built-in filter catalog
// (_examples/original_source/src/helics/core/helicsCore.h's FilterTypes,
// include/helics/core/CoreTypes.hpp) and the teacher's per-object-kind
// registry pattern (_examples/luxfi-consensus/protocol/nova/consensus.go's
// beamBlock tracking).
package filterfed

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/iface"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// FilterFederate hosts a set of filters on behalf of a core, spec §4.7. It
// only holds the filter catalog and dispatch logic; it has no
// FederateState or TimeCoordinator of its own.
type FilterFederate struct {
	Filters map[idspace.GlobalHandle]*iface.Filter
}

// NewFilterFederate returns an empty FilterFederate.
func NewFilterFederate() *FilterFederate {
	return &FilterFederate{Filters: make(map[idspace.GlobalHandle]*iface.Filter)}
}

// Add registers a filter under handle.
func (ff *FilterFederate) Add(handle idspace.GlobalHandle, f *iface.Filter) {
	ff.Filters[handle] = f
}

// Apply runs the filter bound to handle against m, stamping a fresh message
// id on every message the filter produces (spec §4.3 command taxonomy
// "message-id"), since a filter may duplicate or rewrite messages.
func (ff *FilterFederate) Apply(handle idspace.GlobalHandle, m iface.Message) ([]iface.Message, error) {
	f := ff.Filters[handle]
	if f == nil {
		return []iface.Message{m}, nil
	}
	out, err := f.Run(m)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ID = uuid.New().String()
	}
	return out, nil
}

// TranslatorFederate hosts a set of translators, symmetric to FilterFederate.
type TranslatorFederate struct {
	Translators map[idspace.GlobalHandle]*iface.Translator
}

// NewTranslatorFederate returns an empty TranslatorFederate.
func NewTranslatorFederate() *TranslatorFederate {
	return &TranslatorFederate{Translators: make(map[idspace.GlobalHandle]*iface.Translator)}
}

// Add registers a translator under handle.
func (tf *TranslatorFederate) Add(handle idspace.GlobalHandle, t *iface.Translator) {
	tf.Translators[handle] = t
}

// --- Built-in filter operators, spec §4.7 ---

// DelayFilter shifts every message's time forward by a fixed amount.
type DelayFilter struct {
	Delay htime.Time
}

func (d DelayFilter) Apply(m iface.Message) ([]iface.Message, error) {
	m.Time = m.Time.Add(d.Delay)
	return []iface.Message{m}, nil
}

// RandomDelayFilter draws its delay from [Min, Max) on every invocation.
type RandomDelayFilter struct {
	Min, Max htime.Time
	Rand     *rand.Rand
}

func (r RandomDelayFilter) Apply(m iface.Message) ([]iface.Message, error) {
	span := int64(r.Max - r.Min)
	delay := r.Min
	if span > 0 {
		delay += htime.Time(r.Rand.Int63n(span))
	}
	m.Time = m.Time.Add(delay)
	return []iface.Message{m}, nil
}

// RandomDropFilter stochastically discards a message with probability P.
type RandomDropFilter struct {
	P    float64
	Rand *rand.Rand
}

func (r RandomDropFilter) Apply(m iface.Message) ([]iface.Message, error) {
	if r.Rand.Float64() < r.P {
		return nil, nil
	}
	return []iface.Message{m}, nil
}

// RerouteFilter rewrites a message's destination unconditionally.
type RerouteFilter struct {
	NewDestination idspace.GlobalHandle
}

func (r RerouteFilter) Apply(m iface.Message) ([]iface.Message, error) {
	m.Destination = r.NewDestination
	return []iface.Message{m}, nil
}

// CloneFilter duplicates the message to a fixed delivery endpoint in
// addition to letting the original continue toward its destination.
type CloneFilter struct {
	DeliveryEndpoint idspace.GlobalHandle
}

func (c CloneFilter) Apply(m iface.Message) ([]iface.Message, error) {
	clone := m
	clone.Destination = c.DeliveryEndpoint
	return []iface.Message{m, clone}, nil
}

// FirewallFilter denies messages whose source matches one of a set of
// blocked endpoints.
type FirewallFilter struct {
	Blocked map[idspace.GlobalHandle]bool
}

func (f FirewallFilter) Apply(m iface.Message) ([]iface.Message, error) {
	if f.Blocked[m.Source] {
		return nil, nil
	}
	return []iface.Message{m}, nil
}
