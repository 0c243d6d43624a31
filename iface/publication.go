// Package iface implements InterfaceInfo (spec §4.6): the runtime objects
// behind publications, inputs, endpoints, filters, and translators, plus the
// multi-input reduction logic of spec §4.3 "Value read". Grounded on the
// original source's interface-info split
// (_examples/original_source/src/helics/core/BasicHandleInfo.{hpp,cpp}) and
// the teacher's per-type state struct pattern
// (_examples/luxfi-consensus/protocol/nova/consensus.go's beamBlock).
package iface

import (
	"bytes"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// Tags is the small opaque (name -> value) map every interface carries, per
// spec §4.6. Reads always see the latest write.
type Tags struct {
	values map[string]string
}

// Set stores value under key, overwriting any prior value.
func (t *Tags) Set(key, value string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	t.values[key] = value
}

// Get returns the value stored under key, if any.
func (t *Tags) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Publication is a named, typed value stream with a set of current
// subscribers, per spec §3.
type Publication struct {
	Key         string
	Type        string
	Units       string
	Handle      idspace.GlobalHandle
	Tolerance   float64
	Subscribers []idspace.GlobalHandle

	lastValue     []byte
	lastValueTime htime.Time
	hasValue      bool

	Tags Tags
}

// NewPublication constructs an empty Publication.
func NewPublication(handle idspace.GlobalHandle, key, typ, units string) *Publication {
	return &Publication{Key: key, Type: typ, Units: units, Handle: handle}
}

// AddSubscriber records sub as a consumer of this publication.
func (p *Publication) AddSubscriber(sub idspace.GlobalHandle) {
	for _, s := range p.Subscribers {
		if s == sub {
			return
		}
	}
	p.Subscribers = append(p.Subscribers, sub)
}

// Publish records bytes as the new value at time now, clamped to at least
// allowedSendTime per spec §4.3 "Publish". It reports whether the value
// should actually be transmitted: false when onlyTransmitOnChange is set and
// bytes is unchanged from the last published value.
func (p *Publication) Publish(value []byte, now, allowedSendTime htime.Time, onlyTransmitOnChange bool) (htime.Time, bool) {
	stampedTime := htime.Max(now, allowedSendTime)
	if onlyTransmitOnChange && p.hasValue && bytes.Equal(p.lastValue, value) {
		return stampedTime, false
	}
	p.lastValue = append([]byte(nil), value...)
	p.lastValueTime = stampedTime
	p.hasValue = true
	return stampedTime, true
}

// LastValue returns the most recently published bytes and their stamped
// time.
func (p *Publication) LastValue() ([]byte, htime.Time, bool) {
	return p.lastValue, p.lastValueTime, p.hasValue
}

// ApplyOptions records cfg's change tolerance on the publication. No other
// option from cfg is applied and nothing is validated.
func (p *Publication) ApplyOptions(cfg hconfig.InterfaceConfig) {
	p.Tolerance = cfg.Tolerance
}
