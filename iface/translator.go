package iface

import (
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// TranslatorOperator converts between value-form and message-form data, per
// spec §4.7. The trivial implementation is the identity conversion; a
// delay-injecting translator is permitted so long as it respects the
// hosting federate's output delay; neither this package nor Core's
// translator path checks that.
type TranslatorOperator interface {
	ToMessage(v Value) ([]byte, error)
	ToValue(payload []byte) (Value, error)
	ComputeNewMessageTime(valueTime htime.Time) htime.Time
	ComputeNewValueTime(messageTime htime.Time) htime.Time
}

// IdentityTranslatorOperator is the trivial TranslatorOperator: values and
// messages carry the same logical time, and payload bytes round-trip
// through Value.Bytes()/NewRaw.
type IdentityTranslatorOperator struct{}

func (IdentityTranslatorOperator) ToMessage(v Value) ([]byte, error) { return v.Bytes(), nil }
func (IdentityTranslatorOperator) ToValue(payload []byte) (Value, error) {
	return NewRaw(payload), nil
}
func (IdentityTranslatorOperator) ComputeNewMessageTime(valueTime htime.Time) htime.Time {
	return valueTime
}
func (IdentityTranslatorOperator) ComputeNewValueTime(messageTime htime.Time) htime.Time {
	return messageTime
}

// Translator is a bidirectional bridge exposing one logical interface as a
// publication, an input, AND an endpoint simultaneously, per spec §3
// "Translator" and §4.7 "TranslatorFederate".
type Translator struct {
	Key    string
	Handle idspace.GlobalHandle

	// The publication, input and endpoint facets this translator is
	// registered under in the owning HandleManager all share Handle.
	Subscribers   []idspace.GlobalHandle // endpoints fed by the publication side
	SourceInputs  []idspace.GlobalHandle // inputs feeding the endpoint side

	Op   TranslatorOperator
	Tags Tags
}

// NewTranslator constructs a Translator using the identity operator unless
// overridden.
func NewTranslator(handle idspace.GlobalHandle, key string) *Translator {
	return &Translator{Key: key, Handle: handle, Op: IdentityTranslatorOperator{}}
}

// TranslateValueToMessage packages a value published to the translator's
// publication side as a message for delivery to each subscribed endpoint,
// per spec §4.7.
func (t *Translator) TranslateValueToMessage(v Value, valueTime htime.Time) ([]byte, htime.Time, error) {
	payload, err := t.Op.ToMessage(v)
	if err != nil {
		return nil, 0, err
	}
	return payload, t.Op.ComputeNewMessageTime(valueTime), nil
}

// TranslateMessageToValue decodes a message arriving on the translator's
// endpoint side into a value for republication, per spec §4.7.
func (t *Translator) TranslateMessageToValue(payload []byte, messageTime htime.Time) (Value, htime.Time, error) {
	v, err := t.Op.ToValue(payload)
	if err != nil {
		return Value{}, 0, err
	}
	return v, t.Op.ComputeNewValueTime(messageTime), nil
}
