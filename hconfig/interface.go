package hconfig

import "github.com/GMLC-TDC/HELICS-sub010/herrors"

// InterfaceKind distinguishes the five interface variants of spec §3.
type InterfaceKind int

const (
	KindPublication InterfaceKind = iota
	KindInput
	KindEndpoint
	KindFilter
	KindTranslator
)

func (k InterfaceKind) String() string {
	switch k {
	case KindPublication:
		return "publication"
	case KindInput:
		return "input"
	case KindEndpoint:
		return "endpoint"
	case KindFilter:
		return "filter"
	case KindTranslator:
		return "translator"
	default:
		return "unknown"
	}
}

// HandleOptions is the flag word of spec §3 "Shared interface options",
// encoded as named bits the way the teacher encodes small enumerations in
// config/constants.go.
type HandleOptions uint32

const (
	OptConnectionRequired HandleOptions = 1 << iota
	OptConnectionOptional
	OptSingleConnectionOnly
	OptMultipleConnectionsAllowed
	OptBufferData
	OptStrictTypeChecking
	OptIgnoreUnitMismatch
	OptOnlyTransmitOnChange
	OptOnlyUpdateOnChange
	OptIgnoreInterrupts
)

// Has reports whether bit is set.
func (o HandleOptions) Has(bit HandleOptions) bool { return o&bit != 0 }

// Set returns o with bit set to val.
func (o HandleOptions) Set(bit HandleOptions, val bool) HandleOptions {
	if val {
		return o | bit
	}
	return o &^ bit
}

// MultiInputMethod selects how an Input with multiple sources reduces them
// to a single value on read (spec §4.3 "Value read").
type MultiInputMethod int

const (
	MultiInputNoOp MultiInputMethod = iota
	MultiInputVectorize
	MultiInputAnd
	MultiInputOr
	MultiInputSum
	MultiInputDiff
	MultiInputMax
	MultiInputMin
	MultiInputAverage
)

// InterfaceConfig is the per-interface configuration surface of spec §6.
type InterfaceConfig struct {
	Key      string
	Type     string
	Units    string
	Kind     InterfaceKind
	Options  HandleOptions
	MultiInputMethod MultiInputMethod
	PriorityList     []string
	Tolerance        float64
}

// Validate reports the first configuration error found.
func (c InterfaceConfig) Validate() error {
	if c.Options.Has(OptConnectionRequired) && c.Options.Has(OptConnectionOptional) {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument,
			"interface %q cannot be both connection-required and connection-optional", c.Key)
	}
	if c.MultiInputMethod == MultiInputDiff && len(c.PriorityList) > 2 {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument,
			"diff reduction on input %q is binary-only", c.Key)
	}
	return nil
}
