package iface

import (
	"gonum.org/v1/gonum/floats"

	"github.com/GMLC-TDC/HELICS-sub010/hconfig"
	"github.com/GMLC-TDC/HELICS-sub010/herrors"
	"github.com/GMLC-TDC/HELICS-sub010/htime"
	"github.com/GMLC-TDC/HELICS-sub010/idspace"
)

// sourceState is the per-source buffer an Input keeps for its ordered list
// of publications, per spec §3 "Input".
type sourceState struct {
	source      idspace.GlobalHandle
	values      []Value
	arrivals    []htime.Time
	updatedStep bool
}

func (s *sourceState) latest() (Value, bool) {
	if len(s.values) == 0 {
		return Value{}, false
	}
	return s.values[len(s.values)-1], true
}

// Input is a named, typed value stream subscribing to one or more
// publications, per spec §3 "Input" and §4.3 "Value arrival"/"Value read".
type Input struct {
	Key    string
	Type   string
	Units  string
	Handle idspace.GlobalHandle

	Method   hconfig.MultiInputMethod
	Priority []idspace.GlobalHandle // highest first; empty = no priority routing

	sources []idspace.GlobalHandle
	byFed   map[idspace.GlobalHandle]*sourceState

	Tags Tags
}

// NewInput constructs an empty Input.
func NewInput(handle idspace.GlobalHandle, key, typ, units string, method hconfig.MultiInputMethod) *Input {
	return &Input{
		Key: key, Type: typ, Units: units, Handle: handle, Method: method,
		byFed: make(map[idspace.GlobalHandle]*sourceState),
	}
}

// AddSource appends pub to this input's ordered source list; a source that
// is already listed is ignored. The list is not frozen on entry to
// executing mode: sources can be added at any time.
func (in *Input) AddSource(pub idspace.GlobalHandle) {
	if _, exists := in.byFed[pub]; exists {
		return
	}
	in.sources = append(in.sources, pub)
	in.byFed[pub] = &sourceState{source: pub}
}

// ClearPriorityList empties the priority list, per spec §3's
// "clear priority list" option.
func (in *Input) ClearPriorityList() { in.Priority = nil }

// BeginStep clears every source's "updated this step" flag, called by the
// FederateState at the start of each granted time.
func (in *Input) BeginStep() {
	for _, s := range in.byFed {
		s.updatedStep = false
	}
}

// OnValueArrival records an arriving publish from source at arrivalTime,
// implementing spec §4.3 "Value arrival" steps 1, 3, 4 (unit conversion,
// step 2, is the caller's responsibility since it needs the declared units
// of both ends). Returns false if the value was discarded because
// onlyUpdateOnChange was set and the value is unchanged.
func (in *Input) OnValueArrival(source idspace.GlobalHandle, v Value, arrivalTime htime.Time, onlyUpdateOnChange bool, tolerance float64) bool {
	s := in.byFed[source]
	if s == nil {
		in.AddSource(source)
		s = in.byFed[source]
	}
	if onlyUpdateOnChange {
		if last, ok := s.latest(); ok && last.Equal(v, tolerance) {
			return false
		}
	}
	s.values = append(s.values, v)
	s.arrivals = append(s.arrivals, arrivalTime)
	s.updatedStep = true
	return true
}

// GetValue returns the input's current reduced value, per spec §4.3's
// multi_input_handling_method switch.
func (in *Input) GetValue() (Value, error) {
	if len(in.Priority) > 0 {
		if v, ok := in.priorityValue(); ok {
			return v, nil
		}
		// fall through to ordinary reduction per spec: "if none, fall
		// through to prior behavior."
	}

	switch in.Method {
	case hconfig.MultiInputNoOp:
		return in.reduceNoOp()
	case hconfig.MultiInputVectorize:
		return in.reduceVectorize()
	case hconfig.MultiInputAnd:
		return in.reduceBool(true)
	case hconfig.MultiInputOr:
		return in.reduceBool(false)
	case hconfig.MultiInputSum, hconfig.MultiInputDiff, hconfig.MultiInputMax, hconfig.MultiInputMin, hconfig.MultiInputAverage:
		return in.reduceArithmetic()
	default:
		return in.reduceNoOp()
	}
}

func (in *Input) priorityValue() (Value, bool) {
	for _, src := range in.Priority {
		s := in.byFed[src]
		if s != nil && s.updatedStep {
			if v, ok := s.latest(); ok {
				return v, true
			}
		}
	}
	return Value{}, false
}

func (in *Input) reduceNoOp() (Value, error) {
	if len(in.sources) != 1 {
		return Value{}, herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument,
			"input %q has %d sources, no_op reduction requires exactly one", in.Key, len(in.sources))
	}
	s := in.byFed[in.sources[0]]
	v, ok := s.latest()
	if !ok {
		return Value{}, herrors.New(herrors.ErrInvalidArgument, herrors.InvalidObject, "input %q has no value yet", in.Key)
	}
	return v, nil
}

func (in *Input) reduceVectorize() (Value, error) {
	var nums []float64
	var strs []string
	for _, src := range in.sources {
		v, ok := in.byFed[src].latest()
		if !ok {
			continue
		}
		if v.Kind == ValString {
			strs = append(strs, v.Str)
			continue
		}
		vec, err := v.ToVector()
		if err != nil {
			return Value{}, err
		}
		nums = append(nums, vec...)
	}
	if len(strs) > 0 && len(nums) == 0 {
		// string sources concatenate as JSON array form per spec §4.3.
		return NewString(jsonArray(strs)), nil
	}
	return NewDoubleVector(nums), nil
}

func (in *Input) reduceBool(and bool) (Value, error) {
	result := and
	any := false
	for _, src := range in.sources {
		v, ok := in.byFed[src].latest()
		if !ok {
			continue
		}
		any = true
		if and {
			result = result && v.Boolean
		} else {
			result = result || v.Boolean
		}
	}
	if !any {
		return Value{}, herrors.New(herrors.ErrInvalidArgument, herrors.InvalidObject, "input %q has no value yet", in.Key)
	}
	return NewBool(result), nil
}

func (in *Input) reduceArithmetic() (Value, error) {
	vals := make([]float64, 0, len(in.sources))
	for _, src := range in.sources {
		v, ok := in.byFed[src].latest()
		if !ok {
			continue
		}
		// A vector source contributes its own sum to the scalar reduction,
		// matching HELICS's rule that a reduction source may itself be a
		// pre-aggregated vector (spec §8 scenario S2).
		if v.Kind == ValDoubleVector {
			vals = append(vals, floats.Sum(v.Vector))
			continue
		}
		d, err := v.ToDouble()
		if err != nil {
			return Value{}, err
		}
		vals = append(vals, d)
	}
	if len(vals) == 0 {
		return Value{}, herrors.New(herrors.ErrInvalidArgument, herrors.InvalidObject, "input %q has no value yet", in.Key)
	}

	switch in.Method {
	case hconfig.MultiInputSum:
		return NewDouble(floats.Sum(vals)), nil
	case hconfig.MultiInputDiff:
		if len(vals) != 2 {
			return Value{}, herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument,
				"diff reduction on input %q is binary-only, got %d sources", in.Key, len(vals))
		}
		return NewDouble(vals[0] - vals[1]), nil
	case hconfig.MultiInputMax:
		return NewDouble(floats.Max(vals)), nil
	case hconfig.MultiInputMin:
		return NewDouble(floats.Min(vals)), nil
	case hconfig.MultiInputAverage:
		return NewDouble(floats.Sum(vals) / float64(len(vals))), nil
	default:
		return Value{}, herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "unsupported arithmetic reduction")
	}
}

func jsonArray(strs []string) string {
	out := "["
	for i, s := range strs {
		if i > 0 {
			out += ","
		}
		out += `"` + s + `"`
	}
	return out + "]"
}
