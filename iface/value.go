package iface

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/GMLC-TDC/HELICS-sub010/herrors"
)

// ValueKind enumerates the canonical value types of spec §6.
type ValueKind int

const (
	ValDouble ValueKind = iota
	ValInt64
	ValString
	ValBool
	ValComplex
	ValDoubleVector
	ValComplexVector
	ValNamedPoint
	ValRaw
)

// Complex is the canonical complex value: a pair of doubles.
type Complex struct{ Real, Imag float64 }

// NamedPoint is the canonical (string, double) pair value.
type NamedPoint struct {
	Name  string
	Value float64
}

// Value is a tagged union over the canonical value types of spec §6. Only
// one field is meaningful, selected by Kind.
type Value struct {
	Kind    ValueKind
	Double  float64
	Int     int64
	Str     string
	Boolean bool
	Cplx    Complex
	Vector  []float64
	CVector []Complex
	Point   NamedPoint
	Raw     []byte
}

func NewDouble(v float64) Value        { return Value{Kind: ValDouble, Double: v} }
func NewInt64(v int64) Value           { return Value{Kind: ValInt64, Int: v} }
func NewString(v string) Value         { return Value{Kind: ValString, Str: v} }
func NewBool(v bool) Value             { return Value{Kind: ValBool, Boolean: v} }
func NewDoubleVector(v []float64) Value { return Value{Kind: ValDoubleVector, Vector: v} }
func NewRaw(v []byte) Value            { return Value{Kind: ValRaw, Raw: v} }

// Bytes returns a stable byte encoding of v, used for change detection
// (spec §4.3's "bytes byte-equal" check) independent of the value's kind.
func (v Value) Bytes() []byte {
	switch v.Kind {
	case ValRaw:
		return v.Raw
	case ValString:
		return []byte(v.Str)
	default:
		b, _ := json.Marshal(v)
		return b
	}
}

// Equal reports whether v and other encode the same bytes, optionally
// within tolerance for numeric kinds (spec §4.3: "byte-equal (or within
// configured tolerance for numeric types)").
func (v Value) Equal(other Value, tolerance float64) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValDouble:
		return math.Abs(v.Double-other.Double) <= tolerance
	case ValDoubleVector:
		if len(v.Vector) != len(other.Vector) {
			return false
		}
		for i := range v.Vector {
			if math.Abs(v.Vector[i]-other.Vector[i]) > tolerance {
				return false
			}
		}
		return true
	default:
		return bytes.Equal(v.Bytes(), other.Bytes())
	}
}

// ToDouble extracts a scalar numeric interpretation of v, used by the
// arithmetic multi-input reductions.
func (v Value) ToDouble() (float64, error) {
	switch v.Kind {
	case ValDouble:
		return v.Double, nil
	case ValInt64:
		return float64(v.Int), nil
	case ValBool:
		if v.Boolean {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, herrors.New(herrors.ErrInvalidArgument, herrors.ExternalType, "value of kind %d is not numeric", v.Kind)
	}
}

// ToVector extracts a []float64 interpretation of v: a vector value as-is,
// or a scalar promoted to a single-element vector.
func (v Value) ToVector() ([]float64, error) {
	switch v.Kind {
	case ValDoubleVector:
		return v.Vector, nil
	case ValDouble, ValInt64, ValBool:
		d, err := v.ToDouble()
		if err != nil {
			return nil, err
		}
		return []float64{d}, nil
	default:
		return nil, herrors.New(herrors.ErrInvalidArgument, herrors.ExternalType, "value of kind %d is not vectorizable", v.Kind)
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValDouble:
		return fmt.Sprintf("%g", v.Double)
	case ValDoubleVector:
		return fmt.Sprintf("%v", v.Vector)
	case ValString:
		return v.Str
	case ValBool:
		return fmt.Sprintf("%t", v.Boolean)
	default:
		return fmt.Sprintf("%+v", v)
	}
}
