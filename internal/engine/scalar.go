package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/gx-org/backend/dtype"

	"github.com/roach88/stripe/internal/ir"
)

// Scalar is a single element value tagged with its element type.
//
// Integer, unsigned and bool payloads live in i (unsigned values as their
// two's complement bit pattern, bool as 0 or 1); floating point payloads
// live in f. Float32 values are kept rounded to float32 precision.
type Scalar struct {
	Type dtype.DataType
	i    int64
	f    float64
}

// IntScalar returns v converted to element type dt.
func IntScalar(dt dtype.DataType, v int64) Scalar {
	return Scalar{Type: dtype.Int64, i: v}.Cast(dt)
}

// UintScalar returns v converted to element type dt.
func UintScalar(dt dtype.DataType, v uint64) Scalar {
	return Scalar{Type: dtype.Uint64, i: int64(v)}.Cast(dt)
}

// FloatScalar returns v converted to element type dt.
func FloatScalar(dt dtype.DataType, v float64) Scalar {
	return Scalar{Type: dtype.Float64, f: v}.Cast(dt)
}

// BoolScalar returns a bool element.
func BoolScalar(v bool) Scalar {
	if v {
		return Scalar{Type: dtype.Bool, i: 1}
	}
	return Scalar{Type: dtype.Bool}
}

// ZeroScalar returns the zero element of dt.
func ZeroScalar(dt dtype.DataType) Scalar {
	return Scalar{Type: dt}
}

// Int returns the value as an int64, truncating floats.
func (s Scalar) Int() int64 {
	if ir.IsFloat(s.Type) {
		return int64(s.f)
	}
	return s.i
}

// Uint returns the value as a uint64, truncating floats.
func (s Scalar) Uint() uint64 {
	if ir.IsFloat(s.Type) {
		return uint64(s.f)
	}
	return uint64(s.i)
}

// Float returns the value as a float64.
func (s Scalar) Float() float64 {
	switch {
	case ir.IsFloat(s.Type):
		return s.f
	case s.Type == dtype.Uint64:
		return float64(uint64(s.i))
	default:
		return float64(s.i)
	}
}

// Bool returns true for any non-zero value.
func (s Scalar) Bool() bool {
	return !s.IsZero()
}

// IsZero reports whether s is the zero element.
func (s Scalar) IsZero() bool {
	if ir.IsFloat(s.Type) {
		return s.f == 0
	}
	return s.i == 0
}

// Cast converts s to element type dt. Narrowing conversions wrap like Go
// conversions; converting to bool tests for non-zero.
func (s Scalar) Cast(dt dtype.DataType) Scalar {
	if s.Type == dt {
		return s
	}
	switch dt {
	case dtype.Float64:
		return Scalar{Type: dt, f: s.Float()}
	case dtype.Float32:
		return Scalar{Type: dt, f: float64(float32(s.Float()))}
	case dtype.Bool:
		return BoolScalar(!s.IsZero())
	case dtype.Int32:
		return Scalar{Type: dt, i: int64(int32(s.Int()))}
	case dtype.Uint32:
		return Scalar{Type: dt, i: int64(uint32(s.Uint()))}
	case dtype.Uint64:
		return Scalar{Type: dt, i: int64(s.Uint())}
	default:
		return Scalar{Type: dt, i: s.Int()}
	}
}

// Equal reports whether two scalars have the same type and value.
func (s Scalar) Equal(o Scalar) bool {
	return s.Type == o.Type && s.i == o.i && s.f == o.f
}

// String formats the value without its type.
func (s Scalar) String() string {
	switch {
	case s.Type == dtype.Bool:
		return strconv.FormatBool(s.i != 0)
	case s.Type == dtype.Float32:
		return strconv.FormatFloat(s.f, 'g', -1, 32)
	case ir.IsFloat(s.Type):
		return strconv.FormatFloat(s.f, 'g', -1, 64)
	case s.Type == dtype.Uint64 || s.Type == dtype.Uint32:
		return strconv.FormatUint(uint64(s.i), 10)
	default:
		return strconv.FormatInt(s.i, 10)
	}
}

// Value returns the scalar as a native Go value (bool, int64, uint64 or
// float64) for encoding.
func (s Scalar) Value() any {
	switch {
	case s.Type == dtype.Bool:
		return s.i != 0
	case ir.IsFloat(s.Type):
		return s.f
	case s.Type == dtype.Uint64 || s.Type == dtype.Uint32:
		return uint64(s.i)
	default:
		return s.i
	}
}

// constScalar converts a literal to its scalar: integer literals are int64,
// float literals float64.
func constScalar(v ir.ConstValue) Scalar {
	switch c := v.(type) {
	case ir.IntConst:
		return IntScalar(dtype.Int64, int64(c))
	case ir.FloatConst:
		return FloatScalar(dtype.Float64, float64(c))
	default:
		return ZeroScalar(dtype.Int64)
	}
}

// ParseScalar converts a decoded JSON or YAML value to an element of dt.
// Accepted inputs are bool, Go integer and float types, and json.Number.
func ParseScalar(dt dtype.DataType, v any) (Scalar, error) {
	switch x := v.(type) {
	case bool:
		return BoolScalar(x).Cast(dt), nil
	case int:
		return IntScalar(dt, int64(x)), nil
	case int32:
		return IntScalar(dt, int64(x)), nil
	case int64:
		return IntScalar(dt, x), nil
	case uint32:
		return UintScalar(dt, uint64(x)), nil
	case uint64:
		return UintScalar(dt, x), nil
	case float32:
		return FloatScalar(dt, float64(x)), nil
	case float64:
		if !ir.IsFloat(dt) && x == math.Trunc(x) {
			return IntScalar(dt, int64(x)), nil
		}
		return FloatScalar(dt, x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return IntScalar(dt, n), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Scalar{}, fmt.Errorf("parse %q as %s: %w", x, ir.DTypeName(dt), err)
		}
		return FloatScalar(dt, f), nil
	default:
		return Scalar{}, fmt.Errorf("cannot use %T as %s element", v, ir.DTypeName(dt))
	}
}

// ParseScalars converts a list of decoded values with ParseScalar.
func ParseScalars(dt dtype.DataType, vals []any) ([]Scalar, error) {
	out := make([]Scalar, len(vals))
	for i, v := range vals {
		s, err := ParseScalar(dt, v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
