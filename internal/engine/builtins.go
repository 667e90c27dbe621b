package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/gx-org/backend/dtype"

	"github.com/roach88/stripe/internal/ir"
)

// binaryOp is an element-wise operation with one implementation per
// numeric family. Operands are already of the result type.
type binaryOp struct {
	f func(x, y float64) float64
	i func(x, y int64) (int64, error)
	u func(x, y uint64) (uint64, error)
}

func isUnsigned(t dtype.DataType) bool {
	return t == dtype.Uint32 || t == dtype.Uint64
}

func (op binaryOp) apply(t dtype.DataType, x, y Scalar) (Scalar, error) {
	switch {
	case ir.IsFloat(t):
		return FloatScalar(t, op.f(x.Float(), y.Float())), nil
	case isUnsigned(t):
		v, err := op.u(x.Uint(), y.Uint())
		return UintScalar(t, v), err
	default:
		v, err := op.i(x.Int(), y.Int())
		return IntScalar(t, v), err
	}
}

var (
	opAdd = binaryOp{
		f: func(x, y float64) float64 { return x + y },
		i: func(x, y int64) (int64, error) { return x + y, nil },
		u: func(x, y uint64) (uint64, error) { return x + y, nil },
	}
	opSub = binaryOp{
		f: func(x, y float64) float64 { return x - y },
		i: func(x, y int64) (int64, error) { return x - y, nil },
		u: func(x, y uint64) (uint64, error) { return x - y, nil },
	}
	opMul = binaryOp{
		f: func(x, y float64) float64 { return x * y },
		i: func(x, y int64) (int64, error) { return x * y, nil },
		u: func(x, y uint64) (uint64, error) { return x * y, nil },
	}
	opDiv = binaryOp{
		f: func(x, y float64) float64 { return x / y },
		i: func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, fmt.Errorf("integer division by zero")
			}
			return x / y, nil
		},
		u: func(x, y uint64) (uint64, error) {
			if y == 0 {
				return 0, fmt.Errorf("integer division by zero")
			}
			return x / y, nil
		},
	}
	opMax = binaryOp{
		f: math.Max,
		i: func(x, y int64) (int64, error) { return max(x, y), nil },
		u: func(x, y uint64) (uint64, error) { return max(x, y), nil },
	}
	opMin = binaryOp{
		f: math.Min,
		i: func(x, y int64) (int64, error) { return min(x, y), nil },
		u: func(x, y uint64) (uint64, error) { return min(x, y), nil },
	}
)

func binaryIntrinsic(name string, op binaryOp) IntrinsicDef {
	return IntrinsicDef{Name: name, Inputs: 2, Outputs: 1, Fn: func(t dtype.DataType, args []Scalar) ([]Scalar, error) {
		v, err := op.apply(t, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return []Scalar{v}, nil
	}}
}

func unaryIntrinsic(name string, fn func(t dtype.DataType, x Scalar) Scalar) IntrinsicDef {
	return IntrinsicDef{Name: name, Inputs: 1, Outputs: 1, Fn: func(t dtype.DataType, args []Scalar) ([]Scalar, error) {
		return []Scalar{fn(t, args[0])}, nil
	}}
}

// compare computes x < y or x == y at element type t.
func compare(t dtype.DataType, x, y Scalar, less bool) bool {
	switch {
	case ir.IsFloat(t):
		if less {
			return x.Float() < y.Float()
		}
		return x.Float() == y.Float()
	case isUnsigned(t):
		if less {
			return x.Uint() < y.Uint()
		}
		return x.Uint() == y.Uint()
	default:
		if less {
			return x.Int() < y.Int()
		}
		return x.Int() == y.Int()
	}
}

// builtinIntrinsics is the default intrinsic catalog. Comparisons yield
// bool scalars; everything else yields the intrinsic's type.
func builtinIntrinsics() []IntrinsicDef {
	return []IntrinsicDef{
		binaryIntrinsic("add", opAdd),
		binaryIntrinsic("sub", opSub),
		binaryIntrinsic("mul", opMul),
		binaryIntrinsic("div", opDiv),
		binaryIntrinsic("max", opMax),
		binaryIntrinsic("min", opMin),
		unaryIntrinsic("neg", func(t dtype.DataType, x Scalar) Scalar {
			v, _ := opSub.apply(t, ZeroScalar(t), x)
			return v
		}),
		unaryIntrinsic("assign", func(_ dtype.DataType, x Scalar) Scalar { return x }),
		unaryIntrinsic("exp", func(t dtype.DataType, x Scalar) Scalar {
			return FloatScalar(t, math.Exp(x.Float()))
		}),
		unaryIntrinsic("relu", func(t dtype.DataType, x Scalar) Scalar {
			v, _ := opMax.apply(t, x, ZeroScalar(t))
			return v
		}),
		{Name: "cmp_lt", Inputs: 2, Outputs: 1, Fn: func(t dtype.DataType, args []Scalar) ([]Scalar, error) {
			return []Scalar{BoolScalar(compare(t, args[0], args[1], true))}, nil
		}},
		{Name: "cmp_eq", Inputs: 2, Outputs: 1, Fn: func(t dtype.DataType, args []Scalar) ([]Scalar, error) {
			return []Scalar{BoolScalar(compare(t, args[0], args[1], false))}, nil
		}},
		{Name: "cond", Inputs: 3, Outputs: 1, Fn: func(_ dtype.DataType, args []Scalar) ([]Scalar, error) {
			if args[0].Bool() {
				return []Scalar{args[1]}, nil
			}
			return []Scalar{args[2]}, nil
		}},
	}
}

func assignAgg(_ dtype.DataType, _, v Scalar) Scalar {
	return v
}

func foldAgg(op binaryOp) AggFunc {
	return func(t dtype.DataType, cur, v Scalar) Scalar {
		out, _ := op.apply(t, cur, v)
		return out
	}
}

// builtinAggs is the default aggregation catalog. "" is handled by
// Registry.Agg and also registered as "assign".
func builtinAggs() map[string]AggFunc {
	return map[string]AggFunc{
		"assign": assignAgg,
		"add":    foldAgg(opAdd),
		"mul":    foldAgg(opMul),
		"max":    foldAgg(opMax),
		"min":    foldAgg(opMin),
	}
}

func builtinSpecials() map[string]SpecialFunc {
	return map[string]SpecialFunc{
		"zero": zeroSpecial,
		"copy": copySpecial,
	}
}

// zeroSpecial overwrites every element of each output with zero.
func zeroSpecial(ctx context.Context, call SpecialCall) error {
	for _, out := range call.Outputs {
		for pos := range out.Positions() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := out.Set(pos, ZeroScalar(out.Shape.DType)); err != nil {
				return err
			}
		}
	}
	return nil
}

// copySpecial copies input 0 into output 0 element by element in row-major
// order. Element counts must agree; shapes may differ.
func copySpecial(ctx context.Context, call SpecialCall) error {
	if len(call.Inputs) != 1 || len(call.Outputs) != 1 {
		return fmt.Errorf("copy takes one input and one output, got %d and %d", len(call.Inputs), len(call.Outputs))
	}
	in, out := call.Inputs[0], call.Outputs[0]
	if in.Shape.ElemCount() != out.Shape.ElemCount() {
		return fmt.Errorf("copy from %d elements into %d", in.Shape.ElemCount(), out.Shape.ElemCount())
	}
	var vals []Scalar
	for pos := range in.Positions() {
		v, err := in.At(pos)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	i := 0
	for pos := range out.Positions() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := out.Set(pos, vals[i]); err != nil {
			return err
		}
		i++
	}
	return nil
}
