package ir

import (
	"fmt"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

// IndexDType is the element type of scalars defined by LoadIndex.
const IndexDType = dtype.Int64

// Dim is one dimension of a strided layout.
type Dim struct {
	Size   uint64
	Stride int64
}

// Shape is the element type and strided layout of a refinement.
type Shape struct {
	DType dtype.DataType
	Dims  []Dim
}

// SimpleShape returns a row-major shape with the given sizes.
func SimpleShape(dt dtype.DataType, sizes ...uint64) Shape {
	dims := make([]Dim, len(sizes))
	stride := int64(1)
	for i := len(sizes) - 1; i >= 0; i-- {
		dims[i] = Dim{Size: sizes[i], Stride: stride}
		stride *= int64(sizes[i])
	}
	return Shape{DType: dt, Dims: dims}
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s.Dims)
}

// ElemCount returns the product of the dimension sizes.
func (s Shape) ElemCount() uint64 {
	n := uint64(1)
	for _, d := range s.Dims {
		n *= d.Size
	}
	return n
}

// Extent returns the number of elements needed to back the layout:
// 1 + Σ (size-1)*|stride|, or 0 when any dimension is empty.
func (s Shape) Extent() uint64 {
	ext := uint64(1)
	for _, d := range s.Dims {
		if d.Size == 0 {
			return 0
		}
		stride := d.Stride
		if stride < 0 {
			stride = -stride
		}
		ext += (d.Size - 1) * uint64(stride)
	}
	return ext
}

// BackendShape returns the flat backing layout as a backend shape.
func (s Shape) BackendShape() *shape.Shape {
	return &shape.Shape{DType: s.DType, AxisLengths: []int{int(s.Extent())}}
}

// ByteSize returns the size in bytes of storage backing s.
func (s Shape) ByteSize() int {
	bs := s.BackendShape()
	return bs.Size() * dtype.Sizeof(bs.DType)
}

// Equal reports whether two shapes have the same type and layout.
func (s Shape) Equal(o Shape) bool {
	if s.DType != o.DType || len(s.Dims) != len(o.Dims) {
		return false
	}
	for i := range s.Dims {
		if s.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

var dtypeNames = map[dtype.DataType]string{
	dtype.Bool:    "bool",
	dtype.Int32:   "int32",
	dtype.Int64:   "int64",
	dtype.Uint32:  "uint32",
	dtype.Uint64:  "uint64",
	dtype.Float32: "float32",
	dtype.Float64: "float64",
}

var dtypesByName = func() map[string]dtype.DataType {
	m := make(map[string]dtype.DataType, len(dtypeNames))
	for dt, name := range dtypeNames {
		m[name] = dt
	}
	return m
}()

// DTypeName returns the wire name of an element type, or "" if the type
// is not supported by the IR.
func DTypeName(dt dtype.DataType) string {
	return dtypeNames[dt]
}

// ParseDType resolves a wire name to an element type.
func ParseDType(name string) (dtype.DataType, error) {
	dt, ok := dtypesByName[name]
	if !ok {
		return dtype.Invalid, fmt.Errorf("unknown dtype %q", name)
	}
	return dt, nil
}

// IsFloat returns true for floating point element types.
func IsFloat(dt dtype.DataType) bool {
	return dt == dtype.Float32 || dt == dtype.Float64
}
