package engine

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"

	"github.com/gx-org/backend/dtype"

	"github.com/roach88/stripe/internal/ir"
)

// Storage is the flat element array behind a buffer or a fresh refinement.
// Elements are little-endian, sized by dtype.Sizeof.
//
// Thread-safety: all element access goes through mu, so tuples running in
// parallel may load and combine into the same storage.
type Storage struct {
	mu   sync.Mutex
	dt   dtype.DataType
	size int
	data []byte
}

// NewStorage wraps data as elements of dt. data is copied.
// Fails with TypeMismatch when dt is unsupported or the length is not a
// whole number of elements.
func NewStorage(dt dtype.DataType, data []byte) (*Storage, error) {
	if ir.DTypeName(dt) == "" {
		return nil, runtimeErrorf(ir.ErrTypeMismatch, "", "unsupported element type %v", dt)
	}
	size := dtype.Sizeof(dt)
	if len(data)%size != 0 {
		return nil, runtimeErrorf(ir.ErrTypeMismatch, "", "%d bytes is not a whole number of %s elements", len(data), ir.DTypeName(dt))
	}
	return &Storage{dt: dt, size: size, data: slices.Clone(data)}, nil
}

// NewZeroStorage allocates zero-filled storage backing shape sh.
func NewZeroStorage(sh ir.Shape) (*Storage, error) {
	return NewStorage(sh.DType, make([]byte, sh.ByteSize()))
}

// DType returns the element type.
func (s *Storage) DType() dtype.DataType {
	return s.dt
}

// Len returns the number of elements.
func (s *Storage) Len() int64 {
	return int64(len(s.data) / s.size)
}

// Bytes returns a copy of the raw element data.
func (s *Storage) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data)
}

// Load returns the element at addr.
func (s *Storage) Load(addr int64) (Scalar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(addr); err != nil {
		return Scalar{}, err
	}
	return decodeElement(s.dt, s.data[addr*int64(s.size):]), nil
}

// Combine folds v into the element at addr with agg, under the storage lock.
// v is cast to the storage element type first.
func (s *Storage) Combine(addr int64, v Scalar, agg AggFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(addr); err != nil {
		return err
	}
	b := s.data[addr*int64(s.size):]
	cur := decodeElement(s.dt, b)
	encodeElement(b, agg(s.dt, cur, v.Cast(s.dt)).Cast(s.dt))
	return nil
}

func (s *Storage) check(addr int64) error {
	if addr < 0 || addr >= s.Len() {
		return runtimeErrorf(ir.ErrOutOfBounds, "", "element %d outside storage of %d %s elements", addr, s.Len(), ir.DTypeName(s.dt))
	}
	return nil
}

func decodeElement(dt dtype.DataType, b []byte) Scalar {
	le := binary.LittleEndian
	switch dt {
	case dtype.Bool:
		return BoolScalar(b[0] != 0)
	case dtype.Int32:
		return Scalar{Type: dt, i: int64(int32(le.Uint32(b)))}
	case dtype.Uint32:
		return Scalar{Type: dt, i: int64(le.Uint32(b))}
	case dtype.Int64, dtype.Uint64:
		return Scalar{Type: dt, i: int64(le.Uint64(b))}
	case dtype.Float32:
		return Scalar{Type: dt, f: float64(math.Float32frombits(le.Uint32(b)))}
	case dtype.Float64:
		return Scalar{Type: dt, f: math.Float64frombits(le.Uint64(b))}
	default:
		panic(fmt.Sprintf("decode: unsupported element type %v", dt))
	}
}

func encodeElement(b []byte, v Scalar) {
	le := binary.LittleEndian
	switch v.Type {
	case dtype.Bool:
		b[0] = byte(v.i & 1)
	case dtype.Int32, dtype.Uint32:
		le.PutUint32(b, uint32(v.i))
	case dtype.Int64, dtype.Uint64:
		le.PutUint64(b, uint64(v.i))
	case dtype.Float32:
		le.PutUint32(b, math.Float32bits(float32(v.f)))
	case dtype.Float64:
		le.PutUint64(b, math.Float64bits(v.f))
	default:
		panic(fmt.Sprintf("encode: unsupported element type %v", v.Type))
	}
}

// DecodeElements decodes raw buffer data as elements of dt.
func DecodeElements(dt dtype.DataType, data []byte) ([]Scalar, error) {
	s, err := NewStorage(dt, data)
	if err != nil {
		return nil, err
	}
	out := make([]Scalar, 0, s.Len())
	for i := range s.Len() {
		out = append(out, decodeElement(dt, s.data[i*int64(s.size):]))
	}
	return out, nil
}

// EncodeElements encodes values as raw buffer data of dt, casting each.
func EncodeElements(dt dtype.DataType, vals []Scalar) []byte {
	size := dtype.Sizeof(dt)
	out := make([]byte, len(vals)*size)
	for i, v := range vals {
		encodeElement(out[i*size:], v.Cast(dt))
	}
	return out
}

// View is a refinement resolved for one tuple: a base element in some
// storage plus the refinement's own strided shape.
type View struct {
	Name    string
	Shape   ir.Shape
	base    int64
	storage *Storage
	agg     AggFunc
}

// Load reads the element at the view's origin.
func (v *View) Load() (Scalar, error) {
	return v.storage.Load(v.base)
}

// Store combines s into the element at the view's origin using the
// refinement's aggregation.
func (v *View) Store(s Scalar) error {
	return v.storage.Combine(v.base, s, v.agg)
}

// addr maps a position within the view's shape to a storage address.
func (v *View) addr(pos []uint64) (int64, error) {
	if len(pos) != v.Shape.Rank() {
		return 0, fmt.Errorf("position has %d coordinates, view %q has rank %d", len(pos), v.Name, v.Shape.Rank())
	}
	a := v.base
	for d, p := range pos {
		dim := v.Shape.Dims[d]
		if p >= dim.Size {
			return 0, runtimeErrorf(ir.ErrOutOfBounds, "", "coordinate %d of view %q is %d, size %d", d, v.Name, p, dim.Size)
		}
		a += int64(p) * dim.Stride
	}
	return a, nil
}

// At reads the element at pos within the view's shape.
func (v *View) At(pos []uint64) (Scalar, error) {
	a, err := v.addr(pos)
	if err != nil {
		return Scalar{}, err
	}
	return v.storage.Load(a)
}

// Set overwrites the element at pos within the view's shape.
func (v *View) Set(pos []uint64, s Scalar) error {
	a, err := v.addr(pos)
	if err != nil {
		return err
	}
	return v.storage.Combine(a, s, assignAgg)
}

// Positions yields every position of the view's shape in row-major order.
// The yielded slice is reused between iterations.
func (v *View) Positions() iter.Seq[[]uint64] {
	return func(yield func([]uint64) bool) {
		dims := v.Shape.Dims
		for _, d := range dims {
			if d.Size == 0 {
				return
			}
		}
		pos := make([]uint64, len(dims))
		for {
			if !yield(pos) {
				return
			}
			d := len(dims) - 1
			for ; d >= 0; d-- {
				pos[d]++
				if pos[d] < dims[d].Size {
					break
				}
				pos[d] = 0
			}
			if d < 0 {
				return
			}
		}
	}
}
