package ir

import "slices"

// Attribute is a sealed interface for tag and parameter values.
// Only BoolAttr, IntAttr, FloatAttr, StringAttr and AnyAttr implement it.
type Attribute interface {
	attribute()
}

// BoolAttr is a boolean attribute.
type BoolAttr bool

func (BoolAttr) attribute() {}

// IntAttr is a 64-bit integer attribute.
type IntAttr int64

func (IntAttr) attribute() {}

// FloatAttr is a double precision attribute.
type FloatAttr float64

func (FloatAttr) attribute() {}

// StringAttr is a string attribute.
type StringAttr string

func (StringAttr) attribute() {}

// AnyAttr is an opaque typed blob. The IR never interprets Value.
type AnyAttr struct {
	TypeURL string
	Value   []byte
}

func (AnyAttr) attribute() {}

// Tags is a flat attribute map attached to IR entities.
type Tags map[string]Attribute

// Has returns true if the tag is present.
func (t Tags) Has(name string) bool {
	_, ok := t[name]
	return ok
}

// Clone returns a shallow copy; attributes are values.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		if a, ok := v.(AnyAttr); ok {
			a.Value = slices.Clone(a.Value)
			v = a
		}
		out[k] = v
	}
	return out
}

// ConstValue is the literal of a Constant statement: IntConst or FloatConst.
type ConstValue interface {
	constValue()
}

// IntConst is an integer literal.
type IntConst int64

func (IntConst) constValue() {}

// FloatConst is a floating point literal, kept at full precision.
type FloatConst float64

func (FloatConst) constValue() {}
