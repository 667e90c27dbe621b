package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/scanner"

	"golang.org/x/exp/maps"
)

// Affine is a linear function over named index variables plus a constant
// offset: Offset + Σ Terms[name] * value(name).
//
// Terms is sparse. Constructors never store a zero coefficient, and an
// Affine with no terms has a nil Terms map.
type Affine struct {
	Offset int64
	Terms  map[string]int64
}

// Bindings resolves index names to concrete values.
// Implemented by Env and by the executor's scope chain.
type Bindings interface {
	Lookup(name string) (int64, bool)
}

// Env is a flat Bindings backed by a map.
type Env map[string]int64

// Lookup implements Bindings.
func (e Env) Lookup(name string) (int64, bool) {
	v, ok := e[name]
	return v, ok
}

// Const returns the constant affine c.
func Const(c int64) Affine {
	return Affine{Offset: c}
}

// Term returns the affine coeff*name.
func Term(name string, coeff int64) Affine {
	if coeff == 0 {
		return Affine{}
	}
	return Affine{Terms: map[string]int64{name: coeff}}
}

// Idx returns the affine 1*name.
func Idx(name string) Affine {
	return Term(name, 1)
}

// Add returns a + b.
func (a Affine) Add(b Affine) Affine {
	out := Affine{Offset: a.Offset + b.Offset}
	for name, c := range a.Terms {
		out = out.addTerm(name, c)
	}
	for name, c := range b.Terms {
		out = out.addTerm(name, c)
	}
	return out
}

// Scale returns k * a.
func (a Affine) Scale(k int64) Affine {
	out := Affine{Offset: a.Offset * k}
	for name, c := range a.Terms {
		out = out.addTerm(name, c*k)
	}
	return out
}

// addTerm adds c*name, dropping the term if the coefficient cancels to zero.
// The receiver's map is never mutated in place.
func (a Affine) addTerm(name string, c int64) Affine {
	next := a.Terms[name] + c
	terms := make(map[string]int64, len(a.Terms)+1)
	for k, v := range a.Terms {
		terms[k] = v
	}
	if next == 0 {
		delete(terms, name)
	} else {
		terms[name] = next
	}
	if len(terms) == 0 {
		terms = nil
	}
	return Affine{Offset: a.Offset, Terms: terms}
}

// Names returns the index names referenced by a, sorted.
func (a Affine) Names() []string {
	names := maps.Keys(a.Terms)
	slices.Sort(names)
	return names
}

// IsConstant returns true if a has no terms.
func (a Affine) IsConstant() bool {
	return len(a.Terms) == 0
}

// Equal reports whether a and b denote the same function.
func (a Affine) Equal(b Affine) bool {
	if a.Offset != b.Offset || len(a.Terms) != len(b.Terms) {
		return false
	}
	for name, c := range a.Terms {
		if b.Terms[name] != c {
			return false
		}
	}
	return true
}

// Eval computes Offset + Σ Terms[name] * value(name).
// Returns an UnboundIndex error if a term names an index b cannot resolve.
func (a Affine) Eval(b Bindings) (int64, error) {
	sum := a.Offset
	for name, c := range a.Terms {
		v, ok := b.Lookup(name)
		if !ok {
			return 0, Errorf(ErrUnboundIndex, "", "index %q is not in scope in %q", name, a.String())
		}
		sum += c * v
	}
	return sum, nil
}

// String renders the text form, terms in name order followed by the
// offset: "2*i + j - 5". The zero affine renders as "0".
func (a Affine) String() string {
	var buf strings.Builder
	for i, name := range a.Names() {
		c := a.Terms[name]
		switch {
		case i == 0 && c < 0:
			buf.WriteString("-")
		case i > 0 && c < 0:
			buf.WriteString(" - ")
		case i > 0:
			buf.WriteString(" + ")
		}
		if c < 0 {
			c = -c
		}
		if c != 1 {
			buf.WriteString(strconv.FormatInt(c, 10))
			buf.WriteString("*")
		}
		buf.WriteString(name)
	}
	switch {
	case buf.Len() == 0:
		buf.WriteString(strconv.FormatInt(a.Offset, 10))
	case a.Offset < 0:
		buf.WriteString(" - ")
		buf.WriteString(strconv.FormatUint(uint64(-a.Offset), 10))
	case a.Offset > 0:
		buf.WriteString(" + ")
		buf.WriteString(strconv.FormatInt(a.Offset, 10))
	}
	return buf.String()
}

// ParseAffine parses the text form produced by Affine.String.
// Terms may be written "c*name", "name*c", "name" or "c"; repeated names
// are summed.
//
// Grammar:
//
//	expr := ["-"] term (("+" | "-") term)*
//	term := int ["*" ident] | ident ["*" int]
func ParseAffine(src string) (Affine, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts
	s.Error = func(*scanner.Scanner, string) {}

	var out Affine
	tok := s.Scan()
	if tok == scanner.EOF {
		return Affine{}, fmt.Errorf("affine %q: empty expression", src)
	}
	sign := int64(1)
	if tok == '-' {
		sign = -1
		tok = s.Scan()
	}
	for {
		var err error
		out, tok, err = parseAffineTerm(&s, tok, sign, out, src)
		if err != nil {
			return Affine{}, err
		}
		switch tok {
		case scanner.EOF:
			return out, nil
		case '+':
			sign = 1
		case '-':
			sign = -1
		default:
			return Affine{}, fmt.Errorf("affine %q: unexpected %q at %s", src, s.TokenText(), s.Position)
		}
		tok = s.Scan()
	}
}

// parseAffineTerm consumes one term starting at tok and returns the updated
// affine together with the first token after the term.
func parseAffineTerm(s *scanner.Scanner, tok rune, sign int64, acc Affine, src string) (Affine, rune, error) {
	switch tok {
	case scanner.Int:
		c, err := strconv.ParseInt(s.TokenText(), 10, 64)
		if err != nil {
			return Affine{}, tok, fmt.Errorf("affine %q: %w", src, err)
		}
		next := s.Scan()
		if next != '*' {
			acc.Offset += sign * c
			return acc, next, nil
		}
		if s.Scan() != scanner.Ident {
			return Affine{}, tok, fmt.Errorf("affine %q: expected index name after %d*", src, c)
		}
		acc = acc.addTerm(s.TokenText(), sign*c)
		return acc, s.Scan(), nil
	case scanner.Ident:
		name := s.TokenText()
		next := s.Scan()
		if next != '*' {
			return acc.addTerm(name, sign), next, nil
		}
		if s.Scan() != scanner.Int {
			return Affine{}, tok, fmt.Errorf("affine %q: expected coefficient after %s*", src, name)
		}
		c, err := strconv.ParseInt(s.TokenText(), 10, 64)
		if err != nil {
			return Affine{}, tok, fmt.Errorf("affine %q: %w", src, err)
		}
		return acc.addTerm(name, sign*c), s.Scan(), nil
	default:
		return Affine{}, tok, fmt.Errorf("affine %q: unexpected %q", src, s.TokenText())
	}
}

// MustParseAffine is like ParseAffine but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseAffine(src string) Affine {
	a, err := ParseAffine(src)
	if err != nil {
		panic(err)
	}
	return a
}
