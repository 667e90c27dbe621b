package store

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Predicate selects runs in QueryRuns.
//
// This is a sealed interface; the implementations are Equals, AtLeast and
// And. Every value is passed to SQLite as a parameter.
type Predicate interface {
	predicateNode()
}

// Equals matches runs whose column equals Value.
type Equals struct {
	Column string
	Value  any
}

// AtLeast matches runs whose counter column is >= Value.
type AtLeast struct {
	Column string
	Value  int64
}

// And matches runs satisfying every predicate. An empty And matches all.
type And struct {
	Predicates []Predicate
}

func (Equals) predicateNode()  {}
func (AtLeast) predicateNode() {}
func (And) predicateNode()     {}

// runColumnKinds lists the filterable columns of the runs table.
var runColumnKinds = map[string]columnKind{
	"id":              textColumn,
	"program_hash":    textColumn,
	"status":          textColumn,
	"error_kind":      textColumn,
	"engine_version":  textColumn,
	"parallelism":     intColumn,
	"activations":     intColumn,
	"tuples_visited":  intColumn,
	"tuples_admitted": intColumn,
	"statements":      intColumn,
	"max_statements":  intColumn,
}

type columnKind int

const (
	textColumn columnKind = iota
	intColumn
)

// compilePredicate renders p as a WHERE fragment with ? placeholders.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		kind, ok := runColumnKinds[pred.Column]
		if !ok {
			return "", nil, errors.Errorf("unknown run column %q", pred.Column)
		}
		param, err := columnParam(kind, pred.Value)
		if err != nil {
			return "", nil, errors.Wrapf(err, "column %s", pred.Column)
		}
		return pred.Column + " = ?", []any{param}, nil
	case AtLeast:
		kind, ok := runColumnKinds[pred.Column]
		if !ok {
			return "", nil, errors.Errorf("unknown run column %q", pred.Column)
		}
		if kind != intColumn {
			return "", nil, errors.Errorf("column %s is not a counter", pred.Column)
		}
		return pred.Column + " >= ?", []any{pred.Value}, nil
	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, inner := range pred.Predicates {
			sql, ps, err := compilePredicate(inner)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, ps...)
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	default:
		return "", nil, errors.Errorf("unsupported predicate type %T", p)
	}
}

// columnParam accepts any string-kinded value (RunStatus, ir.ErrorKind)
// for text columns and any signed integer for counters.
func columnParam(kind columnKind, v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch {
	case kind == textColumn && rv.Kind() == reflect.String:
		return rv.String(), nil
	case kind == intColumn && rv.CanInt():
		return rv.Int(), nil
	}
	return nil, errors.Errorf("cannot compare with %T", v)
}
