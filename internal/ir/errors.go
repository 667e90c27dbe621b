package ir

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes IR errors. The same kinds are reported by static
// validation and by the executor.
type ErrorKind string

const (
	// ErrUnboundIndex indicates an affine term names an index that is not in scope.
	ErrUnboundIndex ErrorKind = "UnboundIndex"

	// ErrUndefinedRefinement indicates a refinement or buffer name does not resolve.
	ErrUndefinedRefinement ErrorKind = "UndefinedRefinement"

	// ErrDuplicateSSADefinition indicates a scalar name is defined twice in one scope.
	ErrDuplicateSSADefinition ErrorKind = "DuplicateSSADefinition"

	// ErrCyclicOrInvalidDependency indicates a deps entry that is not strictly earlier.
	ErrCyclicOrInvalidDependency ErrorKind = "CyclicOrInvalidDependency"

	// ErrUnknownIntrinsic indicates an intrinsic, special or aggregation name
	// that is not registered.
	ErrUnknownIntrinsic ErrorKind = "UnknownIntrinsic"

	// ErrArityMismatch indicates input/output counts disagree with a registered signature.
	ErrArityMismatch ErrorKind = "ArityMismatch"

	// ErrMalformedRefinementLink indicates a dir/from mismatch or an access rank mismatch.
	ErrMalformedRefinementLink ErrorKind = "MalformedRefinementLink"

	// ErrEntryNotBlock indicates a program whose entry is not a Block.
	ErrEntryNotBlock ErrorKind = "EntryNotBlock"

	// ErrSchemaMismatch indicates the wire form does not match the schema.
	ErrSchemaMismatch ErrorKind = "SerializationSchemaMismatch"

	// ErrDuplicateIndex indicates two indexes of one block share a name.
	ErrDuplicateIndex ErrorKind = "DuplicateIndex"

	// ErrUndefinedScalar indicates a scalar is read before any statement defines it.
	ErrUndefinedScalar ErrorKind = "UndefinedScalar"

	// ErrOutOfBounds indicates a refinement position outside its backing storage.
	ErrOutOfBounds ErrorKind = "OutOfBounds"

	// ErrSpecialFailed indicates an external special operation returned an error.
	ErrSpecialFailed ErrorKind = "SpecialFailed"

	// ErrIntrinsicFailed indicates an intrinsic rejected its operands, such as
	// an integer division by zero.
	ErrIntrinsicFailed ErrorKind = "IntrinsicFailed"

	// ErrTypeMismatch indicates a refinement whose element type disagrees with its storage.
	ErrTypeMismatch ErrorKind = "TypeMismatch"
)

// Error is an IR error with the path of the offending entity.
//
// Path is the block name chain joined by "/" followed by "#<stmt>" for
// statements, e.g. "main/conv#3".
type Error struct {
	Kind    ErrorKind
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an Error of the given kind.
func Errorf(kind ErrorKind, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}

// WithPath returns a copy of err with path set when err is an *Error
// without a path. Any other error is returned unchanged.
func WithPath(err error, path string) error {
	if e, ok := err.(*Error); ok && e.Path == "" {
		cp := *e
		cp.Path = path
		return &cp
	}
	return err
}

// IsKind returns true if err, or any error it wraps or aggregates, is an
// *Error of the given kind. Aggregates are anything with Unwrap() []error,
// which includes multierr and errors.Join values.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsKind(u.Unwrap(), kind)
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
