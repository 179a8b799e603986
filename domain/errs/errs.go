// Package errs defines the error taxonomy shared by every exchange component.
//
// Errors are built from ErrorKind sentinels so callers can branch with
// errors.Is, and every kind belongs to exactly one Class: caller-correctable
// validation failures, expected policy rejections, or invariant violations
// that indicate a logic defect.
package errs

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a kind of error. Kinds are comparable with errors.Is
// through Error.Unwrap.
type ErrorKind string

// Error satisfies the error interface.
func (e ErrorKind) Error() string {
	return string(e)
}

// Validation errors. The caller can correct the request and resubmit.
const (
	ErrInvalidSize            = ErrorKind("invalid size")
	ErrInvalidPrice           = ErrorKind("invalid price")
	ErrInvalidSide            = ErrorKind("invalid side")
	ErrInvalidRestriction     = ErrorKind("invalid restriction")
	ErrInvalidSelfMatch       = ErrorKind("invalid self match behavior")
	ErrInvalidMarketParams    = ErrorKind("invalid market parameters")
	ErrInvalidAsset           = ErrorKind("invalid asset")
	ErrMarketNotFound         = ErrorKind("market not found")
	ErrMarketExists           = ErrorKind("market already registered")
	ErrOrderNotFound          = ErrorKind("order not found")
	ErrNotOrderOwner          = ErrorKind("order not owned by caller")
	ErrInsufficientCollateral = ErrorKind("insufficient collateral")
	ErrInvalidCapability      = ErrorKind("invalid capability")
	ErrUnchangedSize          = ErrorKind("order size unchanged")
	ErrOverflow               = ErrorKind("arithmetic overflow")
)

// Policy rejections. Expected control flow: the order was well formed but its
// restriction or self match behavior refused to let it execute.
const (
	ErrFillOrAbortUnderfilled = ErrorKind("fill-or-abort order could not fill completely")
	ErrPostOrAbortCrossed     = ErrorKind("post-or-abort order would cross the book")
	ErrSelfMatch              = ErrorKind("self match aborted order")
	ErrPriorityTooLow         = ErrorKind("order priority too low to enter full book side")
)

// Invariant violations. These are unreachable when the engine is correct.
const (
	ErrInvariant          = ErrorKind("invariant violation")
	ErrInsufficientLocked = ErrorKind("locked collateral below settlement amount")
)

// Error pairs an ErrorKind with details.
type Error struct {
	kind   ErrorKind
	detail string
}

// New wraps kind with a formatted detail message.
func New(kind ErrorKind, format string, args ...any) Error {
	return Error{kind: kind, detail: fmt.Sprintf(format, args...)}
}

// Error satisfies the error interface, combining the kind with the details.
func (e Error) Error() string {
	if e.detail == "" {
		return string(e.kind)
	}
	return string(e.kind) + ": " + e.detail
}

// Unwrap returns the kind, allowing errors.Is to match sentinels.
func (e Error) Unwrap() error {
	return e.kind
}

// Kind returns the ErrorKind of e.
func (e Error) Kind() ErrorKind {
	return e.kind
}

// Class groups ErrorKinds by how a caller should react to them.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassRejection
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassRejection:
		return "rejection"
	case ClassInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

var classes = map[ErrorKind]Class{
	ErrInvalidSize:            ClassValidation,
	ErrInvalidPrice:           ClassValidation,
	ErrInvalidSide:            ClassValidation,
	ErrInvalidRestriction:     ClassValidation,
	ErrInvalidSelfMatch:       ClassValidation,
	ErrInvalidMarketParams:    ClassValidation,
	ErrInvalidAsset:           ClassValidation,
	ErrMarketNotFound:         ClassValidation,
	ErrMarketExists:           ClassValidation,
	ErrOrderNotFound:          ClassValidation,
	ErrNotOrderOwner:          ClassValidation,
	ErrInsufficientCollateral: ClassValidation,
	ErrInvalidCapability:      ClassValidation,
	ErrUnchangedSize:          ClassValidation,
	ErrOverflow:               ClassValidation,

	ErrFillOrAbortUnderfilled: ClassRejection,
	ErrPostOrAbortCrossed:     ClassRejection,
	ErrSelfMatch:              ClassRejection,
	ErrPriorityTooLow:         ClassRejection,

	ErrInvariant:          ClassInvariant,
	ErrInsufficientLocked: ClassInvariant,
}

// ClassOf reports the Class of the first ErrorKind found in err's chain.
func ClassOf(err error) Class {
	var kind ErrorKind
	if !errors.As(err, &kind) {
		return ClassUnknown
	}
	return classes[kind]
}

// IsRejection reports whether err is an expected policy rejection.
func IsRejection(err error) bool {
	return ClassOf(err) == ClassRejection
}

// IsInvariant reports whether err indicates a logic defect.
func IsInvariant(err error) bool {
	return ClassOf(err) == ClassInvariant
}
