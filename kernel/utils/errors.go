package utils

import (
	"errors"
	"fmt"
)

// Kind classifies a runtime error so callers can branch on errors.Is
// without string matching.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindAlreadyExists    Kind = "already_exists"
	KindContended        Kind = "contended"
	KindCopyFailed       Kind = "copy_failed"
	KindRemoveFailed     Kind = "remove_failed"
	KindSymbolMissing    Kind = "symbol_missing"
	KindCyclicDependency Kind = "cyclic_dependency"
)

// KindError wraps an underlying cause with a Kind, so a single
// errors.Is(err, utils.KindNotFound) check works across packages.
type KindError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *KindError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *KindError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, SomeKind) work by comparing the sentinel Kind
// values declared alongside KindError.
func (e *KindError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Error satisfies the error interface for Kind so utils.KindNotFound
// itself can be used as an errors.Is target.
func (k Kind) Error() string { return string(k) }

// NewKindError builds a KindError for op, optionally wrapping cause.
func NewKindError(kind Kind, op string, cause error) error {
	return &KindError{Kind: kind, Op: op, Err: cause}
}

// NewError creates a new error with a message.
func NewError(msg string) error {
	return errors.New(msg)
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return errors.New(msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// TimeoutError creates a timeout error.
func TimeoutError(operation string) error {
	return fmt.Errorf("%s: operation timed out", operation)
}
