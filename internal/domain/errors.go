package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures at adapter and operation boundaries.
type ErrorKind string

const (
	KindNetwork          ErrorKind = "network"
	KindParse            ErrorKind = "parse"
	KindInsufficientData ErrorKind = "insufficient_data"
	KindValidation       ErrorKind = "validation"
	KindStorage          ErrorKind = "storage"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrEmptyBatch       = errors.New("empty batch")
	ErrNotFound         = errors.New("not found")
)

// Error carries a failure kind and the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind. A nil err yields nil.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind from an error chain. Errors without an explicit
// kind are reported as storage failures unless they match a known sentinel.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, ErrInsufficientData) {
		return KindInsufficientData
	}
	return KindStorage
}
