package ingest

import (
	"fmt"
)

// Kind classifies why a load failed
type Kind string

const (
	KindSchema       Kind = "schema"
	KindDomain       Kind = "domain"
	KindNaming       Kind = "naming"
	KindDuplicateKey Kind = "duplicate key"
	KindColumnLimit  Kind = "column limit"
	KindConflict     Kind = "conflict"
	KindStorage      Kind = "storage"
)

// Error is a load failure with its kind and a human-readable detail
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sentinels for errors.Is; an *Error matches the sentinel of its kind
var (
	ErrSchema       = &Error{Kind: KindSchema}
	ErrDomain       = &Error{Kind: KindDomain}
	ErrNaming       = &Error{Kind: KindNaming}
	ErrDuplicateKey = &Error{Kind: KindDuplicateKey}
	ErrColumnLimit  = &Error{Kind: KindColumnLimit}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrStorage      = &Error{Kind: KindStorage}

	// ErrTableExists is reported exactly like ErrConflict: the dataset is already loaded
	ErrTableExists = ErrConflict
)

func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Detail == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
