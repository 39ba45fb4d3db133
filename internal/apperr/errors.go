// Package apperr classifies the failures the viewer core can surface.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification.
var (
	ErrNotFound           = errors.New("not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrConflictingRequest = errors.New("conflicting request")
	ErrMalformedInput     = errors.New("malformed input")
)

// Kind is a coarse-grained categorization for errors.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindConflictingRequest Kind = "conflicting_request"
	KindMalformedInput     Kind = "malformed_input"
)

var sentinels = map[Kind]error{
	KindNotFound:           ErrNotFound,
	KindBackendUnavailable: ErrBackendUnavailable,
	KindConflictingRequest: ErrConflictingRequest,
	KindMalformedInput:     ErrMalformedInput,
}

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op   string
	Kind Kind
	Err  error
}

// New builds an OpError. A nil err is replaced by the sentinel for kind.
func New(op string, kind Kind, err error) *OpError {
	if err == nil {
		err = sentinels[kind]
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match the kind's sentinel even when Err wraps something else.
func (e *OpError) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}
