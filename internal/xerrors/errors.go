// Package xerrors defines the error kinds surfaced at the tool-RPC boundary.
package xerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison via errors.Is(). Each corresponds to one
// row of the error-kind table in spec.md §7.
var (
	ErrNotFound             = errors.New("not found")
	ErrNotParticipant       = errors.New("caller is not a participant")
	ErrIllegalTransition    = errors.New("illegal state transition")
	ErrValidation           = errors.New("validation failed")
	ErrInsufficientAlignment = errors.New("insufficient alignment")
	ErrTimeout              = errors.New("operation timed out")
	ErrAlreadyExists        = errors.New("already exists")
)

// CoordinationError carries structured context about a failure: which
// operation, which kind of error, and which entity was involved. It wraps
// one of the sentinels above so callers can still use errors.Is.
type CoordinationError struct {
	Op      string // e.g. "negotiation.FinalizeSession"
	Kind    string // e.g. "negotiation", "alignment", "emergence"
	ID      string // entity id involved, if any
	Message string
	Err     error
}

func (e *CoordinationError) Error() string {
	if e.Op != "" && e.Err != nil {
		prefix := e.Op
		if e.ID != "" {
			prefix = fmt.Sprintf("%s [%s]", e.Op, e.ID)
		}
		if e.Message != "" {
			return fmt.Sprintf("%s: %v: %s", prefix, e.Err, e.Message)
		}
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *CoordinationError) Unwrap() error {
	return e.Err
}

// New builds a CoordinationError wrapping one of the sentinels, with a
// human-readable message.
func New(op, kind string, sentinel error, id, message string) *CoordinationError {
	return &CoordinationError{Op: op, Kind: kind, ID: id, Message: message, Err: sentinel}
}

// NotFound builds a not-found CoordinationError for the given kind/id.
func NotFound(op, kind, id string) *CoordinationError {
	return New(op, kind, ErrNotFound, id, fmt.Sprintf("%s %q not found", kind, id))
}

// NotParticipant builds a not-a-participant CoordinationError.
func NotParticipant(op, id string) *CoordinationError {
	return New(op, "negotiation", ErrNotParticipant, id, fmt.Sprintf("%q is not a participant in this session", id))
}

// IllegalTransition builds an illegal-transition CoordinationError.
func IllegalTransition(op, kind, id, from, event string) *CoordinationError {
	return New(op, kind, ErrIllegalTransition, id, fmt.Sprintf("cannot %s from state %q", event, from))
}

// Validation builds a validation CoordinationError.
func Validation(op, message string) *CoordinationError {
	return New(op, "validation", ErrValidation, "", message)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsNotParticipant reports whether err is (or wraps) ErrNotParticipant.
func IsNotParticipant(err error) bool { return errors.Is(err, ErrNotParticipant) }

// IsIllegalTransition reports whether err is (or wraps) ErrIllegalTransition.
func IsIllegalTransition(err error) bool { return errors.Is(err, ErrIllegalTransition) }

// IsValidation reports whether err is (or wraps) ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// ToResult renders any error as the {"error": "..."} map the tool-RPC
// boundary returns to callers (spec.md §7).
func ToResult(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	return map[string]interface{}{"error": err.Error()}
}
