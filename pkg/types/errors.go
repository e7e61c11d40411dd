package types

import "errors"

// Common errors surfaced by the intelligence layer.
var (
	// ErrNodeNotFound is returned when a node is not found in the tenant namespace.
	ErrNodeNotFound = errors.New("node not found")
	// ErrEdgeNotFound is returned when an edge is not found.
	ErrEdgeNotFound = errors.New("edge not found")
	// ErrContradictionNotFound is returned when a contradiction record is missing.
	ErrContradictionNotFound = errors.New("contradiction not found")
)

// ValidationError indicates malformed input. It is rejected synchronously and
// never persisted or retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "validation error"
	}
	return e.Message
}

// Is implements errors.Is support for ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NotFoundError indicates an entity or edge missing from the tenant namespace.
// It is surfaced to the caller and never retried.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " " + e.ID + " not found"
}

// Is implements errors.Is support for NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// PolicyViolationError indicates an operation forbidden by policy, such as
// merging a protected metric or referencing another tenant's data. It is
// rejected and logged at warning level, never silently downgraded.
type PolicyViolationError struct {
	Message string
}

func (e *PolicyViolationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for PolicyViolationError.
func (e *PolicyViolationError) Is(target error) bool {
	_, ok := target.(*PolicyViolationError)
	return ok
}

// UpstreamError indicates the graph store, embedding service, or comparison
// model was unreachable. Callers retry it with bounded backoff; if retries
// exhaust, the operation fails loudly rather than dropping data.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Service + " unavailable: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is implements errors.Is support for UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	_, ok := target.(*UpstreamError)
	return ok
}

// IsNotFound reports whether err is a missing-record outcome, either the
// typed NotFoundError or one of the sentinel errors.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *NotFoundError
	return errors.As(err, &nf) ||
		errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrEdgeNotFound) ||
		errors.Is(err, ErrContradictionNotFound)
}

// Retryable reports whether an error should be retried at the operation
// boundary. Definitive policy or not-found outcomes are never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
