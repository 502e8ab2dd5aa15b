package core

import "fmt"

// The registration flow distinguishes four failure stages so callers can map
// each to the right HTTP status and operators can tell which step to fix.

// ValidationError reports a malformed or missing request field. Client error,
// raised before any external call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// CredentialError reports security material that could not be assembled:
// unparseable TLS certificate/key bytes or missing Azure fields.
type CredentialError struct {
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential error: %s: %v", e.Reason, e.Err)
	}
	return "credential error: " + e.Reason
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ProbeError reports an unreachable target, a probe timeout, or a rejected
// authentication attempt. Hard-fail for TLS and Azure registrations,
// soft-fail for plain Docker ones.
type ProbeError struct {
	URL string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe of %s failed: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// PersistenceError reports a failed identifier allocation or storage write.
// Always fatal to the request; nothing partial remains observable.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
