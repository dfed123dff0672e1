package credential

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPoolExhausted is returned when no credential is active. Jobs that
	// hit it fail without retrying.
	ErrPoolExhausted = errors.New("credential pool exhausted: no active credentials")

	// ErrUnknownCredential is returned for an id the pool does not hold.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrInvalidPool is returned by NewPool for unusable configuration.
	ErrInvalidPool = errors.New("invalid credential pool configuration")
)

// Class is the closed set of outcomes an external call can fail with.
type Class int

// Error classes. ClassUnknown is the zero value so an unclassified error
// is treated as unknown.
const (
	ClassUnknown Class = iota
	ClassRateLimitExceeded
	ClassQuotaExceeded
	ClassInvalidCredential
	ClassBadRequest
	ClassForbidden
	ClassServerError
)

var classNames = map[Class]string{
	ClassUnknown:           "Unknown",
	ClassRateLimitExceeded: "RateLimitExceeded",
	ClassQuotaExceeded:     "QuotaExceeded",
	ClassInvalidCredential: "InvalidCredential",
	ClassBadRequest:        "BadRequest",
	ClassForbidden:         "Forbidden",
	ClassServerError:       "ServerError",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// MarshalText renders the class name in JSON snapshots.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// CredentialLevel reports whether the failure is tied to the credential
// used, so the same call can succeed with a different one.
func (c Class) CredentialLevel() bool {
	switch c {
	case ClassRateLimitExceeded, ClassQuotaExceeded, ClassInvalidCredential, ClassForbidden:
		return true
	default:
		return false
	}
}

// Retires reports whether the class takes a credential out of service until
// an operator resets it.
func (c Class) Retires() bool {
	return c == ClassInvalidCredential || c == ClassForbidden
}

// Permanent reports whether retrying the same request cannot succeed.
func (c Class) Permanent() bool {
	return c == ClassBadRequest
}

// Transient reports whether the same request may succeed later.
func (c Class) Transient() bool {
	switch c {
	case ClassRateLimitExceeded, ClassServerError, ClassUnknown:
		return true
	default:
		return false
	}
}

// CallError is a classified failure of an external call.
type CallError struct {
	Class      Class
	StatusCode int
	// RetryAfter is the provider's hint for rate limits, zero when absent.
	RetryAfter time.Duration
	Err        error
}

// NewCallError wraps err with a class.
func NewCallError(class Class, err error) *CallError {
	return &CallError{Class: class, Err: err}
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return e.Class.String()
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the class of err. Errors that were never classified
// report ClassUnknown.
func ClassOf(err error) Class {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassUnknown
}

func retryAfterOf(err error) time.Duration {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.RetryAfter
	}
	return 0
}
