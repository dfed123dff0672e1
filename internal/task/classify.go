package task

import (
	"errors"

	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/phrazzld/vidscribe/internal/generation"
	"github.com/phrazzld/vidscribe/internal/transcript"
)

// Failure describes how the runner reacts to a handler error.
type Failure int

// Failure kinds
const (
	// FailureTransient is retried with backoff until attempts run out.
	FailureTransient Failure = iota
	// FailurePermanent fails the record immediately.
	FailurePermanent
	// FailurePoolExhausted fails the record because no credential is usable.
	FailurePoolExhausted
	// FailureNotReady re-delivers the item without consuming an attempt.
	FailureNotReady
)

// String returns the metric label of f.
func (f Failure) String() string {
	switch f {
	case FailurePermanent:
		return "permanent"
	case FailurePoolExhausted:
		return "pool_exhausted"
	case FailureNotReady:
		return "not_ready"
	default:
		return "transient"
	}
}

// Classify maps a handler error to a failure kind. Credential-level errors
// that reach the runner survived rotation inside the work client and are
// treated as transient.
func Classify(err error) Failure {
	switch {
	case errors.Is(err, credential.ErrPoolExhausted):
		return FailurePoolExhausted
	case errors.Is(err, ErrNotReady):
		return FailureNotReady
	case IsPermanent(err),
		errors.Is(err, transcript.ErrUnavailable),
		errors.Is(err, transcript.ErrTooLarge),
		errors.Is(err, generation.ErrEmptyInput),
		credential.ClassOf(err).Permanent():
		return FailurePermanent
	default:
		return FailureTransient
	}
}
