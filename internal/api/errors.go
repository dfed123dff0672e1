package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/vidscribe/internal/api/shared"
	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/service"
	"github.com/phrazzld/vidscribe/internal/store"
	"github.com/phrazzld/vidscribe/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, credential.ErrUnknownCredential):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrNotRestartable),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, task.ErrInvalidControl),
		errors.Is(err, shared.ErrEmptyBody),
		isValidationErrors(err):
		return http.StatusBadRequest

	// Temporarily unable to take work
	case errors.Is(err, task.ErrQueueUnavailable),
		errors.Is(err, task.ErrNotRunning):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, credential.ErrUnknownCredential):
		return "Credential not found"

	case errors.Is(err, service.ErrNotRestartable),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, domain.ErrInvalidTransition):
		return "Resource is not in a restartable state"

	case errors.Is(err, domain.ErrInvalidKind):
		return "Invalid resource kind"

	case errors.Is(err, domain.ErrValidation):
		return validationMessage(err)

	case isValidationErrors(err):
		return SanitizeValidationError(err)

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, task.ErrInvalidControl):
		return "Invalid control message"

	case errors.Is(err, task.ErrQueueUnavailable):
		return "Work queue is unavailable, try again later"

	case errors.Is(err, task.ErrNotRunning):
		return "Workers are not running"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the error response for err. A non-empty message
// replaces the mapped one for 5xx responses, where the mapped message is
// generic.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string, opts ...shared.ResponseOption) {
	status := MapErrorToStatusCode(err)
	safe := GetSafeErrorMessage(err)
	if message != "" && status >= http.StatusInternalServerError {
		safe = message
	}
	shared.RespondWithErrorAndLog(w, r, status, safe, err, opts...)
}

// validationMessage turns a domain validation error into a message naming
// the offending field. Domain errors read "validation failed: <detail>" and
// the detail never carries more than the caller's own input.
func validationMessage(err error) string {
	msg := err.Error()
	prefix := domain.ErrValidation.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		detail := msg[i+len(prefix):]
		if detail != "" {
			return "Invalid request: " + detail
		}
	}
	return "Validation error"
}

func isValidationErrors(err error) bool {
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		field := strings.ToLower(fe.Field())
		if tag := fe.Tag(); tag != "" {
			return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
		}
		return fmt.Sprintf("Invalid %s", field)
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
