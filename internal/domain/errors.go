// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidKind is returned for a resource kind outside the known set.
	ErrInvalidKind = errors.New("invalid resource kind")

	// ErrInvalidStatus is returned for a resource status outside the known set.
	ErrInvalidStatus = errors.New("invalid resource status")

	// ErrInvalidTransition is returned when a status change is not an edge of
	// the resource state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)
