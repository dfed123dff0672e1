package generation

import "errors"

// Common errors returned by generation clients
var (
	// ErrEmptyInput is returned when there is no text to work on. It is a
	// permanent failure for the job that produced it.
	ErrEmptyInput = errors.New("input text cannot be empty")

	// ErrInvalidResponse is returned when the model answered with nothing usable
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid generation client configuration")
)
