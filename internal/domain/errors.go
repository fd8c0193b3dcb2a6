package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyRecordID is returned when a record has no identifier.
	ErrEmptyRecordID = errors.New("record ID cannot be empty")

	// ErrMissingImageURL is returned when a record has no primary image URL.
	ErrMissingImageURL = errors.New("record has no primary image URL")

	// ErrRecordUnavailable is returned when a record's status excludes it from processing.
	ErrRecordUnavailable = errors.New("record is not available")
)
