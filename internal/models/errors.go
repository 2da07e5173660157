package models

import "errors"

var (
	// ErrConflict is returned when a shortcode with the same name already exists.
	ErrConflict = errors.New("shortcode already exists")
	// ErrValidation is returned when a required attribute is missing or empty.
	ErrValidation = errors.New("shortcode must have both a name and a destination")
	// ErrNotFound is returned when an operation targets a name with no record.
	ErrNotFound = errors.New("shortcode not found")
	// ErrSuggestionExhausted is returned when no free name could be found
	// below the configured maximum length.
	ErrSuggestionExhausted = errors.New("no free shortcode name available")
)
