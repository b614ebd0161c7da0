package service

import "errors"

var (
	// ErrNotFound is returned when a referenced user or expense does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation wraps input validation failures
	ErrValidation = errors.New("validation failed")

	// ErrForbiddenScope is returned when the actor may not view the requested scope
	ErrForbiddenScope = errors.New("scope not permitted for this user")
)
