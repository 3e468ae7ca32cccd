package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrCapsuleLocked is returned when a recipient tries to open a capsule
	// whose time or geofence gate has not been satisfied.
	ErrCapsuleLocked = errors.New("capsule locked")
)
