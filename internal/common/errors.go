// Package common defines shared constants and sentinel errors used across
// ProperBooky components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors.
	ErrInternal      = errors.New("internal error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTitleConflict = errors.New("title already exists")

	// Upload pipeline taxonomy. Item-level failures wrap one of these.
	ErrValidation = errors.New("validation error")
	ErrTransport  = errors.New("upload failed")
	ErrCatalog    = errors.New("catalog error")

	// Queue errors.
	ErrDrainInProgress   = errors.New("upload already in progress")
	ErrItemBusy          = errors.New("item is uploading")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotRetryable      = errors.New("item is not in error state")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
