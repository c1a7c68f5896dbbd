package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound          = errors.New("domain: not found")
	ErrConflict          = errors.New("domain: conflict")
	ErrPermissionDenied  = errors.New("domain: permission denied")
	ErrInvalidTransition = errors.New("domain: invalid status transition")
	ErrClassifierFailure = errors.New("domain: classifier failure")
	ErrAuditWrite        = errors.New("domain: audit write failed")
)
