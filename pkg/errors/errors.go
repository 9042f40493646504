package errors

import "errors"

// Sentinels for domain errors. Wrap them with fmt.Errorf("...: %w", ...) and
// match with errors.Is; the HTTP layer maps each one to a status code.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation error")
	ErrUnavailable      = errors.New("service unavailable")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrPermissionDenied = errors.New("permission denied")
)
