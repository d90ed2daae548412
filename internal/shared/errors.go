package shared

import "errors"

// Cross-package sentinels. Domain packages wrap these with fmt.Errorf so
// handlers can map them to HTTP statuses with errors.Is.
var (
	// ErrNotFound marks a missing entity (product, warehouse, document).
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials marks a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing marks a mutating request without a CSRF token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch marks a CSRF token that fails verification.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
