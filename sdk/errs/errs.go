// Package errs defines the error taxonomy shared by the migration
// pipeline. Client errors map to 4xx on the HTTP surface and to a
// failure status on the bus; backend errors abort the current request.
package errs

import (
	"errors"
	"fmt"
)

// Client errors.
var (
	ErrUnsupportedBackend      = errors.New("no metadata extractor registered for backend")
	ErrMigrationNotFound       = errors.New("migration not found")
	ErrInvalidMigrationRequest = errors.New("invalid migration request")
)

// ErrTooManyForeignKeys is non-fatal: the link or satellite falls back
// to the unlinked create path.
var ErrTooManyForeignKeys = errors.New("more than two fields match the fk pattern")

// BackendError marks a source, graph or audit store as unreachable.
// The current request is aborted and published as a failure.
type BackendError struct {
	Store string // "source", "graph" or "audit"
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Store, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// SourceUnavailable wraps a source database connection failure.
func SourceUnavailable(err error) error {
	return &BackendError{Store: "source", Err: err}
}

// GraphUnavailable wraps a graph store connection failure.
func GraphUnavailable(err error) error {
	return &BackendError{Store: "graph", Err: err}
}

// AuditUnavailable wraps an audit store failure.
func AuditUnavailable(err error) error {
	return &BackendError{Store: "audit", Err: err}
}

// IsClient reports whether err should be reported as a client error.
func IsClient(err error) bool {
	return errors.Is(err, ErrUnsupportedBackend) ||
		errors.Is(err, ErrMigrationNotFound) ||
		errors.Is(err, ErrInvalidMigrationRequest)
}
