package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrPrecondition = errors.New("precondition violated")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrFormat            = fmt.Errorf("format: %w", ErrInvalidInput)
	ErrInvalidCoordinate = fmt.Errorf("coordinate: %w", ErrInvalidInput)
	ErrUnknownEllipsoid  = fmt.Errorf("ellipsoid: %w", ErrNotFound)
	ErrUnknownMethod     = fmt.Errorf("geodesic method: %w", ErrUnsupported)
	ErrNilEllipsoid      = fmt.Errorf("nil ellipsoid: %w", ErrPrecondition)
	ErrNonPositiveSpeed  = fmt.Errorf("speed must be positive: %w", ErrPrecondition)
	ErrTimeSpanTooSmall  = fmt.Errorf("time span too small: %w", ErrPrecondition)
	ErrLayerNotFound     = fmt.Errorf("layer: %w", ErrNotFound)
	ErrFeatureNotFound   = fmt.Errorf("feature: %w", ErrNotFound)
	ErrShapefileRead     = fmt.Errorf("shapefile: %w", ErrInternal)
	ErrIndexFailed       = fmt.Errorf("spatial index: %w", ErrInternal)
	ErrNotReady          = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageError      = fmt.Errorf("storage: %w", ErrUnavailable)
)

// FormatError is returned by the strict parsers when the input does not
// decompose into a recognized sign/number/hemisphere pattern.
type FormatError struct {
	Kind  string // latitude, longitude, angle, position, nmea
	Input string // The rejected input
	Msg   string // What was wrong with it
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot parse %q as %s: %s", e.Input, e.Kind, e.Msg)
}

// Unwrap returns the underlying error type.
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// QueryError represents an error during a shape query.
type QueryError struct {
	Layer string // Layer name
	Err   error  // Underlying error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("query error in layer %s: %v", e.Layer, e.Err)
	}
	return fmt.Sprintf("query error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns ErrStorageError and the backend error, so callers can
// match both the category and the cause.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageError, e.Err}
}

// ShapefileError represents an error while reading or indexing a shapefile.
type ShapefileError struct {
	Path   string // Path of the .shp file
	Record int    // Record number, -1 when not record specific
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *ShapefileError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("shapefile %s record %d: %v", e.Path, e.Record, e.Err)
	}
	return fmt.Sprintf("shapefile %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ShapefileError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
