package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the pnpmatch system
type ErrorType string

const (
	// Matching errors
	ErrorTypeParse    ErrorType = "parse"
	ErrorTypeRowMatch ErrorType = "row_match"

	// Store errors
	ErrorTypeStoreLoad ErrorType = "store_load"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// ParseError reports a saved work-in-progress item that cannot be split
// into id, footprint and comment. It aborts the batch.
type ParseError struct {
	Type       ErrorType
	RowIndex   int
	Item       string
	Segments   int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error for a saved item string
func NewParseError(rowIndex int, item string, segments int, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		RowIndex:   rowIndex,
		Item:       item,
		Segments:   segments,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at row %d (item %q, %d segments): %v",
		e.RowIndex, e.Item, e.Segments, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// StoreLoadError reports an unreadable or missing component database.
// Callers continue with an empty store.
type StoreLoadError struct {
	Type       ErrorType
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewStoreLoadError creates a new store load error
func NewStoreLoadError(path string, err error) *StoreLoadError {
	return &StoreLoadError{
		Type:       ErrorTypeStoreLoad,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *StoreLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("component database load failed: %v", e.Underlying)
	}
	return fmt.Sprintf("component database load failed for %s: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *StoreLoadError) Unwrap() error {
	return e.Underlying
}

// RowMatchError records an unexpected failure while matching a single row.
// The row degrades to NO_MATCH; the error is kept for diagnostics only.
type RowMatchError struct {
	Type       ErrorType
	RowIndex   int
	Footprint  string
	Comment    string
	Underlying error
	Timestamp  time.Time
}

// NewRowMatchError creates a new row match error
func NewRowMatchError(rowIndex int, footprint, comment string, err error) *RowMatchError {
	return &RowMatchError{
		Type:       ErrorTypeRowMatch,
		RowIndex:   rowIndex,
		Footprint:  footprint,
		Comment:    comment,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *RowMatchError) Error() string {
	return fmt.Sprintf("matching row %d (%q, %q) failed: %v",
		e.RowIndex, e.Footprint, e.Comment, e.Underlying)
}

// Unwrap returns the underlying error
func (e *RowMatchError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileNotFound
	if stderrors.Is(err, fs.ErrPermission) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}
