package errors

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestParseError(t *testing.T) {
	underlying := errors.New("expected 3 segments")
	err := NewParseError(4, "C1 | 0603_R", 2, underlying)

	if err.Type != ErrorTypeParse {
		t.Errorf("Expected Type to be ErrorTypeParse, got %v", err.Type)
	}

	if err.RowIndex != 4 {
		t.Errorf("Expected RowIndex to be 4, got %d", err.RowIndex)
	}

	if err.Segments != 2 {
		t.Errorf("Expected Segments to be 2, got %d", err.Segments)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := `parse error at row 4 (item "C1 | 0603_R", 2 segments): expected 3 segments`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestParseErrorAs(t *testing.T) {
	wrapped := fmt.Errorf("resume failed: %w", NewParseError(0, "x", 1, errors.New("bad")))

	var pe *ParseError
	if !errors.As(wrapped, &pe) {
		t.Fatalf("Expected errors.As to find ParseError")
	}
	if pe.Item != "x" {
		t.Errorf("Expected Item 'x', got %q", pe.Item)
	}
}

func TestStoreLoadError(t *testing.T) {
	err := NewStoreLoadError("/db/components_1.txt", os.ErrNotExist)

	if err.Type != ErrorTypeStoreLoad {
		t.Errorf("Expected Type to be ErrorTypeStoreLoad, got %v", err.Type)
	}

	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected error to unwrap to os.ErrNotExist")
	}

	expectedMsg := "component database load failed for /db/components_1.txt: file does not exist"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	noPath := NewStoreLoadError("", errors.New("no database files"))
	if noPath.Error() != "component database load failed: no database files" {
		t.Errorf("Unexpected message without path: %q", noPath.Error())
	}
}

func TestRowMatchError(t *testing.T) {
	underlying := errors.New("boom")
	err := NewRowMatchError(7, "0603_R", "10k", underlying)

	if err.Type != ErrorTypeRowMatch {
		t.Errorf("Expected Type to be ErrorTypeRowMatch, got %v", err.Type)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := `matching row 7 ("0603_R", "10k") failed: boom`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestFileError(t *testing.T) {
	underlying := fmt.Errorf("open: %w", os.ErrPermission)
	err := NewFileError("read", "/path/to/file", underlying)

	if err.Type != ErrorTypePermission {
		t.Errorf("Expected Type to be ErrorTypePermission, got %v", err.Type)
	}

	if err.Path != "/path/to/file" {
		t.Errorf("Expected Path to be '/path/to/file', got %s", err.Path)
	}

	if err.Operation != "read" {
		t.Errorf("Expected Operation to be 'read', got %s", err.Operation)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "file read failed for /path/to/file: open: permission denied"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestFileErrorWithNotFound(t *testing.T) {
	underlying := errors.New("no such file or directory")
	err := NewFileError("stat", "/missing/file", underlying)

	if err.Type != ErrorTypeFileNotFound {
		t.Errorf("Expected Type to be ErrorTypeFileNotFound, got %v", err.Type)
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("invalid value")
	err := NewConfigError("field_name", "invalid_value", underlying)

	if err.Field != "field_name" {
		t.Errorf("Expected Field to be 'field_name', got %s", err.Field)
	}

	if err.Value != "invalid_value" {
		t.Errorf("Expected Value to be 'invalid_value', got %s", err.Value)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := `config error for field field_name (value invalid_value): invalid value`
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")
	err3 := errors.New("error 3")

	multiErr := NewMultiError([]error{err1, err2, err3})

	if len(multiErr.Errors) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(multiErr.Errors))
	}

	errMsg := multiErr.Error()
	if len(errMsg) < 10 || errMsg[:10] != "3 errors: " {
		t.Errorf("Expected message to start with '3 errors: ', got %q", errMsg)
	}

	singleErr := NewMultiError([]error{err1})
	if singleErr.Error() != "error 1" {
		t.Errorf("Expected 'error 1', got %q", singleErr.Error())
	}

	emptyErr := NewMultiError([]error{})
	if emptyErr.Error() != "no errors" {
		t.Errorf("Expected 'no errors', got %q", emptyErr.Error())
	}
	if emptyErr.ErrorOrNil() != nil {
		t.Errorf("Expected ErrorOrNil to be nil for empty multi-error")
	}

	nilFiltered := NewMultiError([]error{err1, nil, err2, nil})
	if len(nilFiltered.Errors) != 2 {
		t.Errorf("Expected 2 errors after filtering nil, got %d", len(nilFiltered.Errors))
	}

	if !errors.Is(multiErr, err2) {
		t.Errorf("Expected errors.Is to see through MultiError")
	}
}

func TestTimestamp(t *testing.T) {
	err := NewRowMatchError(0, "", "", errors.New("test"))
	if err.Timestamp.IsZero() {
		t.Errorf("Expected non-zero timestamp")
	}

	now := time.Now()
	if err.Timestamp.After(now) || now.Sub(err.Timestamp) > time.Second {
		t.Errorf("Timestamp seems incorrect: %v", err.Timestamp)
	}
}
