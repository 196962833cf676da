package store

import (
	"errors"
	"io/fs"
	"strings"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeStorageUnavailable means the data directory or database file could
	// not be created, opened or queried.
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// CodePermissionDenied means the host refused access to an export
	// destination.
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// CodeExportFailed means the database file could not be copied out.
	CodeExportFailed ErrorCode = "EXPORT_FAILED"

	// CodeImportFailed means the database file could not be replaced.
	CodeImportFailed ErrorCode = "IMPORT_FAILED"

	// CodeStaleHandle means the handle was invalidated by an import through
	// another handle, or by closing the store.
	CodeStaleHandle ErrorCode = "STALE_HANDLE"

	// CodeHandleClosed means the handle was closed by its owner.
	CodeHandleClosed ErrorCode = "HANDLE_CLOSED"
)

var codeMessages = map[ErrorCode]string{
	CodeStorageUnavailable: "storage unavailable",
	CodePermissionDenied:   "permission denied",
	CodeExportFailed:       "export failed",
	CodeImportFailed:       "import failed",
	CodeStaleHandle:        "stale handle",
	CodeHandleClosed:       "handle closed",
}

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable}
	ErrPermissionDenied   = &Error{Code: CodePermissionDenied}
	ErrExportFailed       = &Error{Code: CodeExportFailed}
	ErrImportFailed       = &Error{Code: CodeImportFailed}
	ErrStaleHandle        = &Error{Code: CodeStaleHandle}
	ErrHandleClosed       = &Error{Code: CodeHandleClosed}
)

// Error is returned by every failing store operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed ("open", "create", "import", ...).
	Op string

	// Name is the database name the operation targeted.
	Name string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Name != "" {
			b.WriteString(" ")
			b.WriteString(e.Name)
		}
		b.WriteString(": ")
	}
	if msg, ok := codeMessages[e.Code]; ok {
		b.WriteString(msg)
	} else {
		b.WriteString(string(e.Code))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Name == "" && t.Err == nil && t.Code == e.Code
}

// CodeOf returns the store error code carried by err, or "" if err is not a
// store error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsStale returns true if the error reports a stale handle.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleHandle)
}

func newError(code ErrorCode, op, name string, err error) *Error {
	return &Error{Code: code, Op: op, Name: name, Err: err}
}

// exportError classifies a failure writing an export destination. Host
// permission refusals are reported as CodePermissionDenied.
func exportError(name string, err error) *Error {
	code := CodeExportFailed
	if errors.Is(err, fs.ErrPermission) {
		code = CodePermissionDenied
	}
	return newError(code, "export", name, err)
}
