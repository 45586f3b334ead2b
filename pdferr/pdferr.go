// Package pdferr implements the error taxonomy from : a small set of
// typed, categorised errors for conditions that abort the current operation.
// Recoverable parse noise goes through warnings.List instead; these types
// are reserved for failures the caller must see.
package pdferr

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Code categorises a hard error.
type Code string

const (
	// CodeSystem covers I/O failure, memory exhaustion, or a codec limit
	// being exceeded.
	CodeSystem Code = "SYSTEM"
	// CodeDamagedPDF covers parse/xref corruption that repair could not
	// recover from (repair itself reports via warnings; this is for when
	// repair is disabled or also fails).
	CodeDamagedPDF Code = "DAMAGED_PDF"
	// CodePassword covers encryption key derivation/password check failure.
	CodePassword Code = "PASSWORD"
	// CodeUnsupported covers a recognised but unimplemented feature, e.g.
	// an unknown encryption V/R combination.
	CodeUnsupported Code = "UNSUPPORTED"
	// CodeObject covers type mismatches, out-of-range access, or operating
	// on a destroyed handle.
	CodeObject Code = "OBJECT"
	// CodeLogic covers contract violations by the caller, e.g. mutating a
	// foreign-owned object.
	CodeLogic Code = "LOGIC"
)

// Error is the concrete error type raised for every hard-error path in the
// library. It wraps an optional underlying cause and carries a Code so
// callers can dispatch on category with errors.As plus a type switch on Code,
// without needing sentinel values per condition.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface, rendering "code: message" and, when
// a cause is present, ": cause" after it. The text is built with
// xerrors.Errorf inside this method and only the flattened string is
// returned, so no frame of the wrap site is kept.
func (e *Error) Error() string {
	if e.Cause != nil {
		return xerrors.Errorf("%s: %s: %w", e.Code, e.Message, e.Cause).Error()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports equality by Code, so errors.Is(err, pdferr.New(pdferr.CodeLogic, ""))
// matches any logic error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an *Error with no wrapped cause.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error that wraps cause.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err carries the given Code, unwrapping as needed.
func Is(err error, code Code) bool {
	return xerrors.Is(err, &Error{Code: code})
}
