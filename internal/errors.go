package internal

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrUnknownItem             ErrorKind = "UnknownItem"
	ErrAlreadyComplete         ErrorKind = "AlreadyComplete"
	ErrInvalidImportFormat     ErrorKind = "InvalidImportFormat"
	ErrStorageFailure          ErrorKind = "StorageFailure"
	ErrMalformedBarcodePayload ErrorKind = "MalformedBarcodePayload"
	ErrInvalidContext          ErrorKind = "InvalidContext"
	ErrNotFound                ErrorKind = "NotFound"
)

// CoreError is returned by engine, store and import operations for failures
// the caller is expected to turn into feedback.
type CoreError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first CoreError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
