package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeValidationError  ErrorCode = "VALIDATION_ERROR"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported     ErrorCode = "NOT_SUPPORTED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeLexError         ErrorCode = "LEX_ERROR"
	CodeParseError       ErrorCode = "PARSE_ERROR"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxLine      = "line"
	CtxSymbol    = "symbol"
)

// Coded is implemented by errors that carry a code without being a DomainError,
// such as the parser's LexError and ParseError.
type Coded interface {
	error
	ErrorCode() ErrorCode
}

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a key/value pair, wrapping err in an internal DomainError
// when it is not one already.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error, or anything it wraps, has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		switch e := err.(type) {
		case *DomainError:
			if e.Code == code {
				return true
			}
		case Coded:
			if e.ErrorCode() == code {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// CodeOf returns the outermost code found in the chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	for err != nil {
		switch e := err.(type) {
		case *DomainError:
			return e.Code
		case Coded:
			return e.ErrorCode()
		}
		err = errors.Unwrap(err)
	}
	return CodeInternal
}
