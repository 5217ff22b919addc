package verification

import (
	"errors"
	"fmt"
	"net/http"
)

// Store sentinels. Every Repository implementation maps its driver errors
// onto these.
var (
	ErrRecordNotFound     = errors.New("verification record not found")
	ErrDuplicateRequestID = errors.New("requestId already exists")
	ErrActiveRecordExists = errors.New("user already has a pending or approved record")
	ErrStatusConflict     = errors.New("record is no longer pending")
	ErrNoApprovedPhoto    = errors.New("record has no approved photo")
)

// Code is a stable machine-checkable error reason
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeConflict            Code = "conflict"
	CodeNotFound            Code = "not_found"
	CodeInvalidState        Code = "invalid_state"
	CodePreconditionFailed  Code = "precondition_failed"
	CodeUpload              Code = "upload_error"
	CodeDependency          Code = "dependency_error"
	CodeGenerationExhausted Code = "generation_exhausted"
	CodeInternal            Code = "internal_error"
)

// Error is returned by every service operation that fails
type Error struct {
	Code    Code
	Message string
	Err     error
	// Existing is the record that blocked a submission (Conflict only)
	Existing *Record
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func validationError(format string, args ...interface{}) *Error {
	return newError(CodeValidation, fmt.Sprintf(format, args...), nil)
}

func notFoundError(message string) *Error {
	return newError(CodeNotFound, message, nil)
}

func invalidStateError(format string, args ...interface{}) *Error {
	return newError(CodeInvalidState, fmt.Sprintf(format, args...), nil)
}

func internalError(message string, cause error) *Error {
	return newError(CodeInternal, message, cause)
}

func conflictError(message string, existing *Record) *Error {
	return &Error{Code: CodeConflict, Message: message, Existing: existing}
}

// CodeOf extracts the reason code, defaulting to internal_error
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a reason code to its response status
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidState, CodePreconditionFailed:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUpload, CodeDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
