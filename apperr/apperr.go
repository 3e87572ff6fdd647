package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidPhase        Code = "INVALID_PHASE"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeDuplicateSubmission Code = "DUPLICATE_SUBMISSION"
	CodeSelfVoteForbidden   Code = "SELF_VOTE_FORBIDDEN"
	CodeTargetNotFound      Code = "TARGET_NOT_FOUND"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Error is the single error type returned by the service layer. Everything
// except CodeInternal is a caller mistake and must not be retried as-is.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so callers can write
// errors.Is(err, apperr.ErrForbidden).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrUnauthenticated     = &Error{Code: CodeUnauthenticated, Message: "authentication required"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidPhase        = &Error{Code: CodeInvalidPhase, Message: "action not allowed in current phase"}
	ErrInvalidState        = &Error{Code: CodeInvalidState, Message: "session is not in a valid state for this action"}
	ErrDuplicateSubmission = &Error{Code: CodeDuplicateSubmission, Message: "already submitted this round"}
	ErrSelfVoteForbidden   = &Error{Code: CodeSelfVoteForbidden, Message: "cannot vote for your own answer"}
	ErrTargetNotFound      = &Error{Code: CodeTargetNotFound, Message: "answer not found in current round"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "invalid input"}
	ErrInternal            = &Error{Code: CodeInternal, Message: "internal error"}
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Internal wraps a store or infrastructure failure. An error that is already
// an *Error is returned unchanged.
func Internal(message string, err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf reports the code of err, CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message for err. Internal details are
// never exposed.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != CodeInternal {
		return ae.Message
	}
	return ErrInternal.Message
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidPhase, CodeInvalidState, CodeDuplicateSubmission,
		CodeSelfVoteForbidden, CodeTargetNotFound, CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
