package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "validation_error"
	CodeUnauthorized    Code = "unauthorized"
	CodePaymentRequired Code = "payment_required"
	CodeForbidden       Code = "forbidden"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeRateLimited     Code = "rate_limited"
	CodeUpstream        Code = "upstream_error"
	CodeInternal        Code = "internal_error"
)

// Error is the error type every service returns to the transport layer.
// Message is safe to show to callers; Err carries the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error

	// Reason is an optional machine-readable detail, e.g. why an embed
	// request was rejected.
	Reason string
	// CreditsBalance is reported alongside payment_required errors.
	CreditsBalance *int64
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(message string, err error) *Error {
	return New(CodeValidation, message, err)
}

func Unauthorized(message string, err error) *Error {
	return New(CodeUnauthorized, message, err)
}

func Forbidden(message string, err error) *Error {
	return New(CodeForbidden, message, err)
}

func NotFound(message string, err error) *Error {
	return New(CodeNotFound, message, err)
}

func Conflict(message string, err error) *Error {
	return New(CodeConflict, message, err)
}

func Upstream(message string, err error) *Error {
	return New(CodeUpstream, message, err)
}

func Internal(message string, err error) *Error {
	return New(CodeInternal, message, err)
}

// PaymentRequired reports an exhausted balance.
func PaymentRequired(message string, balance int64, err error) *Error {
	e := New(CodePaymentRequired, message, err)
	e.CreditsBalance = &balance
	return e
}

// WithReason sets Reason and returns e.
func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to the status the transport layer answers with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
