// Package apperr defines the typed error taxonomy the delivery core returns
// to its callers. Each error carries a Code so transports can map it to a
// response without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation       Code = "VALIDATION"
	CodeNotFound         Code = "NOT_FOUND"
	CodeWrongStatus      Code = "WRONG_STATUS"
	CodeQueueUnavailable Code = "QUEUE_UNAVAILABLE"
	CodeDelivery         Code = "DELIVERY"
	CodeInternal         Code = "INTERNAL"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func WrongStatus(message string) *Error {
	return New(CodeWrongStatus, message)
}

func QueueUnavailable(message string, cause error) *Error {
	return Wrap(CodeQueueUnavailable, message, cause)
}

func Delivery(message string, cause error) *Error {
	return Wrap(CodeDelivery, message, cause)
}

func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

// CodeOf extracts the taxonomy code from err, defaulting to CodeInternal
// for plain errors.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
