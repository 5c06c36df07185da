// Package errors defines the application error taxonomy. Every AppError is
// recoverable: it is turned into a reply to the user and never stops event handling.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// Kind classifies an AppError.
type Kind string

const (
	KindUserState     Kind = "user_state"
	KindAuthorization Kind = "authorization"
	KindDelivery      Kind = "delivery"
	KindValidation    Kind = "validation"
)

// AppError carries the localization key of the reply shown to the user.
type AppError struct {
	Code       string
	Kind       Kind
	Message    string
	MessageKey string
	cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// NewUserStateError reports an action that is invalid in the current conversation state.
func NewUserStateError(messageKey string, cause error) *AppError {
	return &AppError{
		Code:       "E100",
		Kind:       KindUserState,
		Message:    "action not allowed in current state",
		MessageKey: messageKey,
		cause:      cause,
	}
}

// NewAuthorizationError reports a non-admin calling an admin command.
func NewAuthorizationError(cause error) *AppError {
	return &AppError{
		Code:       "E200",
		Kind:       KindAuthorization,
		Message:    "unauthorized",
		MessageKey: "unauthorized",
		cause:      cause,
	}
}

// NewDeliveryError reports a failed gateway send.
func NewDeliveryError(messageKey string, cause error) *AppError {
	return &AppError{
		Code:       "E300",
		Kind:       KindDelivery,
		Message:    "delivery failed",
		MessageKey: messageKey,
		cause:      cause,
	}
}

// NewValidationError reports rejected user input.
func NewValidationError(messageKey string, cause error) *AppError {
	return &AppError{
		Code:       "E400",
		Kind:       KindValidation,
		Message:    "validation failed",
		MessageKey: messageKey,
		cause:      cause,
	}
}

// As unwraps err into an AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stdErrors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}
	return nil, false
}
