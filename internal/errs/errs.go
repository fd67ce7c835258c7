// Package errs holds the user-facing error type shared by every command.
package errs

import (
	"errors"
	"fmt"

	smithy "github.com/aws/smithy-go"
)

// UserErrorf is a user-facing error.
// This helper exists mostly to avoid linters complaining about errors starting
// with a capitalized letter.
func UserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Error wraps an underlying error with a user-facing reason.
//
// Reason is meant to be short and actionable; Err may contain technical details.
// When Err is nil, Error() falls back to Reason.
type Error struct {
	Err    error
	Reason string
}

// Wrap creates an Error with the given underlying error and user-facing reason.
func Wrap(err error, reason string) Error {
	return Error{Err: err, Reason: reason}
}

// Wrapf creates an Error with the given underlying error and a formatted reason.
func Wrapf(err error, format string, a ...any) Error {
	return Error{Err: err, Reason: fmt.Sprintf(format, a...)}
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e Error) Unwrap() error {
	return e.Err
}

// ReasonText returns the user-facing reason for the error.
func (e Error) ReasonText() string {
	return e.Reason
}

// Message renders err the way the interactive loop shows it: the reason
// followed by the details, or just the error text for plain errors.
func Message(err error) string {
	var e Error
	if !errors.As(err, &e) || e.ReasonText() == "" {
		return err.Error()
	}
	if e.Err == nil {
		return e.ReasonText()
	}
	return e.ReasonText() + " " + e.Err.Error()
}

// APICode returns the error code reported by an AWS service, or "" when err
// did not come from a remote API.
func APICode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
