package model

import "fmt"

// ErrorCode identifies the kind of a domain error
type ErrorCode int

const (
	// Authorization errors (2xxx)
	ErrCodeForbidden        ErrorCode = 2001
	ErrCodeInsufficientRank ErrorCode = 2002
	ErrCodeBanned           ErrorCode = 2003

	// Resource errors (3xxx)
	ErrCodeNotFound         ErrorCode = 3001
	ErrCodeAlreadyMember    ErrorCode = 3002
	ErrCodeConflict         ErrorCode = 3003
	ErrCodeAlreadyOnboarded ErrorCode = 3004
	ErrCodeUsernameTaken    ErrorCode = 3005
	ErrCodeOwnerCannotLeave ErrorCode = 3006

	// Validation errors (4xxx)
	ErrCodeValidation              ErrorCode = 4001
	ErrCodeInvalidOverwriteSubject ErrorCode = 4002
	ErrCodeStaleAcknowledgement    ErrorCode = 4003

	// Internal errors (5xxx)
	ErrCodeStoreFailure ErrorCode = 5002
)

var codeNames = map[ErrorCode]string{
	ErrCodeForbidden:               "Forbidden",
	ErrCodeInsufficientRank:        "InsufficientRank",
	ErrCodeBanned:                  "Banned",
	ErrCodeNotFound:                "NotFound",
	ErrCodeAlreadyMember:           "AlreadyMember",
	ErrCodeConflict:                "Conflict",
	ErrCodeAlreadyOnboarded:        "AlreadyOnboarded",
	ErrCodeUsernameTaken:           "UsernameTaken",
	ErrCodeOwnerCannotLeave:        "OwnerCannotLeave",
	ErrCodeValidation:              "Validation",
	ErrCodeInvalidOverwriteSubject: "InvalidOverwriteSubject",
	ErrCodeStaleAcknowledgement:    "StaleAcknowledgement",
	ErrCodeStoreFailure:            "StoreFailure",
}

// String returns the symbolic name of the code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is a typed domain error returned by every core operation.
// Transport adapters map Code to their own status representation.
type Error struct {
	Code   ErrorCode
	Detail string
	Errors []FieldError
	Err    error
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same code. A target without
// a detail matches every error of its code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Detail == "" || t.Detail == e.Detail
}

// Kind sentinels. Use errors.Is to test for a kind.
var (
	ErrForbidden               = &Error{Code: ErrCodeForbidden}
	ErrInsufficientRank        = &Error{Code: ErrCodeInsufficientRank}
	ErrBanned                  = &Error{Code: ErrCodeBanned}
	ErrNotFound                = &Error{Code: ErrCodeNotFound}
	ErrAlreadyMember           = &Error{Code: ErrCodeAlreadyMember}
	ErrConflict                = &Error{Code: ErrCodeConflict}
	ErrAlreadyOnboarded        = &Error{Code: ErrCodeAlreadyOnboarded}
	ErrUsernameTaken           = &Error{Code: ErrCodeUsernameTaken}
	ErrOwnerCannotLeave        = &Error{Code: ErrCodeOwnerCannotLeave}
	ErrValidation              = &Error{Code: ErrCodeValidation}
	ErrInvalidOverwriteSubject = &Error{Code: ErrCodeInvalidOverwriteSubject}
	ErrStaleAcknowledgement    = &Error{Code: ErrCodeStaleAcknowledgement}
	ErrStoreFailure            = &Error{Code: ErrCodeStoreFailure}
)

// NewError creates an error of the given kind
func NewError(code ErrorCode, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// NewNotFoundError creates a not found error for a resource
func NewNotFoundError(resource string) *Error {
	return &Error{Code: ErrCodeNotFound, Detail: fmt.Sprintf("%s not found", resource)}
}

// NewValidationError builds a validation error from field errors
func NewValidationError(errors []FieldError) *Error {
	detail := "one or more fields failed validation"
	if len(errors) > 0 {
		detail = fmt.Sprintf("%s: %s", errors[0].Field, errors[0].Message)
		if len(errors) > 1 {
			detail = fmt.Sprintf("%s (and %d more errors)", detail, len(errors)-1)
		}
	}
	return &Error{Code: ErrCodeValidation, Detail: detail, Errors: errors}
}

// NewStoreError wraps a storage failure. The operation is safe to retry.
func NewStoreError(op string, err error) *Error {
	return &Error{Code: ErrCodeStoreFailure, Detail: op, Err: err}
}
