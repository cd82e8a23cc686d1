// Package apperr defines the application error taxonomy shared by the store,
// the AI client and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and status mapping.
type Kind int

const (
	// StoreFailure is the zero Kind so unclassified errors default to it.
	StoreFailure Kind = iota
	InvalidInput
	Unauthorized
	Forbidden
	NotFound
	Conflict
	UpstreamFailure
)

var kindNames = map[Kind]string{
	StoreFailure:    "StoreFailure",
	InvalidInput:    "InvalidInput",
	Unauthorized:    "Unauthorized",
	Forbidden:       "Forbidden",
	NotFound:        "NotFound",
	Conflict:        "Conflict",
	UpstreamFailure: "UpstreamFailure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified application error. Code is a stable identifier used
// for message lookup; Message is a developer-facing detail.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code so wrapped copies created with With still match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code && t.Kind == e.Kind
}

// With returns a copy of e carrying a more specific message.
func (e *Error) With(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Business-rule sentinels.
var (
	ErrAlreadyAttempted = &Error{Kind: Forbidden, Code: "AlreadyAttempted", Message: "exam already attempted"}
	ErrExamLocked       = &Error{Kind: Forbidden, Code: "ExamLocked", Message: "exam has attempts and can no longer be edited"}
	ErrNotOwner         = &Error{Kind: Forbidden, Code: "NotOwner", Message: "resource belongs to another user"}
	ErrExamRestricted   = &Error{Kind: Forbidden, Code: "ExamRestricted", Message: "exam is not visible to this user"}
	ErrNotPending       = &Error{Kind: Conflict, Code: "NotPending", Message: "request has already been reviewed"}
	ErrDuplicateRequest = &Error{Kind: Conflict, Code: "DuplicateRequest", Message: "a pending request already exists for this attempt"}
	ErrEmailTaken       = &Error{Kind: Conflict, Code: "EmailTaken", Message: "email already registered"}
	ErrExamNotFound     = &Error{Kind: NotFound, Code: "ExamNotFound", Message: "exam not found"}
	ErrAttemptNotFound  = &Error{Kind: NotFound, Code: "AttemptNotFound", Message: "attempt not found"}
	ErrRequestNotFound  = &Error{Kind: NotFound, Code: "RequestNotFound", Message: "deletion request not found"}
	ErrUserNotFound     = &Error{Kind: NotFound, Code: "UserNotFound", Message: "user not found"}
	ErrInvalidToken     = &Error{Kind: Unauthorized, Code: "InvalidToken", Message: "invalid or expired token"}
	ErrBadCredentials   = &Error{Kind: Unauthorized, Code: "BadCredentials", Message: "invalid credentials"}
	ErrNoCredentials    = &Error{Kind: Unauthorized, Code: "Unauthorized", Message: "missing bearer token"}
	ErrRoleDenied       = &Error{Kind: Forbidden, Code: "Forbidden", Message: "role not allowed for this route"}
	ErrSelfDelete       = &Error{Kind: Forbidden, Code: "CannotDeleteSelf", Message: "cannot delete own account"}
)

// Invalid builds an InvalidInput error.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: InvalidInput, Code: "InvalidInput", Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a failure from a third-party service.
func Upstream(err error, format string, args ...any) *Error {
	return &Error{Kind: UpstreamFailure, Code: "UpstreamFailure", Message: fmt.Sprintf(format, args...), Err: err}
}

// Store wraps a persistence failure.
func Store(err error, format string, args ...any) *Error {
	return &Error{Kind: StoreFailure, Code: "StoreFailure", Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or StoreFailure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StoreFailure
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return KindOf(err).String()
}
