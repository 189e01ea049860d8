package services

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the HTTP boundary can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	}
	return "internal"
}

// FieldIssue describes one failed validation rule.
type FieldIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is the typed failure returned by every service operation.
type Error struct {
	Kind    Kind
	Message string
	// Issues is set for KindValidation.
	Issues []FieldIssue
	// UpstreamStatus carries the remote identity service status, 0 for transport failures.
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind and message, so package-level
// values can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Forbidden(msg string) *Error    { return newError(KindForbidden, msg) }
func NotFound(what string) *Error    { return newError(KindNotFound, what+" not found") }
func Conflict(msg string) *Error     { return newError(KindConflict, msg) }
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg) }

// Internal wraps an unexpected lower-level failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Invalid builds a validation failure from field issues.
func Invalid(issues ...FieldIssue) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Issues: issues}
}

var (
	ErrMissingCredential   = Unauthorized("missing credential")
	ErrMalformedCredential = Unauthorized("malformed credential")
	ErrInvalidCredential   = Unauthorized("invalid credential")

	ErrSelfVerification = Forbidden("agents cannot verify their own reports")
	ErrNotAssignee      = Forbidden("job is not assigned to this agent")
	ErrNotOwner         = Forbidden("only the bounty owner may do this")
	ErrOwnBounty        = Forbidden("bounty owners cannot report against their own bounty")

	ErrJobUnavailable   = Conflict("job is no longer available")
	ErrJobCompleted     = Conflict("job has already been completed")
	ErrBountyClosed     = Conflict("bounty is not accepting reports")
	ErrDuplicateReport  = Conflict("a report for this bounty already exists from this agent")
	ErrAlreadyPaid      = Conflict("bounty reward has already been claimed")
	ErrReportUnverified = Conflict("report has not been verified")
)

// KindOf returns the Kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
