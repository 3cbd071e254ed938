package service

import (
	"errors"
	"fmt"
)

// ErrorKind buckets every failure the core can surface. Business-rule
// violations (NotFound/Forbidden/Validation) never partially apply state;
// Internal aborts the enclosing transaction.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindForbidden
	KindValidation
)

// Error codes surfaced verbatim to API clients. Each names the violated
// precondition; clients match on the code, not the message.
const (
	CodeInviteNotFound  = "invite_not_found"
	CodeKolJobNotFound  = "kol_job_not_found"
	CodeRequestNotFound = "request_not_found"
	CodeKolNotFound     = "kol_not_found"
	CodeSlotNotFound    = "time_slot_not_found"

	CodeStateNotAllowed   = "state_not_allowed"
	CodeNotInviteOwner    = "not_invite_owner"
	CodeInviteNotRaw      = "invite_not_raw"
	CodeRequestNotPending = "request_not_pending"
	CodeRequestPending    = "request_pending"
	CodeTimeEmpty         = "time_empty"
	CodeBelowThreshold    = "below_payout_threshold"
	CodePayoutPending     = "payout_request_pending"
	CodeKolBlocked        = "kol_blocked"

	CodeReasonRequired     = "reason_required"
	CodeQuestionUnanswered = "question_unanswered"
	CodeMissingField       = "missing_field"
)

// DomainError carries the kind and the stable code alongside a human message.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func notFound(code, format string, args ...any) *DomainError {
	return &DomainError{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func forbidden(code, format string, args ...any) *DomainError {
	return &DomainError{Kind: KindForbidden, Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalid(code, format string, args ...any) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationError builds a caller-facing validation failure, for input errors
// detected outside the core (request binding, path params).
func ValidationError(message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: CodeMissingField, Message: message}
}

// NotFoundError builds a caller-facing not-found failure with a stable code.
func NotFoundError(code, message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Code: code, Message: message}
}

// KindOf classifies any error returned by the core. Errors that are not
// DomainErrors are internal: a failed save, a failed mail dispatch, a rolled
// back transaction.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the stable error code, or "internal" for system failures.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}
