// Package errors defines the PayHook error taxonomy plus the HTTP-facing
// AppError envelope the gin handlers use for their responses.
package errors

import (
	"errors"
	"net/http"

	"payhook.dev/ledger/internal/domain/entities"
)

// Generic domain errors for the parts of the stack (HTTP envelope,
// storage-port lookups) that need a plain sentinel rather than a classified
// pipeline fate.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
)

// Pipeline-stage error kinds, one sentinel per kind.
var (
	ErrParse               = errors.New("payload is not valid for the declared format")
	ErrSignature           = errors.New("signature missing, invalid, or unconfigured")
	ErrNormalization       = errors.New("unknown event type or missing required fields")
	ErrDuplicateWebhook    = errors.New("duplicate (provider, providerEventId)")
	ErrTransactionNotFound = errors.New("no transaction reference match")
	ErrTransitionRejected  = errors.New("illegal state transition")
	ErrStorage             = errors.New("storage backend failure")
	ErrPipelineTimeout     = errors.New("pipeline deadline exceeded")
	ErrDispatch            = errors.New("handler dispatch failure")

	// Storage-port specific sentinels.
	ErrDuplicateApplicationRef = errors.New("applicationRef already exists")
	ErrProviderRefMismatch     = errors.New("providerRef already set to a different value")
)

// ClaimError carries a classified pipeline-error kind, the fate a stage
// should record for it, and the wrapped cause. Stages convert ClaimErrors
// into fates rather than letting them escape to the HTTP boundary.
type ClaimError struct {
	Kind    error
	Fate    entities.ProcessingStatus
	Message string
	Err     error
	// Continue marks a classification that must not short-circuit the
	// pipeline (S1 signature failures: the claim still needs persist-claim
	// to record the attempt). The processor records Fate but keeps running
	// the remaining stages.
	Continue bool
}

func (e *ClaimError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *ClaimError) Unwrap() error { return e.Kind }

func newClaimError(kind error, fate entities.ProcessingStatus, message string, cause error) *ClaimError {
	return &ClaimError{Kind: kind, Fate: fate, Message: message, Err: cause}
}

func Parse(message string, cause error) *ClaimError {
	return newClaimError(ErrParse, entities.FateParseError, message, cause)
}

// Signature classifies a verification failure. Per spec.md §4.4 S1, this
// never short-circuits the pipeline: persist-claim must still record the
// attempt, so the error is marked Continue.
func Signature(message string) *ClaimError {
	e := newClaimError(ErrSignature, entities.FateSignatureFailed, message, nil)
	e.Continue = true
	return e
}

func Normalization(message string, cause error) *ClaimError {
	return newClaimError(ErrNormalization, entities.FateNormalizationFailed, message, cause)
}

func DuplicateWebhook(message string) *ClaimError {
	return newClaimError(ErrDuplicateWebhook, entities.FateDuplicate, message, nil)
}

func TransactionNotFound(message string) *ClaimError {
	return newClaimError(ErrTransactionNotFound, entities.FateUnmatched, message, nil)
}

func TransitionRejected(message string) *ClaimError {
	return newClaimError(ErrTransitionRejected, entities.FateTransitionRejected, message, nil)
}

// Storage carries no fate: it represents an infrastructure failure that
// aborts the claim before a terminal webhook outcome can be recorded,
// rather than a classified rejection of the webhook itself.
func Storage(message string, cause error) *ClaimError {
	return newClaimError(ErrStorage, "", message, cause)
}

// Timeout classifies a pipeline deadline exceeded. Per spec.md §4.5/§7 this
// is still a classified fate (PARSE_ERROR), not an infrastructure failure:
// the HTTP layer must answer 200 OK so the provider does not blindly retry
// a claim that may have partially committed.
func Timeout(message string) *ClaimError {
	return newClaimError(ErrPipelineTimeout, entities.FateParseError, message, nil)
}

func Dispatch(message string, cause error) *ClaimError {
	return newClaimError(ErrDispatch, "", message, cause)
}

// AppError represents application error with HTTP status
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewAppError creates a new app error
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, message, ErrForbidden)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "internal server error", err)
}

// NewError creates a new error with a custom message wrapping an existing error
func NewError(message string, err error) error {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}
