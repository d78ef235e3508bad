package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an error for callers and the HTTP layer.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeInvalidState ErrorType = "invalid_state"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// Stable error codes surfaced to API clients.
const (
	CodeAuctionNotActive = "AUCTION_NOT_ACTIVE"
	CodeInvalidBid       = "INVALID_BID"
	CodeUnknownBidder    = "UNKNOWN_BIDDER"
	CodeInvalidState     = "INVALID_STATE"
	CodeDuplicateVote    = "DUPLICATE_VOTE"
	CodeAlreadyResolved  = "ALREADY_RESOLVED"
	CodeConflict         = "CONFLICT"
	CodeNotFound         = "RESOURCE_NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

// NewInvalidStateError signals an operation that is not legal in the entity's
// current lifecycle state.
func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidState,
		Code:       CodeInvalidState,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewAuthorizationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       CodeForbidden,
		Message:    message,
		Retryable:  false,
		StatusCode: 403,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

// NewConflictError signals a lost race against a concurrent writer. Callers may
// retry after re-reading current state.
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       CodeConflict,
		Message:    message,
		Retryable:  true,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// NewAuctionNotActiveError rejects a bid on an auction outside its live window.
func NewAuctionNotActiveError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidState,
		Code:       CodeAuctionNotActive,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

// NewInvalidBidError rejects a bid that does not beat the current high bid or
// falls below reserve.
func NewInvalidBidError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       CodeInvalidBid,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewUnknownBidderError(bidderID string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeUnknownBidder,
		Message:    fmt.Sprintf("bidder %s does not resolve to a known account", bidderID),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewDuplicateVoteError(arbitratorID string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       CodeDuplicateVote,
		Message:    fmt.Sprintf("arbitrator %s has already voted", arbitratorID),
		Retryable:  false,
		StatusCode: 409,
	}
}

// NewAlreadyResolvedError reports a verdict arriving after the escrow already
// left the Disputed state. Reported, not retried.
func NewAlreadyResolvedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       CodeAlreadyResolved,
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

// NewRateLimitError throttles a caller that is placing bids too quickly.
func NewRateLimitError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    message,
		Retryable:  true,
		StatusCode: 429,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// HasCode reports whether the error carries the given stable code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
