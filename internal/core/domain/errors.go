// Package domain defines the core domain models for authctl.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// DomainError represents a domain error with a structured error code.
//
// Codes have the form AC-<AREA>-<NNNN>, where the numeric part mirrors the
// closest HTTP status class.
type DomainError struct {
	Code    string // Error code (e.g., "AC-AUTH-4010")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support. Two domain errors match when their
// codes are equal, whatever their details or cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// HTTPStatus returns the status class carried by the numeric part of the
// code, e.g. 401 for AC-AUTH-4010. Codes without one map to 500.
func (e *DomainError) HTTPStatus() int {
	n, err := strconv.Atoi(e.Code[strings.LastIndexByte(e.Code, '-')+1:])
	if err != nil || n < 1000 || n > 5999 {
		return http.StatusInternalServerError
	}
	return n / 10
}

// AsDomainError returns the DomainError in err's chain. When there is
// none, it returns fallback wrapping err.
func AsDomainError(err error, fallback *DomainError) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return fallback.WithCause(err)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrUnauthenticated indicates no access token is held. It is returned
	// before any network activity takes place.
	ErrUnauthenticated = NewDomainError("AC-AUTH-4010", "no access token available")

	// ErrSessionExpired indicates the access token was rejected and could
	// not be refreshed. Credentials have been cleared.
	ErrSessionExpired = NewDomainError("AC-AUTH-4011", "session expired, login required")

	// ErrRefreshFailed indicates the refresh exchange did not yield a new pair.
	ErrRefreshFailed = NewDomainError("AC-AUTH-4012", "token refresh failed")

	// ErrLoginFailed indicates the login endpoint rejected the credentials.
	ErrLoginFailed = NewDomainError("AC-AUTH-4000", "login failed")
)

// ============================================================================
// Profile Errors (PROF)
// ============================================================================

var (
	// ErrProfileFetchFailed indicates GET /auth/profile returned a non-2xx status.
	ErrProfileFetchFailed = NewDomainError("AC-PROF-5020", "failed to get profile")

	// ErrProfileUpdateFailed indicates PUT /auth/profile returned a non-2xx status.
	ErrProfileUpdateFailed = NewDomainError("AC-PROF-5021", "failed to update profile")
)

// ============================================================================
// API / Storage / System Errors
// ============================================================================

var (
	// ErrMalformedEnvelope indicates a successful response whose body is not
	// the expected envelope.
	ErrMalformedEnvelope = NewDomainError("AC-API-5000", "malformed response envelope")

	// ErrUpstreamUnavailable indicates the API could not be reached.
	ErrUpstreamUnavailable = NewDomainError("AC-API-5020", "upstream request failed")

	// ErrForbiddenOrigin indicates a gateway request that did not come from
	// a local same-origin caller.
	ErrForbiddenOrigin = NewDomainError("AC-API-4030", "request origin not allowed")

	// ErrStoreUnavailable indicates the persistent credential store failed.
	ErrStoreUnavailable = NewDomainError("AC-STOR-5030", "credential store unavailable")

	// ErrStoreSealed indicates the sealed store could not be opened.
	ErrStoreSealed = NewDomainError("AC-STOR-4030", "credential store is sealed")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("AC-ARG-4000", "invalid argument")

	// ErrInternal indicates a bug: a panic or an impossible state.
	ErrInternal = NewDomainError("AC-SYS-5000", "internal error")
)
