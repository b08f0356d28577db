// Package oautherr defines the closed set of OAuth 2.0 errors raised by the
// authorization server flows, each with a stable wire name and HTTP status.
package oautherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one member of the error taxonomy.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindInvalidRequest
	KindInvalidClient
	KindInvalidGrant
	KindInvalidScope
	KindInvalidToken
	KindUnauthorizedClient
	KindUnauthorizedRequest
	KindUnsupportedGrantType
	KindUnsupportedResponseType
	KindAccessDenied
	KindInsufficientScope
	KindServerError
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidArgument         = "invalid_argument"
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnauthorizedRequest     = "unauthorized_request"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeInsufficientScope       = "insufficient_scope"
	ErrorCodeServerError             = "server_error"
)

type kindInfo struct {
	code   string
	status int
}

var kinds = map[Kind]kindInfo{
	KindInvalidArgument:         {ErrorCodeInvalidArgument, http.StatusInternalServerError},
	KindInvalidRequest:          {ErrorCodeInvalidRequest, http.StatusBadRequest},
	KindInvalidClient:           {ErrorCodeInvalidClient, http.StatusBadRequest},
	KindInvalidGrant:            {ErrorCodeInvalidGrant, http.StatusBadRequest},
	KindInvalidScope:            {ErrorCodeInvalidScope, http.StatusBadRequest},
	KindInvalidToken:            {ErrorCodeInvalidToken, http.StatusUnauthorized},
	KindUnauthorizedClient:      {ErrorCodeUnauthorizedClient, http.StatusBadRequest},
	KindUnauthorizedRequest:     {ErrorCodeUnauthorizedRequest, http.StatusUnauthorized},
	KindUnsupportedGrantType:    {ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
	KindUnsupportedResponseType: {ErrorCodeUnsupportedResponseType, http.StatusBadRequest},
	KindAccessDenied:            {ErrorCodeAccessDenied, http.StatusBadRequest},
	KindInsufficientScope:       {ErrorCodeInsufficientScope, http.StatusForbidden},
	KindServerError:             {ErrorCodeServerError, http.StatusServiceUnavailable},
}

// Code returns the wire name of the kind, e.g. "invalid_grant".
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return ErrorCodeServerError
}

// Status returns the default HTTP status of the kind.
func (k Kind) Status() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusServiceUnavailable
}

func (k Kind) String() string {
	return k.Code()
}

// Error represents an OAuth 2.0 error response
type Error struct {
	Kind        Kind
	Code        string // wire value of the "error" field
	Description string // human-readable, sent as "error_description"
	Status      int    // HTTP status code
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Description {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithStatus returns a copy of e carrying a different HTTP status.
func (e *Error) WithStatus(status int) *Error {
	c := *e
	c.Status = status
	return &c
}

// WithCause returns a copy of e carrying cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// New creates a new error of the given kind.
func New(kind Kind, description string) *Error {
	return &Error{
		Kind:        kind,
		Code:        kind.Code(),
		Description: description,
		Status:      kind.Status(),
	}
}

// Common OAuth errors as constructors
var (
	// ErrInvalidArgument indicates a programming or configuration error.
	ErrInvalidArgument = func(desc string) *Error {
		return New(KindInvalidArgument, desc)
	}

	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *Error {
		return New(KindInvalidRequest, desc)
	}

	// ErrInvalidClient indicates client authentication failed
	ErrInvalidClient = func(desc string) *Error {
		return New(KindInvalidClient, desc)
	}

	// ErrInvalidGrant indicates the authorization code, refresh token or user credentials are invalid
	ErrInvalidGrant = func(desc string) *Error {
		return New(KindInvalidGrant, desc)
	}

	// ErrInvalidScope indicates the requested scope is invalid or rejected by policy
	ErrInvalidScope = func(desc string) *Error {
		return New(KindInvalidScope, desc)
	}

	// ErrInvalidToken indicates the access token is unknown or expired
	ErrInvalidToken = func(desc string) *Error {
		return New(KindInvalidToken, desc)
	}

	// ErrUnauthorizedClient indicates the client is not allowed to use the grant
	ErrUnauthorizedClient = func(desc string) *Error {
		return New(KindUnauthorizedClient, desc)
	}

	// ErrUnauthorizedRequest indicates no authentication material was supplied
	ErrUnauthorizedRequest = func(desc string) *Error {
		return New(KindUnauthorizedRequest, desc)
	}

	// ErrUnsupportedGrantType indicates the grant type is not registered
	ErrUnsupportedGrantType = func(desc string) *Error {
		return New(KindUnsupportedGrantType, desc)
	}

	// ErrUnsupportedResponseType indicates the response type is not registered
	ErrUnsupportedResponseType = func(desc string) *Error {
		return New(KindUnsupportedResponseType, desc)
	}

	// ErrAccessDenied indicates the end user denied the request
	ErrAccessDenied = func(desc string) *Error {
		return New(KindAccessDenied, desc)
	}

	// ErrInsufficientScope indicates the token does not cover the required scope
	ErrInsufficientScope = func(desc string) *Error {
		return New(KindInsufficientScope, desc)
	}

	// ErrServerError indicates an internal failure or a collaborator contract violation
	ErrServerError = func(desc string) *Error {
		return New(KindServerError, desc)
	}
)

// As reports whether err is, or wraps, a taxonomy error.
func As(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// Is reports whether err is, or wraps, a taxonomy error of the given kind.
func Is(err error, kind Kind) bool {
	oe, ok := As(err)
	return ok && oe.Kind == kind
}

// Wrap converts any error into a taxonomy error. Taxonomy errors are returned
// unchanged; anything else becomes a server_error with the original as cause.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if oe, ok := As(err); ok {
		return oe
	}
	return &Error{
		Kind:        KindServerError,
		Code:        ErrorCodeServerError,
		Description: err.Error(),
		Status:      KindServerError.Status(),
		Cause:       err,
	}
}
