// Package serviceerr defines the error taxonomy shared by the services and
// the HTTP layer.
package serviceerr

import (
	"errors"
	"net/http"
)

// Sentinels used by repositories and the backend client.
var (
	ErrConflict       = errors.New("already exists")
	ErrNotFound       = errors.New("not found")
	ErrNoEmail        = errors.New("no email address known")
	ErrNotSignedIn    = errors.New("not signed in")
	ErrSessionExpired = errors.New("session expired")
)

type Code string

const (
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeUnauthorized       Code = "unauthorized"
	CodeConflict           Code = "conflict"
	CodeNotFound           Code = "not_found"
	CodeSessionExpired     Code = "session_expired"
	CodeVerificationGaveUp Code = "verification_gave_up"
	CodeBackendUnavailable Code = "backend_unavailable"
	CodeUnknown            Code = "unknown"
)

// Error carries a stable code alongside the human-readable description the
// hosted backend returned. The description is surfaced to the user verbatim.
type Error struct {
	Err         Code
	Description string
}

var (
	ErrUnknown            = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrInvalidRequest     = &Error{Err: CodeInvalidRequest}
	ErrInvalidCredentials = &Error{Err: CodeInvalidCredentials, Description: "invalid login credentials"}
	ErrUnauthorized       = &Error{Err: CodeUnauthorized, Description: "authentication required"}
	ErrVerificationGaveUp = &Error{Err: CodeVerificationGaveUp, Description: "email verification polling gave up"}
)

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}
	return string(e.Err) + ": " + e.Description
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeInvalidCredentials, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSessionExpired:
		return http.StatusGone
	case CodeVerificationGaveUp:
		return http.StatusPreconditionFailed
	case CodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
