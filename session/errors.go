package session

import "errors"

// ErrorCode identifies a contractual authentication failure.
type ErrorCode string

const (
	CodeInvalidCredentials  ErrorCode = "INVALID_CREDENTIALS"
	CodeEmailExists         ErrorCode = "EMAIL_EXISTS"
	CodePasswordMismatch    ErrorCode = "PASSWORD_MISMATCH"
	CodeNoToken             ErrorCode = "NO_TOKEN"
	CodeInvalidToken        ErrorCode = "INVALID_TOKEN"
	CodeNoRefreshToken      ErrorCode = "NO_REFRESH_TOKEN"
	CodeInvalidRefreshToken ErrorCode = "INVALID_REFRESH_TOKEN"
	CodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
)

// AuthError is the typed error the service returns for every domain
// failure. Message is safe to surface to users verbatim.
type AuthError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *AuthError) Error() string {
	return e.Message
}

var (
	ErrInvalidCredentials  = &AuthError{Code: CodeInvalidCredentials, Message: "Invalid email or password"}
	ErrEmailExists         = &AuthError{Code: CodeEmailExists, Message: "An account with this email already exists"}
	ErrPasswordMismatch    = &AuthError{Code: CodePasswordMismatch, Message: "Passwords do not match"}
	ErrNoToken             = &AuthError{Code: CodeNoToken, Message: "No access token found"}
	ErrInvalidToken        = &AuthError{Code: CodeInvalidToken, Message: "Invalid access token"}
	ErrNoRefreshToken      = &AuthError{Code: CodeNoRefreshToken, Message: "No refresh token found"}
	ErrInvalidRefreshToken = &AuthError{Code: CodeInvalidRefreshToken, Message: "Invalid refresh token"}
	ErrUserNotFound        = &AuthError{Code: CodeUserNotFound, Message: "User not found"}
)

// AsAuthError unwraps err to the typed AuthError if one is in the chain.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}
