package client

import (
	"errors"
	"fmt"
)

var (
	// ErrRefreshTokenMissing is returned when a refresh is needed but no refresh token is stored
	ErrRefreshTokenMissing = errors.New("no refresh token available")

	// ErrRefreshFailed matches any *RefreshError via errors.Is
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrRetryExhausted is returned when a request replayed with a fresh token is still unauthorized
	ErrRetryExhausted = errors.New("request unauthorized after token refresh")
)

// RefreshError reports that the refresh endpoint rejected the refresh token or could not be reached.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRefreshFailed) match.
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

// APIError is a non-2xx response, or a response carrying the backend's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// IsAuthError reports whether err means the session is gone and the user must log in again.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrRefreshFailed) || errors.Is(err, ErrRefreshTokenMissing) || errors.Is(err, ErrRetryExhausted) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 401
}
