package bootstrap

import (
	"errors"
	"fmt"
)

// ErrAuthenticationFailed matches any *AuthError.
var ErrAuthenticationFailed = errors.New("authentication failed")

// AuthError reports a failed login against Service. It is fatal to the run.
type AuthError struct {
	Service string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s login failed: %v", e.Service, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}
