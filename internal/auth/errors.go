package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginRequired means there is no usable session; the user has to go
	// through the interactive login again.
	ErrLoginRequired = errors.New("auth: login required")

	ErrInvalidState   = errors.New("auth: invalid state")
	ErrMissingCode    = errors.New("auth: missing authorization code")
	ErrNonceMismatch  = errors.New("auth: id_token nonce mismatch")
	ErrMissingIDToken = errors.New("auth: provider did not return id_token")
)

// CallbackError is an error returned by the identity provider on the
// redirect callback, e.g. access_denied.
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("auth: provider returned %s", e.Code)
	}
	return fmt.Sprintf("auth: provider returned %s: %s", e.Code, e.Description)
}
