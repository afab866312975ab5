package authctx

import (
	"errors"
	"fmt"

	"auth-shell/internal/auth/client"
)

var (
	// ErrClientNotReady is returned by every delegating operation invoked
	// before the identity client finished constructing.
	ErrClientNotReady = errors.New("authctx: identity client not ready")

	// ErrNoProvider means the request was not mounted under a Provider.
	ErrNoProvider = errors.New("authctx: no auth provider in context")
)

// InitError is returned by delegating operations when the identity client
// failed to construct. It stays the answer until the process restarts.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("authctx: identity client failed to initialize: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

type Status int

const (
	StatusUninitialized Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Handle is the state-tagged reference to the identity client:
// Uninitialized, Ready(client) or Failed(err). The only way to reach the
// client is Client, which makes callers deal with the other two cases.
type Handle struct {
	status Status
	client *client.Client
	err    error
}

func (h Handle) Status() Status { return h.status }

// Err returns the construction error of a Failed handle.
func (h Handle) Err() error { return h.err }

func (h Handle) Client() (*client.Client, error) {
	switch h.status {
	case StatusReady:
		return h.client, nil
	case StatusFailed:
		return nil, &InitError{Err: h.err}
	default:
		return nil, ErrClientNotReady
	}
}

func readyHandle(c *client.Client) Handle {
	return Handle{status: StatusReady, client: c}
}

func failedHandle(err error) Handle {
	return Handle{status: StatusFailed, err: err}
}
