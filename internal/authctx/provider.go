// Package authctx owns the identity client for the lifetime of the process
// and exposes each request's authentication state through the request
// context.
package authctx

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"auth-shell/internal/auth"
	"auth-shell/internal/auth/client"
	"auth-shell/internal/logger"
	"auth-shell/internal/session"
)

// Factory constructs the identity client. It may block on network I/O
// (OIDC discovery).
type Factory func(ctx context.Context) (*client.Client, error)

type Provider struct {
	create Factory
	flows  *session.FlowStore
	cookie session.CookieOptions

	mu     sync.RWMutex
	handle Handle

	start sync.Once
	ready chan struct{}
}

func New(create Factory, flows *session.FlowStore, cookie session.CookieOptions) *Provider {
	return &Provider{
		create: create,
		flows:  flows,
		cookie: cookie,
		ready:  make(chan struct{}),
	}
}

// Start constructs the identity client in the background. Only the first
// call has an effect; ctx bounds the construction.
func (p *Provider) Start(ctx context.Context) {
	p.start.Do(func() {
		go p.initialize(ctx)
	})
}

func (p *Provider) initialize(ctx context.Context) {
	logger.Info("initializing identity client", nil)

	c, err := p.create(ctx)
	if err == nil && c == nil {
		err = errors.New("factory returned no client")
	}

	p.mu.Lock()
	if err != nil {
		p.handle = failedHandle(err)
	} else {
		p.handle = readyHandle(c)
	}
	p.mu.Unlock()
	close(p.ready)

	if err != nil {
		logger.Error("identity client initialization failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	logger.Info("identity client ready", nil)
}

// Ready is closed once the handle left Uninitialized.
func (p *Provider) Ready() <-chan struct{} {
	return p.ready
}

func (p *Provider) Handle() Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handle
}

// WaitReady blocks until the handle settled or ctx is done.
func (p *Provider) WaitReady(ctx context.Context) (Handle, error) {
	select {
	case <-p.ready:
		return p.Handle(), nil
	case <-ctx.Done():
		return p.Handle(), ctx.Err()
	}
}

// Resolve computes the authentication state for a session ID.
func (p *Provider) Resolve(ctx context.Context, sessionID string) (State, error) {
	c, err := p.Handle().Client()
	if errors.Is(err, ErrClientNotReady) {
		return State{IsLoading: true}, nil
	}
	if err != nil {
		return State{}, err
	}

	authed, err := c.IsAuthenticated(ctx, sessionID)
	if err != nil || !authed {
		return State{}, err
	}

	user, err := c.GetUser(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	return State{IsAuthenticated: user != nil, User: user}, nil
}

// LoginWithRedirect remembers a new login transaction on w and returns the
// authorization URL to send the browser to.
func (p *Provider) LoginWithRedirect(w http.ResponseWriter, r *http.Request, opts client.LoginOptions) (string, error) {
	c, err := p.Handle().Client()
	if err != nil {
		return "", err
	}

	opts.ReturnTo = SafeReturnTo(opts.ReturnTo)

	req, err := c.LoginWithRedirect(r.Context(), opts)
	if err != nil {
		return "", err
	}
	if err := p.flows.Save(w, r, req.Flow); err != nil {
		return "", err
	}
	return req.URL, nil
}

// HandleRedirectCallback completes a pending login for the callback request,
// issues the session cookie and returns the clean local path to continue
// at. The login transaction is consumed whether or not the exchange works.
func (p *Provider) HandleRedirectCallback(w http.ResponseWriter, r *http.Request) (string, error) {
	h, err := p.WaitReady(r.Context())
	if err != nil {
		return "", err
	}
	c, err := h.Client()
	if err != nil {
		return "", err
	}

	ctx := r.Context()

	flow, err := p.flows.Load(r)
	if err != nil {
		flow = session.Flow{}
	}
	if err := p.flows.Clear(w, r); err != nil {
		logger.FromContext(ctx).Warn("failed to clear login transaction", "error", err)
	}

	res, err := c.HandleRedirectCallback(ctx, r.URL.Query(), flow)
	if err != nil {
		return "", err
	}

	// drop whatever session this browser had before
	if old := session.IDFromRequest(r, p.cookie); old != "" && old != res.Session.SessionID {
		if _, err := c.Logout(ctx, old, client.LogoutOptions{LocalOnly: true}); err != nil {
			logger.FromContext(ctx).Warn("failed to drop previous session", "error", err)
		}
	}

	session.SetCookie(w, res.Session.SessionID, res.Session.ExpiresAt, p.cookie)

	logger.FromContext(ctx).Info("login completed", "session_created", true)

	if to := SafeReturnTo(res.ReturnTo); to != "" {
		return to, nil
	}
	return cleanPath(r.URL), nil
}

func (p *Provider) GetTokenSilently(ctx context.Context, sessionID string, opts client.TokenOptions) (string, error) {
	c, err := p.Handle().Client()
	if err != nil {
		return "", err
	}
	return c.GetTokenSilently(ctx, sessionID, opts)
}

func (p *Provider) GetIDTokenClaims(ctx context.Context, sessionID string) (*auth.IDTokenClaims, error) {
	c, err := p.Handle().Client()
	if err != nil {
		return nil, err
	}
	return c.GetIDTokenClaims(ctx, sessionID)
}

// Logout ends the browser's session, clears its cookie and returns where to
// send the browser next.
func (p *Provider) Logout(w http.ResponseWriter, r *http.Request, opts client.LogoutOptions) (string, error) {
	c, err := p.Handle().Client()
	if err != nil {
		return "", err
	}

	sessionID := session.IDFromRequest(r, p.cookie)
	next, err := c.Logout(r.Context(), sessionID, opts)
	if err != nil {
		return "", err
	}
	session.ClearCookie(w, p.cookie)

	if next == "" {
		if next = SafeReturnTo(opts.ReturnTo); next == "" {
			next = "/"
		}
	}
	return next, nil
}

// IsRedirectCallback reports whether u is the identity provider sending the
// browser back: an authorization code, or an error answer tied to a state.
func IsRedirectCallback(u *url.URL) bool {
	q := u.Query()
	if q.Get("code") != "" {
		return true
	}
	return q.Get("error") != "" && q.Get("state") != ""
}

// SafeReturnTo accepts local absolute paths only and returns "" for
// anything else.
func SafeReturnTo(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return p
}

func cleanPath(u *url.URL) string {
	if p := u.EscapedPath(); p != "" {
		return p
	}
	return "/"
}
