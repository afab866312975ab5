// Package client is the session-aware face of the identity provider. It
// offers the operations a browser SDK would (login redirect, callback
// handling, silent token fetch, logout), keyed by server-side session ID.
package client

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"auth-shell/internal/auth"
	"auth-shell/internal/logger"
	"auth-shell/internal/session"
	"auth-shell/internal/utils"
)

// tokenSkew renews access tokens this long before they expire.
const tokenSkew = 30 * time.Second

type Options struct {
	SessionTTL time.Duration
	// Now is used instead of time.Now when set.
	Now func() time.Time
}

type Client struct {
	idp        auth.IdentityProvider
	store      session.Store
	sessionTTL time.Duration
	now        func() time.Time
}

func New(idp auth.IdentityProvider, store session.Store, opts Options) *Client {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		idp:        idp,
		store:      store,
		sessionTTL: ttl,
		now:        now,
	}
}

type LoginOptions struct {
	// ReturnTo is a local path to land on after the callback.
	ReturnTo   string
	Prompt     string
	ScreenHint string
	Audience   string
	Scopes     []string
}

// LoginRequest is the authorize URL plus the transaction the caller must
// keep until the callback.
type LoginRequest struct {
	URL  string
	Flow session.Flow
}

type TokenOptions struct {
	// IgnoreCache forces a refresh grant even if the cached token is valid.
	IgnoreCache bool
}

type LogoutOptions struct {
	ReturnTo string
	// LocalOnly ends the local session without visiting the provider.
	LocalOnly bool
}

type CallbackResult struct {
	Session  *session.Session
	ReturnTo string
}

func (c *Client) LoginWithRedirect(ctx context.Context, opts LoginOptions) (*LoginRequest, error) {
	verifier, challenge := generatePKCE()

	flow := session.Flow{
		State:        utils.RandomString(32),
		CodeVerifier: verifier,
		Nonce:        utils.RandomString(16),
		ReturnTo:     opts.ReturnTo,
	}

	authURL := c.idp.AuthCodeURL(auth.AuthorizeParams{
		State:         flow.State,
		CodeChallenge: challenge,
		Nonce:         flow.Nonce,
		Audience:      opts.Audience,
		Scopes:        opts.Scopes,
		Prompt:        opts.Prompt,
		ScreenHint:    opts.ScreenHint,
	})

	logger.FromContext(ctx).Debug("login redirect prepared", "provider", c.idp.Name())

	return &LoginRequest{URL: authURL, Flow: flow}, nil
}

// HandleRedirectCallback completes the authorization code exchange for the
// callback query and persists a new session.
func (c *Client) HandleRedirectCallback(
	ctx context.Context,
	query url.Values,
	flow session.Flow,
) (*CallbackResult, error) {

	state := query.Get("state")
	if state == "" || flow.State == "" ||
		subtle.ConstantTimeCompare([]byte(state), []byte(flow.State)) != 1 {
		return nil, auth.ErrInvalidState
	}

	if errParam := query.Get("error"); errParam != "" {
		return nil, &auth.CallbackError{
			Code:        errParam,
			Description: query.Get("error_description"),
		}
	}

	code := query.Get("code")
	if code == "" {
		return nil, auth.ErrMissingCode
	}

	tokens, err := c.idp.ExchangeCode(ctx, code, flow.CodeVerifier)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if tokens.IDToken == nil {
		return nil, auth.ErrMissingIDToken
	}
	if flow.Nonce != "" &&
		subtle.ConstantTimeCompare([]byte(tokens.IDToken.Nonce), []byte(flow.Nonce)) != 1 {
		return nil, auth.ErrNonceMismatch
	}

	sessionID, err := session.GenerateID()
	if err != nil {
		return nil, err
	}

	now := c.now()
	sess := session.Session{
		SessionID:            sessionID,
		User:                 tokens.IDToken.User(),
		IDToken:              tokens.IDToken,
		AccessToken:          tokens.AccessToken,
		RefreshToken:         tokens.RefreshToken,
		TokenType:            tokens.TokenType,
		AccessTokenExpiresAt: tokens.Expiry,
		CreatedAt:            now,
		ExpiresAt:            now.Add(c.sessionTTL),
	}

	if err := c.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return &CallbackResult{Session: &sess, ReturnTo: flow.ReturnTo}, nil
}

func (c *Client) IsAuthenticated(ctx context.Context, sessionID string) (bool, error) {
	_, err := c.load(ctx, sessionID)
	if errors.Is(err, auth.ErrLoginRequired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetUser returns the profile of the session, or nil when there is none.
func (c *Client) GetUser(ctx context.Context, sessionID string) (auth.User, error) {
	sess, err := c.load(ctx, sessionID)
	if errors.Is(err, auth.ErrLoginRequired) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess.User, nil
}

func (c *Client) GetIDTokenClaims(ctx context.Context, sessionID string) (*auth.IDTokenClaims, error) {
	sess, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.IDToken, nil
}

// GetTokenSilently returns a usable access token, refreshing it with the
// stored refresh token when needed.
func (c *Client) GetTokenSilently(ctx context.Context, sessionID string, opts TokenOptions) (string, error) {
	sess, err := c.load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if !opts.IgnoreCache && c.tokenValid(sess) {
		return sess.AccessToken, nil
	}

	if sess.RefreshToken == "" {
		return "", auth.ErrLoginRequired
	}

	tokens, err := c.idp.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	sess.AccessToken = tokens.AccessToken
	sess.TokenType = tokens.TokenType
	sess.AccessTokenExpiresAt = tokens.Expiry
	if tokens.RefreshToken != "" {
		sess.RefreshToken = tokens.RefreshToken
	}
	if tokens.IDToken != nil {
		sess.IDToken = tokens.IDToken
		sess.User = tokens.IDToken.User()
	}

	if err := c.store.Update(ctx, *sess); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", auth.ErrLoginRequired
		}
		return "", fmt.Errorf("update session: %w", err)
	}

	return sess.AccessToken, nil
}

// Logout removes the local session and returns where to send the browser:
// the provider logout URL, or "" for LocalOnly.
func (c *Client) Logout(ctx context.Context, sessionID string, opts LogoutOptions) (string, error) {
	if sessionID != "" {
		if err := c.store.Delete(ctx, sessionID); err != nil {
			return "", fmt.Errorf("delete session: %w", err)
		}
	}

	if opts.LocalOnly {
		return "", nil
	}
	return c.idp.LogoutURL(opts.ReturnTo), nil
}

func (c *Client) tokenValid(sess *session.Session) bool {
	if sess.AccessToken == "" {
		return false
	}
	if sess.AccessTokenExpiresAt.IsZero() {
		return true
	}
	return c.now().Add(tokenSkew).Before(sess.AccessTokenExpiresAt)
}

func (c *Client) load(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, auth.ErrLoginRequired
	}
	sess, err := c.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, auth.ErrLoginRequired
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Expired(c.now()) {
		return nil, auth.ErrLoginRequired
	}
	return sess, nil
}
