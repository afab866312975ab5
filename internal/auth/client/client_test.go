package client

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"auth-shell/internal/auth"
	"auth-shell/internal/auth/authtest"
	"auth-shell/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *authtest.Provider, *session.RedisStore) {
	t.Helper()
	idp := authtest.NewProvider()
	store, _ := authtest.NewRedisStore(t)
	return New(idp, store, Options{SessionTTL: time.Hour}), idp, store
}

// signIn runs a full login + callback and returns the new session.
func signIn(t *testing.T, c *Client) *session.Session {
	t.Helper()
	ctx := context.Background()

	login, err := c.LoginWithRedirect(ctx, LoginOptions{})
	require.NoError(t, err)

	res, err := c.HandleRedirectCallback(ctx, url.Values{
		"code":  {authtest.GoodCode},
		"state": {login.Flow.State},
	}, login.Flow)
	require.NoError(t, err)
	return res.Session
}

func TestGeneratePKCE(t *testing.T) {
	verifier, challenge := generatePKCE()
	require.NotEmpty(t, verifier)

	hash := sha256.Sum256([]byte(verifier))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), challenge)
}

func TestLoginWithRedirect(t *testing.T) {
	c, idp, _ := newTestClient(t)

	login, err := c.LoginWithRedirect(context.Background(), LoginOptions{
		ReturnTo: "/dashboard",
		Prompt:   "login",
	})
	require.NoError(t, err)

	u, err := url.Parse(login.URL)
	require.NoError(t, err)
	require.Equal(t, login.Flow.State, u.Query().Get("state"))
	require.Equal(t, "login", u.Query().Get("prompt"))

	require.Equal(t, "/dashboard", login.Flow.ReturnTo)
	require.NotEmpty(t, login.Flow.Nonce)
	require.NotEmpty(t, login.Flow.CodeVerifier)

	last := idp.LastAuthorize()
	require.Equal(t, login.Flow.Nonce, last.Nonce)
	require.NotEqual(t, login.Flow.CodeVerifier, last.CodeChallenge, "only the challenge leaves the server")
}

func TestHandleRedirectCallback(t *testing.T) {
	c, idp, store := newTestClient(t)
	ctx := context.Background()

	login, err := c.LoginWithRedirect(ctx, LoginOptions{ReturnTo: "/after"})
	require.NoError(t, err)

	res, err := c.HandleRedirectCallback(ctx, url.Values{
		"code":  {authtest.GoodCode},
		"state": {login.Flow.State},
	}, login.Flow)
	require.NoError(t, err)

	require.Equal(t, "/after", res.ReturnTo)
	require.Equal(t, 1, idp.Exchanges())
	require.Equal(t, "Test User", res.Session.User["name"])
	require.WithinDuration(t, time.Now().Add(time.Hour), res.Session.ExpiresAt, time.Minute)

	stored, err := store.Get(ctx, res.Session.SessionID)
	require.NoError(t, err)
	require.Equal(t, res.Session.AccessToken, stored.AccessToken)
}

func TestHandleRedirectCallbackErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("state mismatch", func(t *testing.T) {
		c, idp, _ := newTestClient(t)
		login, err := c.LoginWithRedirect(ctx, LoginOptions{})
		require.NoError(t, err)

		_, err = c.HandleRedirectCallback(ctx, url.Values{
			"code":  {authtest.GoodCode},
			"state": {"forged"},
		}, login.Flow)
		require.ErrorIs(t, err, auth.ErrInvalidState)
		require.Zero(t, idp.Exchanges())
	})

	t.Run("no transaction", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		_, err := c.HandleRedirectCallback(ctx, url.Values{
			"code":  {authtest.GoodCode},
			"state": {""},
		}, session.Flow{})
		require.ErrorIs(t, err, auth.ErrInvalidState)
	})

	t.Run("provider error", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		login, err := c.LoginWithRedirect(ctx, LoginOptions{})
		require.NoError(t, err)

		_, err = c.HandleRedirectCallback(ctx, url.Values{
			"error":             {"access_denied"},
			"error_description": {"User denied access"},
			"state":             {login.Flow.State},
		}, login.Flow)

		var cbErr *auth.CallbackError
		require.ErrorAs(t, err, &cbErr)
		require.Equal(t, "access_denied", cbErr.Code)
		require.Contains(t, err.Error(), "User denied access")
	})

	t.Run("missing code", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		login, err := c.LoginWithRedirect(ctx, LoginOptions{})
		require.NoError(t, err)

		_, err = c.HandleRedirectCallback(ctx, url.Values{
			"state": {login.Flow.State},
		}, login.Flow)
		require.ErrorIs(t, err, auth.ErrMissingCode)
	})

	t.Run("exchange failure", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		login, err := c.LoginWithRedirect(ctx, LoginOptions{})
		require.NoError(t, err)

		_, err = c.HandleRedirectCallback(ctx, url.Values{
			"code":  {"stale-code"},
			"state": {login.Flow.State},
		}, login.Flow)
		require.ErrorIs(t, err, authtest.ErrInvalidGrant)
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		c, idp, _ := newTestClient(t)
		idp.NonceOverride = "replayed"
		login, err := c.LoginWithRedirect(ctx, LoginOptions{})
		require.NoError(t, err)

		_, err = c.HandleRedirectCallback(ctx, url.Values{
			"code":  {authtest.GoodCode},
			"state": {login.Flow.State},
		}, login.Flow)
		require.ErrorIs(t, err, auth.ErrNonceMismatch)
	})
}

func TestIsAuthenticatedAndGetUser(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.IsAuthenticated(ctx, "")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.IsAuthenticated(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	user, err := c.GetUser(ctx, "unknown")
	require.NoError(t, err)
	require.Nil(t, user)

	sess := signIn(t, c)

	ok, err = c.IsAuthenticated(ctx, sess.SessionID)
	require.NoError(t, err)
	require.True(t, ok)

	user, err = c.GetUser(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, authtest.Subject, user["sub"])
}

func TestGetIDTokenClaims(t *testing.T) {
	c, _, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetIDTokenClaims(ctx, "unknown")
	require.ErrorIs(t, err, auth.ErrLoginRequired)

	sess := signIn(t, c)
	claims, err := c.GetIDTokenClaims(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, authtest.Subject, claims.Subject)
	require.Equal(t, "header.payload.signature", claims.Raw)
}

func TestGetTokenSilently(t *testing.T) {
	ctx := context.Background()

	t.Run("cached token", func(t *testing.T) {
		c, idp, _ := newTestClient(t)
		sess := signIn(t, c)

		tok, err := c.GetTokenSilently(ctx, sess.SessionID, TokenOptions{})
		require.NoError(t, err)
		assert.Equal(t, sess.AccessToken, tok)
		assert.Zero(t, idp.Refreshes())
	})

	t.Run("ignore cache refreshes", func(t *testing.T) {
		c, idp, store := newTestClient(t)
		sess := signIn(t, c)

		tok, err := c.GetTokenSilently(ctx, sess.SessionID, TokenOptions{IgnoreCache: true})
		require.NoError(t, err)
		assert.NotEqual(t, sess.AccessToken, tok)
		assert.Equal(t, 1, idp.Refreshes())

		stored, err := store.Get(ctx, sess.SessionID)
		require.NoError(t, err)
		assert.Equal(t, tok, stored.AccessToken)
		assert.Equal(t, sess.RefreshToken, stored.RefreshToken, "refresh token kept when not rotated")
		assert.Equal(t, sess.User, stored.User)
	})

	t.Run("expired token refreshes", func(t *testing.T) {
		idp := authtest.NewProvider()
		idp.AccessTTL = 10 * time.Second // inside the renewal skew
		store, _ := authtest.NewRedisStore(t)
		c := New(idp, store, Options{SessionTTL: time.Hour})
		sess := signIn(t, c)

		_, err := c.GetTokenSilently(ctx, sess.SessionID, TokenOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, idp.Refreshes())
	})

	t.Run("no refresh token requires login", func(t *testing.T) {
		idp := authtest.NewProvider()
		idp.OmitRefreshToken = true
		store, _ := authtest.NewRedisStore(t)
		c := New(idp, store, Options{SessionTTL: time.Hour})
		sess := signIn(t, c)

		_, err := c.GetTokenSilently(ctx, sess.SessionID, TokenOptions{IgnoreCache: true})
		require.ErrorIs(t, err, auth.ErrLoginRequired)
	})

	t.Run("unknown session requires login", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		_, err := c.GetTokenSilently(ctx, "unknown", TokenOptions{})
		require.ErrorIs(t, err, auth.ErrLoginRequired)
	})

	t.Run("expired session requires login", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		sess := signIn(t, c)
		c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		_, err := c.GetTokenSilently(ctx, sess.SessionID, TokenOptions{})
		require.ErrorIs(t, err, auth.ErrLoginRequired)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("provider logout", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		sess := signIn(t, c)

		logoutURL, err := c.Logout(ctx, sess.SessionID, LogoutOptions{ReturnTo: "https://app.example.com/"})
		require.NoError(t, err)
		require.Contains(t, logoutURL, "/v2/logout")
		require.Contains(t, logoutURL, url.QueryEscape("https://app.example.com/"))

		ok, err := c.IsAuthenticated(ctx, sess.SessionID)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("local only", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		sess := signIn(t, c)

		logoutURL, err := c.Logout(ctx, sess.SessionID, LogoutOptions{LocalOnly: true})
		require.NoError(t, err)
		require.Empty(t, logoutURL)
	})

	t.Run("without session", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		logoutURL, err := c.Logout(ctx, "", LogoutOptions{})
		require.NoError(t, err)
		require.NotEmpty(t, logoutURL)
	})
}
