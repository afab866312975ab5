// Package authtest provides an in-memory identity provider and a
// miniredis-backed session store for tests.
package authtest

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"auth-shell/internal/auth"
	"auth-shell/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	GoodCode = "good-code"
	Subject  = "auth0|test-user"
)

var ErrInvalidGrant = errors.New("invalid_grant")

// Provider is a fake auth.IdentityProvider. It checks the PKCE verifier
// against the last challenge it handed out and echoes the last nonce in
// the ID token, like a real provider would.
type Provider struct {
	mu sync.Mutex

	// AccessTTL is the lifetime of issued access tokens.
	AccessTTL time.Duration
	// OmitRefreshToken drops refresh tokens from code exchanges.
	OmitRefreshToken bool
	// NonceOverride replaces the echoed nonce when set.
	NonceOverride string

	last      auth.AuthorizeParams
	exchanges int
	refreshes int
	issued    int
}

func NewProvider() *Provider {
	return &Provider{AccessTTL: time.Hour}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) AuthCodeURL(params auth.AuthorizeParams) string {
	p.mu.Lock()
	p.last = params
	p.mu.Unlock()

	q := url.Values{}
	q.Set("state", params.State)
	q.Set("code_challenge", params.CodeChallenge)
	q.Set("nonce", params.Nonce)
	if params.Prompt != "" {
		q.Set("prompt", params.Prompt)
	}
	return "https://idp.example.com/authorize?" + q.Encode()
}

func (p *Provider) ExchangeCode(_ context.Context, code string, codeVerifier string) (*auth.Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.exchanges++

	if code != GoodCode {
		return nil, ErrInvalidGrant
	}
	sum := sha256.Sum256([]byte(codeVerifier))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != p.last.CodeChallenge {
		return nil, errors.New("pkce verification failed")
	}

	nonce := p.last.Nonce
	if p.NonceOverride != "" {
		nonce = p.NonceOverride
	}

	tokens := p.tokensLocked(nonce)
	if p.OmitRefreshToken {
		tokens.RefreshToken = ""
	}
	return tokens, nil
}

func (p *Provider) Refresh(_ context.Context, refreshToken string) (*auth.Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if refreshToken == "" || refreshToken == "revoked" {
		return nil, auth.ErrLoginRequired
	}
	p.refreshes++

	tokens := p.tokensLocked("")
	tokens.IDToken = nil
	tokens.RefreshToken = ""
	return tokens, nil
}

func (p *Provider) LogoutURL(returnTo string) string {
	return "https://idp.example.com/v2/logout?" + url.Values{"returnTo": {returnTo}}.Encode()
}

// LastAuthorize returns the parameters of the last AuthCodeURL call.
func (p *Provider) LastAuthorize() auth.AuthorizeParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Provider) Exchanges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchanges
}

func (p *Provider) Refreshes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}

func (p *Provider) tokensLocked(nonce string) *auth.Tokens {
	p.issued++
	now := time.Now()

	return &auth.Tokens{
		AccessToken:  fmt.Sprintf("access-%d", p.issued),
		RefreshToken: "refresh-token",
		TokenType:    "Bearer",
		Expiry:       now.Add(p.AccessTTL),
		IDToken: &auth.IDTokenClaims{
			Raw:      "header.payload.signature",
			Issuer:   "https://idp.example.com/",
			Subject:  Subject,
			Audience: []string{"client-123"},
			Expiry:   now.Add(time.Hour),
			IssuedAt: now,
			Nonce:    nonce,
			Claims: map[string]any{
				"sub":   Subject,
				"name":  "Test User",
				"email": "test@example.com",
			},
		},
	}
}

// NewRedisStore returns a session store backed by a fresh miniredis.
func NewRedisStore(t testing.TB) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return session.NewRedisStore(client), mr
}
