package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"auth-shell/internal/auth"
	"auth-shell/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const providerName = "auth0"

type Config struct {
	// Domain is the tenant domain without scheme, e.g. "tenant.eu.auth0.com".
	Domain string
	// IssuerURL overrides the issuer derived from Domain.
	IssuerURL string

	ClientID     string
	ClientSecret string
	RedirectURL  string
	Audience     string
	Scopes       []string
}

func (c Config) issuer() string {
	if c.IssuerURL != "" {
		return c.IssuerURL
	}
	return "https://" + strings.TrimSuffix(c.Domain, "/") + "/"
}

// Provider implements auth.IdentityProvider against an Auth0 tenant (or any
// OIDC issuer exposing the same logout endpoint).
type Provider struct {
	issuer      string
	clientID    string
	audience    string
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// New runs OIDC discovery against the issuer and builds the client.
// Discovery is a network call; ctx bounds it.
func New(ctx context.Context, cfg Config) (*Provider, error) {

	if (cfg.Domain == "" && cfg.IssuerURL == "") || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, errors.New("auth0 config missing required fields")
	}

	issuer := cfg.issuer()

	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth0 oidc provider: %w", err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes:       scopes,
	}

	logger.Info("auth0 oidc discovery complete", map[string]any{
		"issuer": issuer,
		"scopes": strings.Join(scopes, " "),
	})

	return &Provider{
		issuer:      issuer,
		clientID:    cfg.ClientID,
		audience:    cfg.Audience,
		oauthConfig: oauthCfg,
		verifier:    verifier,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the authorization URL with PKCE and nonce parameters.
func (p *Provider) AuthCodeURL(params auth.AuthorizeParams) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", params.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if params.Nonce != "" {
		opts = append(opts, oidc.Nonce(params.Nonce))
	}

	audience := p.audience
	if params.Audience != "" {
		audience = params.Audience
	}
	if audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", audience))
	}
	if params.Prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", params.Prompt))
	}
	if params.ScreenHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("screen_hint", params.ScreenHint))
	}

	cfg := p.oauthConfig
	if len(params.Scopes) > 0 {
		c := *p.oauthConfig
		c.Scopes = params.Scopes
		cfg = &c
	}

	return cfg.AuthCodeURL(params.State, opts...)
}

// ExchangeCode exchanges the authorization code and verifies the id_token.
// It never creates sessions.
func (p *Provider) ExchangeCode(
	ctx context.Context,
	code string,
	codeVerifier string,
) (*auth.Tokens, error) {

	token, err := p.oauthConfig.Exchange(
		ctx,
		code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0 token exchange failed: %w", err)
	}

	tokens, err := p.convert(ctx, token)
	if err != nil {
		return nil, err
	}
	if tokens.IDToken == nil {
		return nil, auth.ErrMissingIDToken
	}
	return tokens, nil
}

// Refresh runs the refresh_token grant. Auth0 only returns an id_token here
// when openid was part of the original scope.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*auth.Tokens, error) {
	if refreshToken == "" {
		return nil, auth.ErrLoginRequired
	}

	src := p.oauthConfig.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})

	token, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %s", auth.ErrLoginRequired, re.ErrorDescription)
		}
		return nil, fmt.Errorf("auth0 refresh failed: %w", err)
	}

	tokens, err := p.convert(ctx, token)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken == "" {
		// no rotation: keep using the one we have
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

// LogoutURL returns the tenant's /v2/logout URL.
func (p *Provider) LogoutURL(returnTo string) string {
	params := url.Values{}
	params.Set("client_id", p.clientID)
	if returnTo != "" {
		params.Set("returnTo", returnTo)
	}
	return strings.TrimSuffix(p.issuer, "/") + "/v2/logout?" + params.Encode()
}

func (p *Provider) convert(ctx context.Context, token *oauth2.Token) (*auth.Tokens, error) {
	tokens := &auth.Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry,
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return tokens, nil
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Error("auth0 id_token verification failed", map[string]any{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("auth0 id_token verification failed: %w", err)
	}

	claims := map[string]any{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("auth0 id_token claims parse failed: %w", err)
	}

	logger.Debug("auth0 oidc verified", map[string]any{
		"issuer":          idToken.Issuer,
		"subject_present": idToken.Subject != "",
		"audience":        idToken.Audience,
		"expiry_unix":     idToken.Expiry.Unix(),
	})

	tokens.IDToken = &auth.IDTokenClaims{
		Raw:      rawIDToken,
		Issuer:   idToken.Issuer,
		Subject:  idToken.Subject,
		Audience: idToken.Audience,
		Expiry:   idToken.Expiry,
		IssuedAt: idToken.IssuedAt,
		Nonce:    idToken.Nonce,
		Claims:   claims,
	}
	return tokens, nil
}
