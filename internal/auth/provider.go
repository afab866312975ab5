package auth

import "context"

// AuthorizeParams carries everything the caller decides for one
// authorization request. State, PKCE and nonce values are generated by the
// caller and remembered until the callback.
type AuthorizeParams struct {
	State         string
	CodeChallenge string
	Nonce         string

	Audience   string
	Scopes     []string // overrides the provider defaults when set
	Prompt     string   // e.g. "login", "none"
	ScreenHint string   // e.g. "signup"
}

// IdentityProvider is the external OIDC client. Implementations talk to the
// identity provider and return verified facts only; they must not create or
// touch sessions.
type IdentityProvider interface {
	// Name returns the provider identifier, e.g. "auth0".
	Name() string

	// AuthCodeURL returns the authorization URL to redirect the browser to.
	AuthCodeURL(p AuthorizeParams) string

	// ExchangeCode trades an authorization code for tokens and verifies the
	// returned id_token.
	ExchangeCode(ctx context.Context, code string, codeVerifier string) (*Tokens, error)

	// Refresh obtains fresh tokens without user interaction.
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)

	// LogoutURL returns the provider URL that ends the provider-side session
	// and then sends the browser to returnTo.
	LogoutURL(returnTo string) string
}
