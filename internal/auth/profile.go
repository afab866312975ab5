package auth

import "time"

// User is the profile returned by the identity provider for the signed-in
// user. Claims are copied verbatim from the verified ID token; nothing here
// reads or validates individual fields.
type User map[string]any

// IDTokenClaims are the claims of a verified ID token.
type IDTokenClaims struct {
	Raw      string         `json:"raw"`
	Issuer   string         `json:"iss"`
	Subject  string         `json:"sub"`
	Audience []string       `json:"aud"`
	Expiry   time.Time      `json:"exp"`
	IssuedAt time.Time      `json:"iat"`
	Nonce    string         `json:"nonce,omitempty"`
	Claims   map[string]any `json:"claims"`
}

// User returns a copy of the claim set as a profile.
func (c *IDTokenClaims) User() User {
	if c == nil {
		return nil
	}
	u := make(User, len(c.Claims))
	for k, v := range c.Claims {
		u[k] = v
	}
	return u
}

// Tokens is the result of a code exchange or refresh grant.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time

	// IDToken is nil when the provider did not return an id_token
	// (common on refresh).
	IDToken *IDTokenClaims
}
