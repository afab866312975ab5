package client

import (
	"crypto/sha256"
	"encoding/base64"

	"auth-shell/internal/utils"
)

// generatePKCE returns an RFC 7636 verifier and its S256 challenge.
func generatePKCE() (verifier string, challenge string) {
	verifier = utils.RandomString(32)

	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])

	return verifier, challenge
}
