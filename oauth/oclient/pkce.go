package oclient

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// ChallengeMethod is the only PKCE method the flow uses.
const ChallengeMethod = "S256"

// GenerateCodeVerifier returns a fresh RFC 7636 code verifier.
func GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// GenerateCodeChallenge returns the S256 challenge for verifier.
func GenerateCodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidateCodeChallenge reports whether verifier hashes to challenge.
func ValidateCodeChallenge(verifier, challenge string) bool {
	return subtle.ConstantTimeCompare([]byte(GenerateCodeChallenge(verifier)), []byte(challenge)) == 1
}

func challengeOptions(verifier string) []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
}
