package oclient

import (
	"net/url"
	"regexp"
	"testing"

	"golang.org/x/oauth2"
)

// RFC 7636 appendix B.
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestGenerateCodeVerifier(t *testing.T) {
	unreserved := regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

	v1, v2 := GenerateCodeVerifier(), GenerateCodeVerifier()
	for _, v := range []string{v1, v2} {
		if !unreserved.MatchString(v) {
			t.Errorf("verifier %q is not 43-128 unreserved characters", v)
		}
	}
	if v1 == v2 {
		t.Errorf("verifiers repeat: %q", v1)
	}
}

func TestCodeChallenge(t *testing.T) {
	tests := []struct {
		name      string
		verifier  string
		challenge string
		want      bool
	}{
		{"rfc vector", rfcVerifier, rfcChallenge, true},
		{"tampered challenge", rfcVerifier, rfcChallenge + "x", false},
		{"other verifier", "test-verifier-123", rfcChallenge, false},
		{"empty challenge", rfcVerifier, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateCodeChallenge(tt.verifier, tt.challenge); got != tt.want {
				t.Errorf("ValidateCodeChallenge(%q, %q) = %v; want %v", tt.verifier, tt.challenge, got, tt.want)
			}
		})
	}
	if got := GenerateCodeChallenge(rfcVerifier); got != rfcChallenge {
		t.Errorf("GenerateCodeChallenge = %q; want %q", got, rfcChallenge)
	}
}

func TestChallengeOptions(t *testing.T) {
	cfg := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{AuthURL: "https://auth.example.com/authorization"}}
	raw := cfg.AuthCodeURL("state", challengeOptions(rfcVerifier)...)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	q := u.Query()
	if got := q.Get("code_challenge"); got != rfcChallenge {
		t.Errorf("code_challenge = %q; want %q", got, rfcChallenge)
	}
	if got := q.Get("code_challenge_method"); got != ChallengeMethod {
		t.Errorf("code_challenge_method = %q; want %q", got, ChallengeMethod)
	}
}
