package oclient

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Credentials identify the registered SKY application.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// Token is the persisted form of an OAuth2 token. The client identity is
// stamped on it so a cached token can be refreshed without the credentials
// file.
//
// Extra holds only the provider fields named in extraFields (user_id,
// email, environment and legal entity details, mode). golang.org/x/oauth2
// exposes response fields by name only, so any other field of the token
// response is not kept.
type Token struct {
	AccessToken  string            `json:"access_token" bson:"access_token"`
	TokenType    string            `json:"token_type,omitempty" bson:"token_type,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty" bson:"refresh_token,omitempty"`
	ExpiresAt    int64             `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	ClientID     string            `json:"client_id" bson:"client_id"`
	ClientSecret string            `json:"client_secret" bson:"client_secret"`
	Extra        map[string]string `json:"extra,omitempty" bson:"extra,omitempty"`
}

// extraFields are the non-standard fields SKY returns with a token. New
// provider fields have to be added here to survive persistence.
var extraFields = []string{
	"user_id",
	"email",
	"family_name",
	"given_name",
	"environment_id",
	"environment_name",
	"legal_entity_id",
	"legal_entity_name",
	"mode",
}

// FromOAuth2 converts a token returned by golang.org/x/oauth2.
func FromOAuth2(tok *oauth2.Token) *Token {
	if tok == nil {
		return nil
	}
	t := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		t.ExpiresAt = tok.Expiry.Unix()
	}
	for _, k := range extraFields {
		v := tok.Extra(k)
		if v == nil {
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]string)
		}
		switch x := v.(type) {
		case string:
			t.Extra[k] = x
		case float64:
			t.Extra[k] = fmt.Sprintf("%.0f", x)
		default:
			t.Extra[k] = fmt.Sprint(x)
		}
	}
	return t
}

// OAuth2 converts t for use with golang.org/x/oauth2.
func (t *Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
	if len(t.Extra) > 0 {
		extra := make(map[string]interface{}, len(t.Extra))
		for k, v := range t.Extra {
			extra[k] = v
		}
		tok = tok.WithExtra(extra)
	}
	return tok
}

// Expiry returns the expiry as a time. A zero ExpiresAt means the token
// carries no expiry.
func (t *Token) Expiry() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(t.ExpiresAt, 0)
}

// WithClient returns a copy of t stamped with the client identity.
func (t *Token) WithClient(clientID, clientSecret string) *Token {
	out := *t
	out.ClientID = clientID
	out.ClientSecret = clientSecret
	return &out
}

// Same reports whether t and o carry the same grant and client identity.
// Extra fields are ignored.
func (t *Token) Same(o *Token) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.AccessToken == o.AccessToken &&
		t.RefreshToken == o.RefreshToken &&
		t.ExpiresAt == o.ExpiresAt &&
		t.ClientID == o.ClientID &&
		t.ClientSecret == o.ClientSecret
}
