// Package skytest runs an in-memory SKY provider for tests: the OAuth2
// authorization and token endpoints plus canned API pages.
package skytest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Seann-Moser/sky/oauth/oclient"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	APIKey       = "test-subscription-key"
)

// Request is a recorded API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type grant struct {
	challenge   string
	redirectURI string
}

type response struct {
	status int
	body   any
}

// Provider is a fake SKY provider served over httptest.
type Provider struct {
	Server *httptest.Server

	// ExpiresIn is the lifetime in seconds of issued access tokens.
	ExpiresIn int
	// RotateRefresh issues a new refresh token on every refresh.
	RotateRefresh bool
	// Deny makes the authorization endpoint redirect with access_denied.
	Deny bool

	mu            sync.Mutex
	codes         map[string]grant
	access        map[string]bool
	refresh       map[string]bool
	routes        map[string]response
	requests      []Request
	tokenRequests int
}

// New starts a provider and closes it when the test ends.
func New(t testing.TB) *Provider {
	p := &Provider{
		ExpiresIn: 3600,
		codes:     make(map[string]grant),
		access:    make(map[string]bool),
		refresh:   make(map[string]bool),
		routes:    make(map[string]response),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/authorization", p.authorize)
	mux.HandleFunc("/token", p.token)
	mux.HandleFunc("/api/", p.api)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// Endpoint returns the provider's OAuth2 endpoint.
func (p *Provider) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   p.Server.URL + "/authorization",
		TokenURL:  p.Server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// APIURL is the base URL API paths hang off.
func (p *Provider) APIURL() string {
	return p.Server.URL + "/api"
}

// Link returns the absolute URL of an endpoint, as used in next_link.
func (p *Provider) Link(reference, endpoint string) string {
	return p.APIURL() + "/" + reference + "/v1/" + endpoint
}

// Handle serves body as JSON with status 200 for every request to
// reference/endpoint. The endpoint may carry a query string, which must then
// match exactly.
func (p *Provider) Handle(reference, endpoint string, body any) {
	p.HandleStatus(reference, endpoint, http.StatusOK, body)
}

// HandleStatus is Handle with an explicit status. A nil body sends no body.
func (p *Provider) HandleStatus(reference, endpoint string, status int, body any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[routeKey("/api/"+reference+"/v1/"+endpoint)] = response{status: status, body: body}
}

// IssueToken mints a valid token as if a login had already happened.
func (p *Provider) IssueToken() *oclient.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	access, refresh := uuid.NewString(), uuid.NewString()
	p.access[access] = true
	p.refresh[refresh] = true
	return &oclient.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(time.Duration(p.ExpiresIn) * time.Second).Unix(),
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
	}
}

// Requests returns the recorded API calls.
func (p *Provider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// TokenRequests returns how many calls the token endpoint received.
func (p *Provider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// Browser returns an opener that follows the authorization URL the way a
// browser would, ending at the redirect listener.
func (p *Provider) Browser() func(string) error {
	return func(authURL string) error {
		go func() {
			resp, err := http.Get(authURL)
			if err == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
		}()
		return nil
	}
}

func (p *Provider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != ClientID || q.Get("response_type") != "code" {
		http.Error(w, "invalid client", http.StatusBadRequest)
		return
	}
	u, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || u.Host == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	s := u.Query()
	if p.Deny {
		s.Set("error", "access_denied")
		s.Set("error_description", "the user denied access")
	} else {
		if q.Get("code_challenge_method") != oclient.ChallengeMethod {
			http.Error(w, "pkce required", http.StatusBadRequest)
			return
		}
		code := uuid.NewString()
		p.mu.Lock()
		p.codes[code] = grant{challenge: q.Get("code_challenge"), redirectURI: u.String()}
		p.mu.Unlock()
		s.Set("code", code)
	}
	if state := q.Get("state"); state != "" {
		s.Set("state", state)
	}
	u.RawQuery = s.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenRequests++

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "POST required")
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok || id != ClientID || secret != ClientSecret {
		writeError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	refresh := r.PostForm.Get("refresh_token")
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		g, ok := p.codes[r.PostForm.Get("code")]
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_grant", "unknown code")
			return
		}
		delete(p.codes, r.PostForm.Get("code"))
		if !oclient.ValidateCodeChallenge(r.PostForm.Get("code_verifier"), g.challenge) {
			writeError(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match")
			return
		}
		refresh = uuid.NewString()
		p.refresh[refresh] = true
	case "refresh_token":
		if !p.refresh[refresh] {
			writeError(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
			return
		}
		if p.RotateRefresh {
			delete(p.refresh, refresh)
			refresh = uuid.NewString()
			p.refresh[refresh] = true
		} else {
			refresh = ""
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type", r.PostForm.Get("grant_type"))
		return
	}

	access := uuid.NewString()
	p.access[access] = true
	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   p.ExpiresIn,
		"user_id":      "1234",
		"email":        "registrar@example.edu",
		"mode":         "Full",
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	writeJSON(w, http.StatusOK, body)
}

func (p *Provider) api(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.requests = append(p.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	authorized := p.access[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	resp, found := p.routes[routeKey(r.URL.RequestURI())]
	p.mu.Unlock()

	if r.Header.Get("Bb-Api-Subscription-Key") != APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"statusCode": 401,
			"message":    "Access denied due to missing subscription key.",
		})
		return
	}
	if !authorized {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"statusCode": 401,
			"message":    "Unauthorized. Access token is missing or invalid.",
		})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"status": 404,
			"title":  "Not Found",
			"errors": []any{map[string]any{"message": "no route for " + r.URL.Path}},
		})
		return
	}
	if resp.body == nil {
		w.WriteHeader(resp.status)
		return
	}
	writeJSON(w, resp.status, resp.body)
}

// routeKey normalizes a request URI so query order does not matter.
func routeKey(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	if u.RawQuery == "" {
		return u.Path
	}
	return u.Path + "?" + u.Query().Encode()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": description})
}
