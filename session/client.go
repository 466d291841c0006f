package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Session binds an OAuth2 token to outgoing SKY calls. Expired access tokens
// are refreshed transparently on the next request.
type Session struct {
	config  *oauth2.Config
	ctx     context.Context
	base    *http.Client
	source  *trackingSource
	client  *http.Client
	limiter *rate.Limiter
	apiKey  string
	logger  *slog.Logger
}

// New creates a session for tok. The context only carries values for token
// refreshes; its cancellation does not end the session.
func New(ctx context.Context, config *oauth2.Config, tok *oauth2.Token, opts Options) *Session {
	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		config: config,
		ctx:    context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, base),
		base:   base,
		apiKey: opts.APIKey,
		logger: logger,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	s.reset(tok)
	return s
}

func (s *Session) reset(tok *oauth2.Token) {
	s.source = &trackingSource{
		src:  s.config.TokenSource(s.ctx, tok),
		last: tok,
	}
	s.client = &http.Client{
		Transport: &oauth2.Transport{
			Source: s.source,
			Base:   s.base.Transport,
		},
		Timeout:       s.base.Timeout,
		CheckRedirect: s.base.CheckRedirect,
		Jar:           s.base.Jar,
	}
}

// Refresh forces a refresh-token grant now, whatever the access token's
// expiry. If the provider does not return a new refresh token the old one is
// kept.
func (s *Session) Refresh(ctx context.Context) error {
	cur := s.source.current()
	if cur == nil || cur.RefreshToken == "" {
		return fmt.Errorf("failed to refresh token: no refresh token")
	}
	expired := *cur
	expired.Expiry = time.Now().Add(-time.Minute)

	rctx := context.WithValue(ctx, oauth2.HTTPClient, s.base)
	tok, err := s.config.TokenSource(rctx, &expired).Token()
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cur.RefreshToken
	}
	s.logger.Debug("sky token refreshed", "expiry", tok.Expiry)
	s.reset(tok)
	return nil
}

// Token returns the token most recently used by the session. It never
// contacts the provider.
func (s *Session) Token() *oauth2.Token {
	return s.source.current()
}

// Do sends req with the bearer token and subscription key attached, waiting
// on the rate limiter first.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if s.apiKey != "" {
		req.Header.Set(APIKeyHeader, s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("sky request", "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode)
	return resp, nil
}
