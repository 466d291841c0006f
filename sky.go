// Package sky is a client for the Blackbaud SKY API. It logs in with the
// OAuth2 authorization-code flow, caches the token, and turns paginated
// collections into tables.
//
//	client, err := sky.New(sky.WithAPIKey(key))
//	res, err := client.Get(ctx, "levels")
//	levels := res.Rows()
//
// A Client is meant for one goroutine at a time. The login and token
// persistence are serialized, but calls are issued one after another.
package sky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Seann-Moser/sky/oauth/oclient"
	"github.com/Seann-Moser/sky/session"
	"github.com/Seann-Moser/sky/table"
	"github.com/Seann-Moser/sky/utils"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

// Client calls the SKY API on behalf of one user.
type Client struct {
	cfg        Config
	store      oclient.TokenStore
	creds      *oclient.Credentials
	browser    func(string) error
	browserSet bool
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	session *session.Session
	token   *oclient.Token
}

// New builds a client from the environment and opts. Nothing is contacted
// until the first call.
func New(opts ...Option) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = oclient.NewFileTokenStore(c.cfg.TokenPath, oclient.WithPassphrase(c.cfg.TokenPassphrase))
	}
	if !c.browserSet {
		c.browser = browser.OpenURL
		if c.cfg.NoBrowser {
			c.browser = nil
		}
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.cfg.APIURL == "" {
		c.cfg.APIURL = DefaultAPIURL
	}
	if c.cfg.APIKey == "" {
		c.logger.Warn("no sky api key configured; set BB_API_KEY or use WithAPIKey")
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) endpoint() oauth2.Endpoint {
	ep := oclient.Endpoint
	if c.cfg.AuthURL != "" {
		ep.AuthURL = c.cfg.AuthURL
	}
	if c.cfg.TokenURL != "" {
		ep.TokenURL = c.cfg.TokenURL
	}
	return ep
}

// Authorize makes sure the client holds a live session: it loads the cached
// token, or runs the browser login when there is none, then refreshes the
// access token once. A cached token whose refresh token the provider
// rejects is replaced by a new login. Later calls return immediately.
func (c *Client) Authorize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return nil
	}

	tok, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	cached := tok != nil && tok.ClientID != "" && tok.RefreshToken != ""
	if !cached {
		if tok, err = c.login(ctx); err != nil {
			return err
		}
	}
	err = c.startSession(ctx, tok)
	if cached && revoked(err) {
		c.logger.Warn("cached sky token was rejected; logging in again", "err", err)
		if tok, err = c.login(ctx); err != nil {
			return err
		}
		return c.startSession(ctx, tok)
	}
	return err
}

// revoked reports whether the provider refused the refresh token itself.
func revoked(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re) && re.ErrorCode == "invalid_grant"
}

// Login always runs the browser login, replacing any cached token and
// session.
func (c *Client) Login(ctx context.Context) (*oclient.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.startSession(ctx, tok); err != nil {
		return nil, err
	}
	return c.token, nil
}

func (c *Client) login(ctx context.Context) (*oclient.Token, error) {
	creds, err := c.credentials()
	if err != nil {
		return nil, err
	}
	app, err := oclient.NewApp(creds,
		oclient.WithEndpoint(c.endpoint()),
		oclient.WithBrowser(c.browser),
		oclient.WithCallbackTimeout(c.cfg.CallbackTimeout),
		oclient.WithQRCode(c.cfg.QRCodePath),
		oclient.WithHTTPClient(c.httpClient),
		oclient.WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}
	tok, err := app.RunLocalServer(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return tok, nil
}

// credentials prefers explicitly supplied credentials and falls back to the
// credentials file when they are missing or incomplete.
func (c *Client) credentials() (oclient.Credentials, error) {
	if c.creds != nil {
		err := c.creds.Validate()
		if err == nil {
			return *c.creds, nil
		}
		c.logger.Warn("supplied credentials are incomplete; using credentials file", "err", err, "file", c.cfg.CredentialsFile)
	}
	return oclient.LoadCredentialsFile(c.cfg.CredentialsFile)
}

func (c *Client) startSession(ctx context.Context, tok *oclient.Token) error {
	config := &oauth2.Config{
		ClientID:     tok.ClientID,
		ClientSecret: tok.ClientSecret,
		Endpoint:     c.endpoint(),
	}
	sess := session.New(ctx, config, tok.OAuth2(), session.Options{
		APIKey:     c.cfg.APIKey,
		RateLimit:  c.cfg.RateLimit,
		HTTPClient: c.httpClient,
		Logger:     c.logger,
	})
	if err := sess.Refresh(ctx); err != nil {
		return err
	}
	c.session = sess
	c.token = tok
	return c.syncTokenLocked(ctx)
}

// Token returns a copy of the token the client currently holds, or nil
// before authorization.
func (c *Client) Token() *oclient.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return nil
	}
	tok := *c.token
	return &tok
}

func (c *Client) syncToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncTokenLocked(ctx)
}

// syncTokenLocked re-stamps the client identity on the session's token and
// persists it when the grant changed.
func (c *Client) syncTokenLocked(ctx context.Context) error {
	cur := oclient.FromOAuth2(c.session.Token()).WithClient(c.token.ClientID, c.token.ClientSecret)
	for k, v := range c.token.Extra {
		if cur.Extra == nil {
			cur.Extra = make(map[string]string)
		}
		if _, ok := cur.Extra[k]; !ok {
			cur.Extra[k] = v
		}
	}
	if cur.Same(c.token) {
		return nil
	}
	if err := c.store.Save(ctx, cur); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	c.token = cur
	return nil
}

func (c *Client) do(ctx context.Context, method, reference, endpoint string, r *request) (*http.Response, error) {
	u, err := utils.JoinURL(c.cfg.APIURL, reference, endpoint, r.query)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if method == http.MethodPost || method == http.MethodPatch || r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	if err := c.syncToken(ctx); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// Get reads endpoint and follows next_link until the collection is
// exhausted. Collections come back as a ResultTable holding every page;
// a single resource comes back as a ResultRecord, or ResultProviderError
// when the payload is an error. WithRawData returns the first page as is.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Result, error) {
	if err := c.Authorize(ctx); err != nil {
		return nil, err
	}
	r := newRequest(opts)
	rows := table.New()
	for {
		page, err := c.getPage(ctx, r, endpoint)
		if err != nil {
			return nil, err
		}
		if r.raw {
			return &Result{Kind: ResultRaw, Raw: page.Raw}, nil
		}
		if !page.HasValue {
			return c.single(endpoint, page), nil
		}
		rows.Append(page.Rows()...)
		if page.NextLink == "" {
			return &Result{Kind: ResultTable, Table: rows}, nil
		}
		if endpoint, err = utils.EndpointFromNextLink(page.NextLink); err != nil {
			return nil, err
		}
	}
}

func (c *Client) getPage(ctx context.Context, r *request, endpoint string) (*Page, error) {
	resp, err := c.do(ctx, http.MethodGet, r.reference, endpoint, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return decodePage(resp.StatusCode, b)
}

func (c *Client) single(endpoint string, page *Page) *Result {
	if len(page.Raw) == 0 {
		return &Result{Kind: ResultEmpty}
	}
	if perr := checkProviderError(page.Status, page.Raw); perr != nil {
		c.logger.Warn("invalid sky request", "endpoint", endpoint, "err", perr)
		return &Result{Kind: ResultProviderError, Raw: page.Raw, Err: perr}
	}
	t := table.New()
	t.Append(table.Normalize(page.Raw))
	return &Result{Kind: ResultRecord, Table: t, Raw: page.Raw}
}

// Post sends body to endpoint and returns the raw response. The caller
// closes its body.
func (c *Client) Post(ctx context.Context, endpoint string, opts ...RequestOption) (*http.Response, error) {
	return c.mutate(ctx, http.MethodPost, endpoint, opts)
}

// Patch sends body to endpoint and returns the raw response. The caller
// closes its body.
func (c *Client) Patch(ctx context.Context, endpoint string, opts ...RequestOption) (*http.Response, error) {
	return c.mutate(ctx, http.MethodPatch, endpoint, opts)
}

// Delete calls endpoint with DELETE and returns the raw response. The
// caller closes its body.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (*http.Response, error) {
	return c.mutate(ctx, http.MethodDelete, endpoint, opts)
}

func (c *Client) mutate(ctx context.Context, method, endpoint string, opts []RequestOption) (*http.Response, error) {
	if err := c.Authorize(ctx); err != nil {
		return nil, err
	}
	r := newRequest(opts)
	return c.do(ctx, method, r.reference, endpoint, r)
}
