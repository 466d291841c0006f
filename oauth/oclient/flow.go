package oclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Seann-Moser/sky/utils"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

const (
	// AuthorizationURL is the SKY OAuth2 authorization endpoint.
	AuthorizationURL = "https://oauth2.sky.blackbaud.com/authorization"
	// TokenURL is the SKY OAuth2 token endpoint.
	TokenURL = "https://oauth2.sky.blackbaud.com/token"
)

// Endpoint is the SKY OAuth2 endpoint. The client secret is sent with HTTP
// basic auth.
var Endpoint = oauth2.Endpoint{
	AuthURL:   AuthorizationURL,
	TokenURL:  TokenURL,
	AuthStyle: oauth2.AuthStyleInHeader,
}

// App runs the authorization-code flow for one set of credentials. Each App
// issues a single state and PKCE verifier, so it is good for one login.
type App struct {
	creds           Credentials
	config          *oauth2.Config
	addr            string
	state           string
	verifier        string
	openBrowser     func(string) error
	callbackTimeout time.Duration
	qrPath          string
	httpClient      *http.Client
	logger          *slog.Logger
}

// AppOption configures an App.
type AppOption func(*App)

// WithEndpoint overrides the SKY OAuth2 endpoint. The auth style is forced
// to basic auth.
func WithEndpoint(ep oauth2.Endpoint) AppOption {
	return func(a *App) {
		ep.AuthStyle = oauth2.AuthStyleInHeader
		a.config.Endpoint = ep
	}
}

// WithBrowser replaces the function used to open the authorization URL. A
// nil func only logs the URL.
func WithBrowser(open func(url string) error) AppOption {
	return func(a *App) {
		a.openBrowser = open
	}
}

// WithCallbackTimeout bounds the wait for the redirect. Zero waits until the
// context is done.
func WithCallbackTimeout(d time.Duration) AppOption {
	return func(a *App) {
		a.callbackTimeout = d
	}
}

// WithQRCode writes the authorization URL as a PNG QR code to path.
func WithQRCode(path string) AppOption {
	return func(a *App) {
		a.qrPath = path
	}
}

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(c *http.Client) AppOption {
	return func(a *App) {
		a.httpClient = c
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewApp validates creds and prepares a flow. The loopback address comes
// from the redirect URI.
func NewApp(creds Credentials, opts ...AppOption) (*App, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	addr, err := utils.ListenAddr(creds.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	a := &App{
		creds: creds,
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Endpoint:     Endpoint,
		},
		addr:        addr,
		state:       uuid.NewString(),
		verifier:    GenerateCodeVerifier(),
		openBrowser: browser.OpenURL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Addr returns the host:port the redirect listener binds to.
func (a *App) Addr() string {
	return a.addr
}

// State returns the state parameter the redirect must carry back.
func (a *App) State() string {
	return a.state
}

// AuthorizationURL returns the URL the user must visit to grant access.
func (a *App) AuthorizationURL() string {
	return a.config.AuthCodeURL(a.state, challengeOptions(a.verifier)...)
}

// RunLocalServer binds the redirect listener, sends the user to the
// authorization URL and exchanges the code carried by the first request the
// listener receives. It blocks until that request arrives.
func (a *App) RunLocalServer(ctx context.Context) (*Token, error) {
	cb, err := listenCallback(a.addr, a.logger)
	if err != nil {
		return nil, err
	}

	authURL := a.AuthorizationURL()
	a.logger.Info("visit the authorization url to continue", "url", authURL, "listen", a.addr)
	if a.qrPath != "" {
		if err := a.writeQRCode(authURL); err != nil {
			a.logger.Warn("failed to write qr code", "path", a.qrPath, "err", err)
		}
	}
	if a.openBrowser != nil {
		if err := a.openBrowser(authURL); err != nil {
			a.logger.Warn("failed to open browser", "err", err)
		}
	}

	redirect, err := cb.wait(ctx, a.callbackTimeout)
	if err != nil {
		return nil, err
	}
	return a.Exchange(ctx, redirect)
}

func (a *App) writeQRCode(authURL string) error {
	opts, err := DefaultQRImageOptions()
	if err != nil {
		return err
	}
	return WriteQRCode(authURL, a.qrPath, opts...)
}

// Exchange trades the code in a captured redirect URI for a token and stamps
// the client identity on it. The URI is upgraded to https first.
func (a *App) Exchange(ctx context.Context, redirect string) (*Token, error) {
	u, err := url.Parse(utils.SecureURL(redirect))
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect: %w", err)
	}
	q := u.Query()
	if code := q.Get("error"); code != "" {
		return nil, &TokenExchangeError{Code: code, Description: q.Get("error_description")}
	}
	if q.Get("state") != a.state {
		return nil, ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return nil, &TokenExchangeError{Err: errors.New("redirect carries no authorization code")}
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	tok, err := a.config.Exchange(ctx, code, oauth2.VerifierOption(a.verifier))
	if err != nil {
		exErr := &TokenExchangeError{Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			if re.Response != nil {
				exErr.StatusCode = re.Response.StatusCode
			}
			exErr.Code = re.ErrorCode
			exErr.Description = re.ErrorDescription
		}
		return nil, exErr
	}
	return FromOAuth2(tok).WithClient(a.creds.ClientID, a.creds.ClientSecret), nil
}
