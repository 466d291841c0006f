package sky

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Seann-Moser/sky/oauth/oclient"
	"golang.org/x/oauth2"
)

// Option configures a Client. Options are applied in order, after the
// environment has been read.
type Option func(*Client)

// WithConfig replaces the configuration read from the environment.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithAPIKey sets the subscription key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.cfg.APIKey = key
	}
}

// WithTokenPath sets the token file used by the default store.
func WithTokenPath(path string) Option {
	return func(c *Client) {
		c.cfg.TokenPath = path
	}
}

// WithTokenPassphrase encrypts the default token file.
func WithTokenPassphrase(passphrase string) Option {
	return func(c *Client) {
		c.cfg.TokenPassphrase = passphrase
	}
}

// WithTokenStore replaces the token file with another store.
func WithTokenStore(store oclient.TokenStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithCredentials supplies the application credentials directly. Invalid
// credentials fall back to the credentials file.
func WithCredentials(creds oclient.Credentials) Option {
	return func(c *Client) {
		c.creds = &creds
	}
}

// WithCredentialsMap is WithCredentials for a map with the keys client_id,
// client_secret and redirect_uri.
func WithCredentialsMap(m map[string]string) Option {
	return WithCredentials(oclient.Credentials{
		ClientID:     m["client_id"],
		ClientSecret: m["client_secret"],
		RedirectURI:  m["redirect_uri"],
	})
}

// WithCredentialsFile sets the credentials file path.
func WithCredentialsFile(path string) Option {
	return func(c *Client) {
		c.cfg.CredentialsFile = path
	}
}

// WithAPIURL points the client at another API gateway.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		c.cfg.APIURL = u
	}
}

// WithEndpoint points the client at another OAuth2 provider.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(c *Client) {
		c.cfg.AuthURL = ep.AuthURL
		c.cfg.TokenURL = ep.TokenURL
	}
}

// WithRateLimit caps requests per second. Zero disables the limiter.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		c.cfg.RateLimit = perSecond
	}
}

// WithCallbackTimeout bounds the wait for the login redirect.
func WithCallbackTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.cfg.CallbackTimeout = d
	}
}

// WithBrowser replaces the function used to open the authorization URL.
func WithBrowser(open func(url string) error) Option {
	return func(c *Client) {
		c.browser = open
		c.browserSet = true
	}
}

// WithQRCode also writes the authorization URL as a QR code PNG.
func WithQRCode(path string) Option {
	return func(c *Client) {
		c.cfg.QRCodePath = path
	}
}

// WithHTTPClient sets the HTTP client for API and token calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// RequestOption configures a single call.
type RequestOption func(*request)

type request struct {
	reference string
	query     url.Values
	raw       bool
	body      any
}

func newRequest(opts []RequestOption) *request {
	r := &request{reference: DefaultReference, query: url.Values{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithReference selects the API reference, e.g. "school" or "constituent".
func WithReference(reference string) RequestOption {
	return func(r *request) {
		if reference != "" {
			r.reference = reference
		}
	}
}

// WithParams adds query parameters.
func WithParams(params map[string]string) RequestOption {
	return func(r *request) {
		for k, v := range params {
			r.query.Set(k, v)
		}
	}
}

// WithQuery adds query parameters, keeping repeated values.
func WithQuery(q url.Values) RequestOption {
	return func(r *request) {
		for k, vs := range q {
			for _, v := range vs {
				r.query.Add(k, v)
			}
		}
	}
}

// WithRawData makes Get return the first page undecoded.
func WithRawData() RequestOption {
	return func(r *request) {
		r.raw = true
	}
}

// WithBody sets the JSON body of a mutation.
func WithBody(body any) RequestOption {
	return func(r *request) {
		r.body = body
	}
}
