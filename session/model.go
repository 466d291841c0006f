package session

import (
	"log/slog"
	"net/http"
)

// APIKeyHeader carries the SKY subscription key on every API call.
const APIKeyHeader = "Bb-Api-Subscription-Key"

// Options configures a Session.
type Options struct {
	// APIKey is sent as the subscription key header.
	APIKey string
	// RateLimit caps outgoing requests per second. Zero or less disables it.
	RateLimit float64
	// Burst is the limiter burst, at least 1.
	Burst int
	// HTTPClient supplies the base transport and is used for token
	// refreshes. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	Logger     *slog.Logger
}
