package sky

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// DefaultAPIURL is the SKY API gateway.
	DefaultAPIURL = "https://api.sky.blackbaud.com"
	// DefaultReference is the API reference used when none is given.
	DefaultReference = "school"
)

// Config holds the client settings that can come from the environment.
// Explicit options passed to New take precedence over it.
type Config struct {
	APIKey          string        `envconfig:"BB_API_KEY"`
	TokenPath       string        `envconfig:"BB_TOKEN_PATH" default:".sky-token"`
	CredentialsFile string        `envconfig:"SKY_CREDENTIALS" default:"sky_credentials.json"`
	APIURL          string        `envconfig:"SKY_API_URL" default:"https://api.sky.blackbaud.com"`
	AuthURL         string        `envconfig:"SKY_AUTH_URL" default:"https://oauth2.sky.blackbaud.com/authorization"`
	TokenURL        string        `envconfig:"SKY_TOKEN_URL" default:"https://oauth2.sky.blackbaud.com/token"`
	CallbackTimeout time.Duration `envconfig:"SKY_CALLBACK_TIMEOUT"`
	RateLimit       float64       `envconfig:"SKY_RATE_LIMIT" default:"10"`
	TokenPassphrase string        `envconfig:"SKY_TOKEN_PASSPHRASE"`
	QRCodePath      string        `envconfig:"SKY_QRCODE_PATH"`
	NoBrowser       bool          `envconfig:"SKY_NO_BROWSER"`
}

// LoadConfig reads Config from the environment, filling defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
