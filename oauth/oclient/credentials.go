package oclient

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Seann-Moser/sky/utils"
)

// DefaultCredentialsFile is where LoadCredentialsFile looks when no path is
// configured.
const DefaultCredentialsFile = "sky_credentials.json"

// CredentialsFromMap builds credentials from a plain map, as handed over by
// callers that keep them in their own configuration.
func CredentialsFromMap(m map[string]string) (Credentials, error) {
	c := Credentials{
		ClientID:     m["client_id"],
		ClientSecret: m["client_secret"],
		RedirectURI:  m["redirect_uri"],
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// LoadCredentialsFile reads credentials from a JSON file with the keys
// client_id, client_secret and redirect_uri.
func LoadCredentialsFile(path string) (Credentials, error) {
	if path == "" {
		path = DefaultCredentialsFile
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidCredentials, path, err)
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidCredentials, path, err)
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// Validate checks that every field is set and that the redirect URI names a
// host the loopback listener can bind.
func (c Credentials) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "redirect_uri")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidCredentials, strings.Join(missing, ", "))
	}
	if _, err := utils.ListenAddr(c.RedirectURI); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return nil
}
