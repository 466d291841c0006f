package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var versionSegment = regexp.MustCompile(`v\d/`)

// ListenAddr returns the host:port a loopback listener must bind to in order
// to receive redirects sent to redirectURI.
func ListenAddr(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect uri: %w", err)
	}
	host := u.Hostname() // "localhost:8080" => "localhost"
	if host == "" {
		return "", errors.New("redirect uri has no host")
	}
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}

// SecureURL rewrites an http URL to https. Other schemes are left alone.
func SecureURL(raw string) string {
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "http://") {
		return "https://" + raw[7:]
	}
	return raw
}

// EndpointFromNextLink extracts the endpoint suffix that follows the API
// version segment of a next_link, e.g.
// "https://api.sky.blackbaud.com/school/v1/users?marker=2" => "users?marker=2".
func EndpointFromNextLink(link string) (string, error) {
	loc := versionSegment.FindStringIndex(link)
	if loc == nil {
		return "", fmt.Errorf("next link %q has no version segment", link)
	}
	return link[loc[1]:], nil
}

// JoinURL builds <base>/<reference>/v1/<endpoint> and merges params into any
// query string the endpoint already carries. Values already present in the
// endpoint win over params.
func JoinURL(base, reference, endpoint string, params url.Values) (string, error) {
	base = strings.TrimRight(base, "/")
	reference = strings.Trim(reference, "/")
	endpoint = strings.TrimLeft(endpoint, "/")

	u, err := url.Parse(fmt.Sprintf("%s/%s/v1/%s", base, reference, endpoint))
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range params {
		if q.Has(k) {
			continue
		}
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
