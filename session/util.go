package session

import (
	"sync"

	"golang.org/x/oauth2"
)

// trackingSource remembers the last token handed to the transport, so the
// owner can see refreshes without triggering one.
type trackingSource struct {
	src oauth2.TokenSource

	mu   sync.Mutex
	last *oauth2.Token
}

func (t *trackingSource) Token() (*oauth2.Token, error) {
	tok, err := t.src.Token()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.last = tok
	t.mu.Unlock()
	return tok, nil
}

func (t *trackingSource) current() *oauth2.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
