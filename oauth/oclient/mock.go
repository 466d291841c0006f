package oclient

import "context"

// MockTokenStore provides customizable hooks for testing TokenStore callers.
// Without hooks it behaves as an in-memory store and counts saves.
type MockTokenStore struct {
	LoadFunc func(ctx context.Context) (*Token, error)
	SaveFunc func(ctx context.Context, tok *Token) error

	Token *Token
	Saves int
}

// Ensure MockTokenStore implements TokenStore
var _ TokenStore = (*MockTokenStore)(nil)

// Load calls LoadFunc if set, otherwise returns the in-memory token.
func (m *MockTokenStore) Load(ctx context.Context) (*Token, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return m.Token, nil
}

// Save calls SaveFunc if set, otherwise keeps tok in memory.
func (m *MockTokenStore) Save(ctx context.Context, tok *Token) error {
	m.Saves++
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tok)
	}
	m.Token = tok
	return nil
}
