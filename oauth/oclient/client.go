package oclient

import "context"

// TokenStore persists the single SKY token a client works with.
type TokenStore interface {
	// Load returns the stored token, or nil and no error when nothing has
	// been stored yet.
	Load(ctx context.Context) (*Token, error)

	// Save overwrites the stored token.
	Save(ctx context.Context, tok *Token) error
}
