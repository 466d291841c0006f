package oclient

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// DefaultTokenPath is the token file used when none is configured.
const DefaultTokenPath = ".sky-token"

var _ TokenStore = &FileTokenStore{}

// FileTokenStore keeps the token in a single JSON file readable only by its
// owner. With a passphrase the JSON is sealed with XChaCha20-Poly1305 under
// an argon2id-derived key.
type FileTokenStore struct {
	path       string
	passphrase []byte
}

// FileOption configures a FileTokenStore.
type FileOption func(*FileTokenStore)

// WithPassphrase encrypts the token file. An empty passphrase leaves the
// file in plain JSON.
func WithPassphrase(passphrase string) FileOption {
	return func(s *FileTokenStore) {
		if passphrase != "" {
			s.passphrase = []byte(passphrase)
		}
	}
}

// NewFileTokenStore returns a store backed by path, or DefaultTokenPath when
// path is empty.
func NewFileTokenStore(path string, opts ...FileOption) *FileTokenStore {
	if path == "" {
		path = DefaultTokenPath
	}
	s := &FileTokenStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file the store reads and writes.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the token file. A missing file is not an error.
func (s *FileTokenStore) Load(_ context.Context) (*Token, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if s.passphrase != nil {
		if b, err = s.open(b); err != nil {
			return nil, err
		}
	}
	var tok Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &tok, nil
}

// Save replaces the token file atomically.
func (s *FileTokenStore) Save(_ context.Context, tok *Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if s.passphrase != nil {
		if b, err = s.seal(b); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(f.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// sealedToken is the on-disk form of an encrypted token.
type sealedToken struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltSize     = 16
)

func (s *FileTokenStore) key(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

func (s *FileTokenStore) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return json.Marshal(sealedToken{
		Version:    1,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plain, nil),
	})
}

func (s *FileTokenStore) open(b []byte) ([]byte, error) {
	var sealed sealedToken
	if err := json.Unmarshal(b, &sealed); err != nil || sealed.Version == 0 {
		return nil, fmt.Errorf("%w: token file is not encrypted", ErrTokenDecrypt)
	}
	aead, err := chacha20poly1305.NewX(s.key(sealed.Salt))
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(sealed.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce", ErrTokenDecrypt)
	}
	plain, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return nil, ErrTokenDecrypt
	}
	return plain, nil
}
