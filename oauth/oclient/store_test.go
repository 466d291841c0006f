package oclient

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func testToken() *Token {
	return &Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		ExpiresAt:    1700000000,
		ClientID:     "id",
		ClientSecret: "secret",
		Extra:        map[string]string{"user_id": "1234"},
	}
}

func TestFileTokenStore_Missing(t *testing.T) {
	s := NewFileTokenStore(filepath.Join(t.TempDir(), "nope"))
	tok, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if tok != nil {
		t.Errorf("Load = %+v; want nil", tok)
	}
}

func TestFileTokenStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".sky-token")
	s := NewFileTokenStore(path)
	ctx := context.Background()

	if err := s.Save(ctx, testToken()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("file mode = %o; want 600", mode)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !got.Same(testToken()) || got.Extra["user_id"] != "1234" {
		t.Errorf("Load = %+v; want %+v", got, testToken())
	}

	// overwrite
	next := testToken()
	next.AccessToken = "access-2"
	if err := s.Save(ctx, next); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, _ = s.Load(ctx)
	if got.AccessToken != "access-2" {
		t.Errorf("AccessToken = %q; want access-2", got.AccessToken)
	}
}

func TestFileTokenStore_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sky-token")
	ctx := context.Background()
	s := NewFileTokenStore(path, WithPassphrase("correct horse"))

	if err := s.Save(ctx, testToken()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "access") || strings.Contains(string(raw), "secret") {
		t.Errorf("token file leaks plaintext: %s", raw)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !got.Same(testToken()) {
		t.Errorf("Load = %+v; want %+v", got, testToken())
	}

	wrong := NewFileTokenStore(path, WithPassphrase("battery staple"))
	if _, err := wrong.Load(ctx); !errors.Is(err, ErrTokenDecrypt) {
		t.Errorf("Load with wrong passphrase error = %v; want ErrTokenDecrypt", err)
	}

	plain := NewFileTokenStore(filepath.Join(t.TempDir(), "plain"))
	_ = plain.Save(ctx, testToken())
	asEncrypted := NewFileTokenStore(plain.Path(), WithPassphrase("correct horse"))
	if _, err := asEncrypted.Load(ctx); !errors.Is(err, ErrTokenDecrypt) {
		t.Errorf("Load of plain file with passphrase error = %v; want ErrTokenDecrypt", err)
	}
}

func TestMongoTokenStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load", func(mt *mtest.T) {
		s := NewMongoTokenStore(mt.DB, "default")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".sky_tokens", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "default"},
			{Key: "access_token", Value: "access"},
			{Key: "refresh_token", Value: "refresh"},
			{Key: "expires_at", Value: int64(1700000000)},
			{Key: "client_id", Value: "id"},
			{Key: "client_secret", Value: "secret"},
			{Key: "updated_at", Value: time.Now()},
		}))

		tok, err := s.Load(context.Background())
		if err != nil {
			mt.Fatalf("Load error: %v", err)
		}
		if tok == nil || tok.AccessToken != "access" || tok.ExpiresAt != 1700000000 || tok.ClientID != "id" {
			mt.Errorf("Load = %+v", tok)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		s := NewMongoTokenStore(mt.DB, "default")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".sky_tokens", mtest.FirstBatch))

		tok, err := s.Load(context.Background())
		if err != nil {
			mt.Fatalf("Load error: %v", err)
		}
		if tok != nil {
			mt.Errorf("Load = %+v; want nil", tok)
		}
	})

	mt.Run("save", func(mt *mtest.T) {
		s := NewMongoTokenStore(mt.DB, "default")
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 0}})

		if err := s.Save(context.Background(), testToken()); err != nil {
			mt.Fatalf("Save error: %v", err)
		}
	})

	mt.Run("save error", func(mt *mtest.T) {
		s := NewMongoTokenStore(mt.DB, "default")
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "duplicate key",
		}))

		if err := s.Save(context.Background(), testToken()); err == nil {
			mt.Error("Save succeeded; want error")
		}
	})
}

func TestRedisTokenStore(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	s := NewRedisTokenStore(rdb, "sky:token", time.Hour)

	b, err := json.Marshal(testToken())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	mock.ExpectSet("sky:token", string(b), time.Hour).SetVal("OK")
	if err := s.Save(ctx, testToken()); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	mock.ExpectGet("sky:token").SetVal(string(b))
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !got.Same(testToken()) {
		t.Errorf("Load = %+v; want %+v", got, testToken())
	}

	mock.ExpectGet("sky:token").RedisNil()
	got, err = s.Load(ctx)
	if err != nil || got != nil {
		t.Errorf("Load of missing key = %+v, %v; want nil, nil", got, err)
	}

	mock.ExpectGet("sky:token").SetErr(errors.New("connection refused"))
	if _, err := s.Load(ctx); err == nil {
		t.Error("Load succeeded; want error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMockTokenStore(t *testing.T) {
	m := &MockTokenStore{}
	ctx := context.Background()
	if tok, _ := m.Load(ctx); tok != nil {
		t.Errorf("Load = %+v; want nil", tok)
	}
	_ = m.Save(ctx, testToken())
	if tok, _ := m.Load(ctx); !tok.Same(testToken()) || m.Saves != 1 {
		t.Errorf("Load = %+v, Saves = %d", tok, m.Saves)
	}
}
