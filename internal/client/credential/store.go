// Package credential holds the bearer token between calls. The store is
// explicitly scoped and injected into the REST client at construction so the
// client stays testable: tests use MemoryStore, the CLI uses FileStore.
package credential

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Store interface {
	Set(token string) error
	Get() (string, bool)
	Clear() error
}

// MemoryStore keeps the token in memory only.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// FileStore persists the token across runs in a 0600 file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.WriteFile(s.path, []byte(token), 0o600)
}

func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// TokenClaims are the fields the server encodes into the bearer token.
type TokenClaims struct {
	UserId    uuid.UUID
	Username  string
	ExpiresAt time.Time
}

func (c *TokenClaims) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// Claims decodes the token payload without verifying the signature. The
// client only needs user_id and expiry; verification is the server's job.
func Claims(token string) (*TokenClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	out := &TokenClaims{}
	if sub, ok := mapClaims["sub"].(string); ok {
		if id, err := uuid.Parse(sub); err == nil {
			out.UserId = id
		}
	}
	if username, ok := mapClaims["username"].(string); ok {
		out.Username = username
	}
	if exp, ok := mapClaims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return out, nil
}
