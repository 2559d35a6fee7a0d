// internal/common/auth/tokens.go
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	"storefront/internal/common/config"
	"storefront/internal/common/errors"
)

// DefaultTokenKey is the name the bearer token is persisted under.
const DefaultTokenKey = "authToken"

// TokenStore persists the bearer token between runs. Get returns an empty
// string when no token is stored.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// NewTokenStore selects the store configured under auth.token_store. rdb is
// only used by the redis store and may be nil otherwise.
func NewTokenStore(cfg config.AuthConfig, keyPrefix string, rdb redis.UniversalClient) (TokenStore, error) {
	key := cfg.TokenKey
	if key == "" {
		key = DefaultTokenKey
	}

	switch cfg.TokenStore {
	case "", config.TokenStoreMemory:
		return NewMemoryTokenStore(), nil
	case config.TokenStoreFile:
		return NewFileTokenStore(cfg.TokenFile, key), nil
	case config.TokenStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis token store requires a redis client")
		}
		return NewRedisTokenStore(rdb, keyPrefix+key), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// ==========================
// Memory
// ==========================

type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Clear(context.Context) error {
	return s.Set(context.Background(), "")
}

// ==========================
// File
// ==========================

// FileTokenStore keeps the token in a small JSON document, {"authToken": "..."},
// readable only by the current user.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
	key  string
}

func NewFileTokenStore(path, key string) *FileTokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &FileTokenStore{path: path, key: key}
}

func (s *FileTokenStore) Path() string { return s.path }

func (s *FileTokenStore) Get(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", errors.NewTokenStoreError("get", err)
	}
	return doc[s.key], nil
}

func (s *FileTokenStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking login.
		doc = map[string]string{}
	}
	doc[s.key] = token

	if err := s.write(doc); err != nil {
		return errors.NewTokenStoreError("set", err)
	}
	return nil
}

func (s *FileTokenStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		doc = map[string]string{}
	}
	if _, ok := doc[s.key]; !ok && err == nil {
		return nil
	}
	delete(doc, s.key)

	if len(doc) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return errors.NewTokenStoreError("clear", err)
		}
		return nil
	}
	if err := s.write(doc); err != nil {
		return errors.NewTokenStoreError("clear", err)
	}
	return nil
}

func (s *FileTokenStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	doc := map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileTokenStore) write(doc map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// ==========================
// Redis
// ==========================

type RedisTokenStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisTokenStore(client redis.UniversalClient, key string) *RedisTokenStore {
	return &RedisTokenStore{client: client, key: key}
}

func (s *RedisTokenStore) Key() string { return s.key }

func (s *RedisTokenStore) Get(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewTokenStoreError("get", err)
	}
	return token, nil
}

func (s *RedisTokenStore) Set(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return errors.NewTokenStoreError("set", err)
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.NewTokenStoreError("clear", err)
	}
	return nil
}
