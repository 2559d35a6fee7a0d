// internal/common/cache/snapshots.go
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshots stores the last successful list response of each resource as a
// JSON blob under <prefix>snapshot:<resource>.
type Snapshots struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewSnapshots(client redis.UniversalClient, prefix string, ttl time.Duration) *Snapshots {
	return &Snapshots{client: client, prefix: prefix, ttl: ttl}
}

func (s *Snapshots) key(resource string) string {
	return s.prefix + "snapshot:" + resource
}

// Load decodes the snapshot for resource into dst. It reports false when no
// snapshot exists.
func (s *Snapshots) Load(ctx context.Context, resource string, dst interface{}) (bool, error) {
	data, err := s.client.Get(ctx, s.key(resource)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot %s: %w", resource, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", resource, err)
	}
	return true, nil
}

// Save replaces the snapshot for resource. A zero TTL keeps it forever.
func (s *Snapshots) Save(ctx context.Context, resource string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", resource, err)
	}
	if err := s.client.Set(ctx, s.key(resource), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", resource, err)
	}
	return nil
}

func (s *Snapshots) Invalidate(ctx context.Context, resource string) error {
	return s.client.Del(ctx, s.key(resource)).Err()
}
