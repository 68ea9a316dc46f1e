package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// releaseIfOwnerScript deletes the key only while the caller still owns
// it. A sweep that overran its ttl must not drop a lock another replica
// has since claimed.
const releaseIfOwnerScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var errSweepLockMisuse = errors.New("sweep lock misconfigured")

// SweepLock is a best effort distributed mutex for background jobs.
// One replica wins the SETNX, the rest skip the run until the ttl
// lapses.
type SweepLock struct {
	client  *redis.Client
	release *redis.Script
}

func NewSweepLock(client *redis.Client) *SweepLock {
	if client == nil {
		return nil
	}
	return &SweepLock{
		client:  client,
		release: redis.NewScript(releaseIfOwnerScript),
	}
}

// Acquire claims key for ttl. The returned token proves ownership when
// releasing.
func (l *SweepLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil || key == "" || ttl <= 0 {
		return "", false, errSweepLockMisuse
	}

	token := uuid.NewString()
	won, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, won, nil
}

// Release drops key if token still owns it. A lock already lost to a
// ttl expiry is not an error.
func (l *SweepLock) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{key}, token).Err()
}
