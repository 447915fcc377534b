// Package rediscache provides a Redis-backed distributed lock, grounded on
// the teacher's internal/orchestrator/dedupe.go RedisDedupeStore
// (redis.NewClient + Ping-on-construct pattern). Spec.md §4.G requires
// concurrent runs against the same spellId to be externally serialised;
// Locker is that external collaborator.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Acquire when another holder already owns the lock.
var ErrLocked = errors.New("rediscache: lock already held")

// Locker provides SETNX-with-TTL mutual exclusion over a spellId, so two
// `grimoire run` invocations for the same spell never execute concurrently.
type Locker struct {
	client *redis.Client
	prefix string
}

// NewLocker builds a Locker against addr (e.g. "localhost:6379"), pinging
// the server to validate the connection before returning.
func NewLocker(addr, prefix string) (*Locker, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if prefix == "" {
		prefix = "grimoire:lock:"
	}
	return &Locker{client: c, prefix: prefix}, nil
}

// Handle identifies a held lock so it can be released by its owner only.
type Handle struct {
	key   string
	token string
}

// Acquire attempts to take the lock for spellId for ttl, returning
// ErrLocked if another run currently holds it.
func (l *Locker) Acquire(ctx context.Context, spellId string, ttl time.Duration) (*Handle, error) {
	key := l.prefix + spellId
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", spellId, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Handle{key: key, token: token}, nil
}

// releaseScript only deletes the key if it still holds this handle's token,
// so a lock whose TTL already expired and was re-acquired by another run is
// never deleted out from under its new owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Release frees the lock h holds, a no-op if it was already lost to TTL
// expiry and re-acquired by someone else.
func (l *Locker) Release(ctx context.Context, h *Handle) error {
	return releaseScript.Run(ctx, l.client, []string{h.key}, h.token).Err()
}

// Close closes the underlying Redis client.
func (l *Locker) Close() error {
	return l.client.Close()
}
