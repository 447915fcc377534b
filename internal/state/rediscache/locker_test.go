package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addrOrSkip returns REDIS_ADDR if set, otherwise skips: these tests need a
// live Redis and are opt-in, mirroring the teacher's CI_DATABASE_URL gate
// for its own testcontainers-backed suite.
func addrOrSkip(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping rediscache integration test")
	}
	return addr
}

func TestLockerAcquireReleaseRoundtrip(t *testing.T) {
	addr := addrOrSkip(t)
	l, err := NewLocker(addr, "grimoire-test:lock:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	ctx := context.Background()
	spellId := "spell-1"

	h, err := l.Acquire(ctx, spellId, 5*time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, spellId, 5*time.Second)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release(ctx, h))

	h2, err := l.Acquire(ctx, spellId, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, h2))
}

func TestLockerReleaseIsNoOpForStaleHandle(t *testing.T) {
	addr := addrOrSkip(t)
	l, err := NewLocker(addr, "grimoire-test:lock:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	ctx := context.Background()
	spellId := "spell-2"

	h, err := l.Acquire(ctx, spellId, 100*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)

	h2, err := l.Acquire(ctx, spellId, 5*time.Second)
	require.NoError(t, err)

	// Releasing the expired handle must not remove the new owner's lock.
	require.NoError(t, l.Release(ctx, h))
	_, err = l.Acquire(ctx, spellId, 5*time.Second)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release(ctx, h2))
}
