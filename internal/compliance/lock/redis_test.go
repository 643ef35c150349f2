package lock

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_ExclusiveAndRelease(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewRedisLocker(client, RedisOptions{Prefix: "test:lock:", TTL: 5 * time.Second, Retries: 1, Backoff: time.Millisecond})
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "d1")
	require.NoError(t, err)
	require.True(t, m.Exists("test:lock:d1"))

	_, err = l.Lock(ctx, "d1")
	require.ErrorIs(t, err, ErrContention)

	unlock()
	require.False(t, m.Exists("test:lock:d1"))

	unlock2, err := l.Lock(ctx, "d1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewRedisLocker(client, RedisOptions{Prefix: "test:lock:", TTL: time.Second})
	ctx := context.Background()

	stale, err := l.Lock(ctx, "d1")
	require.NoError(t, err)

	// the holder stalls past the TTL and another instance takes over
	m.FastForward(2 * time.Second)
	fresh, err := l.Lock(ctx, "d1")
	require.NoError(t, err)

	stale()
	require.True(t, m.Exists("test:lock:d1"), "stale owner must not release a lock it no longer holds")
	fresh()
	require.False(t, m.Exists("test:lock:d1"))
}

func TestRedisLocker_ReleaseFailureIsLogged(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	l := NewRedisLocker(client, RedisOptions{Prefix: "test:lock:", TTL: 5 * time.Second})
	unlock, err := l.Lock(context.Background(), "d1")
	require.NoError(t, err)

	m.Close()
	unlock()
	require.Contains(t, buf.String(), "driver lock release failed")
	require.Contains(t, buf.String(), "key=d1")
}
