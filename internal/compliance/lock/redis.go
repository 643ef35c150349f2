package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
)

// releaseScript deletes the lock only when it is still owned by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions tune the distributed lock.
type RedisOptions struct {
	Prefix  string
	TTL     time.Duration
	Retries int
	Backoff time.Duration
}

// RedisLocker is a Locker shared by every instance of the service. Locks are
// stored as "<prefix><key>" with a random owner token and expire after TTL so
// a crashed holder cannot block a driver forever.
type RedisLocker struct {
	client *redis.Client
	opts   RedisOptions
}

func NewRedisLocker(client *redis.Client, opts RedisOptions) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "lock:driver:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 25 * time.Millisecond
	}
	return &RedisLocker{client: client, opts: opts}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := r.opts.Prefix + key
	token := uuid.NewString()
	backoff := r.opts.Backoff
	for attempt := 0; ; attempt++ {
		ok, err := r.client.SetNX(ctx, k, token, r.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if attempt >= r.opts.Retries {
			return nil, ErrContention
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{k}, token).Err(); err != nil {
				// the lock stays held until TTL expires
				logger.Warnw("driver lock release failed", "key", key, "ttl", r.opts.TTL, "err", err)
			}
		})
	}, nil
}
