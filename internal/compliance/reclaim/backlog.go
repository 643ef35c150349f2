package reclaim

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/roadpass/roadpass/backend/go-services/pkg/metrics"
)

// Entry is one dead-lettered blob key.
type Entry struct {
	Key         string    `json:"key"`
	LastError   string    `json:"lastError"`
	Escalations int       `json:"escalations"`
	FailedAt    time.Time `json:"failedAt"`
}

// RedisBacklog is the out-of-band dead-letter list for keys the in-process
// reclaimer could not delete. Entries are JSON encoded under a single list key.
// While Drain works on an entry it sits in "<key>:processing", so an entry is
// never only in memory.
type RedisBacklog struct {
	client     *redis.Client
	key        string
	processing string
}

func NewRedisBacklog(client *redis.Client, key string) *RedisBacklog {
	if key == "" {
		key = "reclaim:dead"
	}
	return &RedisBacklog{client: client, key: key, processing: key + ":processing"}
}

// Escalate implements Escalator.
func (b *RedisBacklog) Escalate(ctx context.Context, key string, cause error) error {
	e := Entry{Key: key, Escalations: 1, FailedAt: time.Now().UTC()}
	if cause != nil {
		e.LastError = cause.Error()
	}
	return b.Push(ctx, e)
}

func (b *RedisBacklog) Push(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.client.RPush(ctx, b.key, data).Err()
}

// Pop removes the oldest entry. It returns nil when the backlog is empty.
func (b *RedisBacklog) Pop(ctx context.Context) (*Entry, error) {
	data, err := b.client.LPop(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeEntry(data), nil
}

func decodeEntry(data []byte) *Entry {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		logger.Errorf("dropping malformed backlog entry %q: %v", string(data), err)
		return &Entry{}
	}
	return &e
}

func (b *RedisBacklog) Len(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, b.key).Result()
}

// InFlight returns the number of entries claimed by a drain that has not
// resolved them.
func (b *RedisBacklog) InFlight(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, b.processing).Result()
}

// Recover moves entries left in the processing list by an interrupted drain
// back to the head of the backlog.
func (b *RedisBacklog) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := b.client.LMove(ctx, b.processing, b.key, "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			if n > 0 {
				logger.Warnf("recovered %d interrupted backlog entries", n)
			}
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// claim moves the oldest entry into the processing list.
func (b *RedisBacklog) claim(ctx context.Context) ([]byte, error) {
	data, err := b.client.LMove(ctx, b.key, b.processing, "LEFT", "RIGHT").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// settle removes a claimed entry and, when next is non-nil, appends it to the
// backlog in the same transaction. It ignores cancellation of ctx so a
// shutdown cannot leave the entry half moved.
func (b *RedisBacklog) settle(ctx context.Context, claimed []byte, next []byte, front bool) error {
	ctx = context.WithoutCancel(ctx)
	_, err := b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, b.processing, 1, claimed)
		switch {
		case next == nil:
		case front:
			p.LPush(ctx, b.key, next)
		default:
			p.RPush(ctx, b.key, next)
		}
		return nil
	})
	return err
}

// DrainStats summarises one Drain pass.
type DrainStats struct {
	Deleted  int
	Requeued int
	Dropped  int
}

// Drain retries up to batch backlog entries with r's retry policy. Entries that
// fail again are pushed back with an incremented escalation count until
// maxEscalations is reached, after which they are dropped with an alert. Only
// entries present when Drain starts are visited. If ctx is cancelled mid-entry
// the entry goes back to the head of the backlog unchanged.
func (b *RedisBacklog) Drain(ctx context.Context, r *Reclaimer, batch, maxEscalations int) (DrainStats, error) {
	var st DrainStats
	if _, err := b.Recover(ctx); err != nil {
		return st, err
	}
	n, err := b.Len(ctx)
	if err != nil {
		return st, err
	}
	if int64(batch) > n {
		batch = int(n)
	}
	for i := 0; i < batch; i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		data, err := b.claim(ctx)
		if err != nil {
			return st, err
		}
		if data == nil {
			return st, nil
		}
		e := decodeEntry(data)
		if e.Key == "" {
			if err := b.settle(ctx, data, nil, false); err != nil {
				return st, err
			}
			continue
		}
		aerr := r.Attempt(ctx, e.Key)
		if aerr == nil {
			st.Deleted++
			if err := b.settle(ctx, data, nil, false); err != nil {
				return st, err
			}
			continue
		}
		if ctx.Err() != nil {
			if err := b.settle(ctx, data, data, true); err != nil {
				return st, err
			}
			return st, ctx.Err()
		}
		e.Escalations++
		e.LastError = aerr.Error()
		e.FailedAt = time.Now().UTC()
		if e.Escalations > maxEscalations {
			st.Dropped++
			metrics.Reclaims.WithLabelValues("dropped").Inc()
			logger.Errorf("ALERT giving up on blob %s after %d escalations: %v", e.Key, e.Escalations-1, aerr)
			if err := b.settle(ctx, data, nil, false); err != nil {
				return st, err
			}
			continue
		}
		next, err := json.Marshal(e)
		if err != nil {
			return st, err
		}
		if err := b.settle(ctx, data, next, false); err != nil {
			return st, err
		}
		st.Requeued++
	}
	return st, nil
}
