// Package reclaim deletes blobs that were superseded by a re-submission or a
// clear. Deletion never blocks the request that produced the stale key.
package reclaim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/roadpass/roadpass/backend/go-services/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Deleter removes a blob. Deleting a key that does not exist must succeed.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Escalator receives keys whose reclamation exhausted its retries.
type Escalator interface {
	Escalate(ctx context.Context, key string, cause error) error
}

type Options struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	Backoff        time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Backoff <= 0 {
		o.Backoff = 200 * time.Millisecond
	}
	if o.MaxBackoff < o.Backoff {
		o.MaxBackoff = 30 * o.Backoff
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 10 * time.Second
	}
	return o
}

// Reclaimer runs a fixed pool of workers that delete queued keys with bounded
// retries. Keys that keep failing go to the escalator.
type Reclaimer struct {
	store     Deleter
	escalator Escalator
	opts      Options
	queue     chan string

	mu      sync.RWMutex
	stopped bool
}

// New returns a reclaimer. escalator may be nil, in which case exhausted keys
// are only logged and counted.
func New(store Deleter, escalator Escalator, opts Options) *Reclaimer {
	opts = opts.withDefaults()
	return &Reclaimer{store: store, escalator: escalator, opts: opts, queue: make(chan string, opts.QueueSize)}
}

// Enqueue schedules key for deletion without blocking. When the queue is full
// or Run has returned, the key is escalated straight away.
func (r *Reclaimer) Enqueue(key string) {
	if key == "" {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		logger.Warnf("reclaimer stopped, escalating %s", key)
		go r.escalate(context.Background(), key, errors.New("reclaimer stopped"))
		return
	}
	select {
	case r.queue <- key:
		metrics.ReclaimQueueDepth.Set(float64(len(r.queue)))
	default:
		logger.Warnf("reclaim queue full, escalating %s", key)
		go r.escalate(context.Background(), key, errors.New("reclaim queue full"))
	}
}

// Pending returns the number of queued keys.
func (r *Reclaimer) Pending() int { return len(r.queue) }

// Run processes the queue until ctx is cancelled. Keys still queued at
// shutdown are escalated so they are not lost.
func (r *Reclaimer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.opts.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case key := <-r.queue:
					metrics.ReclaimQueueDepth.Set(float64(len(r.queue)))
					_ = r.Reclaim(gctx, key)
				}
			}
		})
	}
	err := g.Wait()
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.flush()
	return err
}

func (r *Reclaimer) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case key := <-r.queue:
			r.escalate(ctx, key, errors.New("reclaimer stopped"))
		default:
			metrics.ReclaimQueueDepth.Set(0)
			return
		}
	}
}

// Reclaim deletes key, retrying with exponential backoff, and escalates it
// once attempts are exhausted. The returned error wraps
// compliance.ErrStorageReclaimFailed.
func (r *Reclaimer) Reclaim(ctx context.Context, key string) error {
	err := r.Attempt(ctx, key)
	if err == nil {
		return nil
	}
	r.escalate(context.WithoutCancel(ctx), key, err)
	return err
}

// Attempt deletes key with bounded retries but does not escalate.
func (r *Reclaimer) Attempt(ctx context.Context, key string) error {
	backoff := r.opts.Backoff
	var last error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
		last = r.store.Delete(actx, key)
		cancel()
		if last == nil {
			metrics.Reclaims.WithLabelValues("deleted").Inc()
			logger.Debugf("reclaimed %s (attempt %d)", key, attempt)
			return nil
		}
		logger.Warnf("reclaim %s attempt %d/%d failed: %v", key, attempt, r.opts.MaxAttempts, last)
		if attempt == r.opts.MaxAttempts {
			break
		}
		metrics.Reclaims.WithLabelValues("retried").Inc()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", compliance.ErrStorageReclaimFailed, key, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.opts.MaxBackoff {
			backoff = r.opts.MaxBackoff
		}
	}
	return fmt.Errorf("%w: %s: %v", compliance.ErrStorageReclaimFailed, key, last)
}

func (r *Reclaimer) escalate(ctx context.Context, key string, cause error) {
	metrics.Reclaims.WithLabelValues("escalated").Inc()
	logger.Errorf("ALERT blob reclaim failed for %s: %v", key, cause)
	if r.escalator == nil {
		return
	}
	if err := r.escalator.Escalate(ctx, key, cause); err != nil {
		logger.Errorf("escalate %s: %v", key, err)
	}
}
