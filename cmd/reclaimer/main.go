// Command reclaimer drains the dead-letter backlog of blob keys whose
// in-process reclamation gave up, retrying each with the same bounded policy.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/reclaim"
	"github.com/roadpass/roadpass/backend/go-services/internal/config"
	"github.com/roadpass/roadpass/backend/go-services/internal/storage"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.Redis.Addr() == "" {
		logger.Fatalf("REDIS_HOST is required: the backlog lives in Redis")
	}
	if cfg.Storage.Backend != "minio" {
		logger.Fatalf("STORAGE_BACKEND=%s has nothing to reclaim out of process", cfg.Storage.Backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatalf("failed to connect to Redis: %v", err)
	}
	store, err := storage.NewMinIOStorage(ctx, &cfg.Storage.MinIO)
	if err != nil {
		logger.Fatalf("failed to connect to MinIO: %v", err)
	}

	backlog := reclaim.NewRedisBacklog(rdb, cfg.Compliance.ReclaimBacklogKey)
	// no escalator: Drain itself re-queues failures
	r := reclaim.New(store, nil, cfg.Compliance.ReclaimOptions())

	interval := cfg.Compliance.ReclaimDrainInterval
	if interval <= 0 {
		interval = time.Minute
	}
	logger.Infof("reclaimer draining %s every %s", cfg.Compliance.ReclaimBacklogKey, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		drain(ctx, backlog, r, cfg.Compliance.ReclaimDrainBatch, cfg.Compliance.ReclaimMaxEscalations)
		select {
		case <-ctx.Done():
			logger.Infof("reclaimer stopped")
			return
		case <-ticker.C:
		}
	}
}

func drain(ctx context.Context, backlog *reclaim.RedisBacklog, r *reclaim.Reclaimer, batch, maxEscalations int) {
	st, err := backlog.Drain(ctx, r, batch, maxEscalations)
	if err != nil && ctx.Err() == nil {
		logger.Errorf("backlog drain failed: %v", err)
	}
	if st.Deleted+st.Requeued+st.Dropped > 0 {
		logger.Infow("backlog drained", "deleted", st.Deleted, "requeued", st.Requeued, "dropped", st.Dropped)
	}
}
