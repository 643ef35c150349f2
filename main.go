package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/roadpass/roadpass/backend/go-services/handlers"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/handler"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/lock"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/reclaim"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/repository"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/service"
	"github.com/roadpass/roadpass/backend/go-services/internal/config"
	"github.com/roadpass/roadpass/backend/go-services/internal/database"
	"github.com/roadpass/roadpass/backend/go-services/internal/oidc"
	"github.com/roadpass/roadpass/backend/go-services/internal/storage"
	"github.com/roadpass/roadpass/backend/go-services/internal/tokens"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/roadpass/roadpass/backend/go-services/pkg/metrics"
	"github.com/roadpass/roadpass/backend/go-services/pkg/middleware"
)

var startTime = time.Now()

// blobStore is what the API needs from the artifact store.
type blobStore interface {
	service.ArtifactStore
	Ping(ctx context.Context) error
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v storage=%s", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]func(context.Context) error{}

	// Redis backs the driver lock, the reclaim backlog and the shared rate limiter.
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v; using in-process lock", addr, err)
			_ = client.Close()
		} else {
			rdb = client
			defer rdb.Close()
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			logger.Infof("connected to Redis at %s", addr)
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("artifact store: %v", err)
	}
	checks["storage"] = store.Ping

	catalog, err := cfg.Compliance.FieldCatalog()
	if err != nil {
		logger.Fatalf("field catalog: %v", err)
	}
	deps := service.Deps{
		Registry:  compliance.DefaultRegistry(),
		Catalog:   catalog,
		Records:   repository.NewMemoryRepo(),
		Banks:     repository.NewMemoryInfoStore[compliance.BankInformation](),
		Companies: repository.NewMemoryInfoStore[compliance.CompanyInformation](),
		Store:     store,
		Locker:    lock.NewKeyedMutex(cfg.Compliance.LockWait),
		Config:    cfg.Compliance.ServiceConfig(),
	}

	if cfg.MongoDB.URI != "" {
		client, err := connectMongo(ctx, cfg)
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db := client.Database(cfg.MongoDB.Database)
		deps.Records = repository.NewMongoRepo(db.Collection("compliance_records"))
		deps.Banks = repository.NewMongoInfoStore[compliance.BankInformation](db.Collection("bank_information"))
		deps.Companies = repository.NewMongoInfoStore[compliance.CompanyInformation](db.Collection("company_information"))
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	} else {
		logger.Warnf("MONGODB_URI not set; compliance records are kept in memory")
	}

	var escalator reclaim.Escalator
	if rdb != nil {
		deps.Locker = lock.NewRedisLocker(rdb, cfg.Compliance.LockOptions())
		escalator = reclaim.NewRedisBacklog(rdb, cfg.Compliance.ReclaimBacklogKey)
	}
	reclaimer := reclaim.New(store, escalator, cfg.Compliance.ReclaimOptions())
	deps.Reclaimer = reclaimer
	svc := service.New(deps)

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		logger.Fatalf("token verifier: %v", err)
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		up := map[string]bool{}
		for name, check := range checks {
			cctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			up[name] = check(cctx) == nil
			cancel()
			ready = ready && up[name]
		}
		body := gin.H{"deps": up, "uptime": time.Since(startTime).String(), "reclaimQueue": reclaimer.Pending()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	var extra []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			extra = append(extra, middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			extra = append(extra, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	handler.New(svc, cfg.Compliance.MaxUploadBytes).Register(r.Group("/api/v1"), middleware.AuthMiddleware(verifier), cfg.Auth.ReviewerRole, extra...)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// the reclaimer outlives the HTTP server so in-flight requests can still
	// schedule superseded keys while Shutdown drains them
	rctx, stopReclaim := context.WithCancel(context.Background())
	defer stopReclaim()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reclaimer.Run(rctx) })
	g.Go(func() error {
		logger.Infof("starting compliance service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Infof("shutting down")
		err := srv.Shutdown(sctx)
		stopReclaim()
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Errorf("service stopped: %v", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (blobStore, error) {
	if cfg.Storage.Backend == "memory" {
		logger.Warnf("STORAGE_BACKEND=memory; uploaded documents are lost on restart")
		return storage.NewMemoryStorage(cfg.Storage.MinIO.Bucket), nil
	}
	var s *storage.MinIOStorage
	err := withRetry(ctx, "minio", func() error {
		var err error
		s, err = storage.NewMinIOStorage(ctx, &cfg.Storage.MinIO)
		return err
	})
	return s, err
}

func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	var client *mongo.Client
	err := withRetry(ctx, "mongo", func() error {
		var err error
		client, err = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		return err
	})
	return client, err
}

// withRetry tolerates dependencies that come up after the service.
func withRetry(ctx context.Context, what string, fn func() error) error {
	const maxAttempts = 5
	backoff := time.Second
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Warnf("attempt %d/%d: failed to connect to %s: %v", attempt, maxAttempts, what, err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func newVerifier(ctx context.Context, cfg *config.Config) (middleware.Verifier, error) {
	switch {
	case cfg.Keycloak.URL != "":
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak.Issuer(), cfg.Keycloak.ClientID, cfg.Keycloak.SkipClientIDCheck)
		if err != nil {
			return nil, err
		}
		return ver, nil
	case cfg.JWT.Secret != "":
		return tokens.NewVerifier(cfg.JWT.Secret), nil
	case cfg.Auth.Insecure:
		logger.Warnf("enabling insecure token verifier (integration mode)")
		return oidc.NewInsecureVerifier(), nil
	}
	return nil, errors.New("set KEYCLOAK_URL, JWT_SECRET or AUTH_INSECURE=true")
}
