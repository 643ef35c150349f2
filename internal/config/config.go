package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/lock"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/reclaim"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/service"
	"github.com/roadpass/roadpass/backend/go-services/internal/storage"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Keycloak   KeycloakConfig
	JWT        JWTConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Compliance ComplianceConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// StorageConfig selects the artifact store. Backend "memory" keeps blobs in
// process and is only meant for local runs.
type StorageConfig struct {
	Backend string
	MinIO   storage.MinIOConfig
}

type KeycloakConfig struct {
	URL               string
	Realm             string
	ClientID          string
	ClientSecret      string
	SkipClientIDCheck bool
}

// Issuer is the realm issuer URL.
func (k KeycloakConfig) Issuer() string {
	if k.Realm == "" {
		return k.URL
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

type AuthConfig struct {
	// Insecure accepts unsigned bearer tokens. Integration stacks only.
	Insecure     bool
	ReviewerRole string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type ComplianceConfig struct {
	SignedURLTTL          time.Duration
	MaxUploadBytes        int64
	AllowedMimeTypes      []string
	BankRequiredFields    []string
	CompanyRequiredFields []string

	LockWait    time.Duration
	LockTTL     time.Duration
	LockRetries int
	LockBackoff time.Duration

	CommitTimeout time.Duration
	CommitRetries int

	ReclaimWorkers        int
	ReclaimQueueSize      int
	ReclaimMaxAttempts    int
	ReclaimBackoff        time.Duration
	ReclaimMaxBackoff     time.Duration
	ReclaimMaxEscalations int
	ReclaimBacklogKey     string
	ReclaimDrainInterval  time.Duration
	ReclaimDrainBatch     int
}

// ServiceConfig returns the engine tunables.
func (c ComplianceConfig) ServiceConfig() service.Config {
	return service.Config{
		SignedURLTTL:     c.SignedURLTTL,
		MaxUploadBytes:   c.MaxUploadBytes,
		AllowedMimeTypes: c.AllowedMimeTypes,
		CommitTimeout:    c.CommitTimeout,
		CommitRetries:    c.CommitRetries,
	}
}

// FieldCatalog builds the required-field catalog. It fails on unknown field names.
func (c ComplianceConfig) FieldCatalog() (compliance.FieldCatalog, error) {
	return compliance.NewFieldCatalog(c.BankRequiredFields, c.CompanyRequiredFields)
}

func (c ComplianceConfig) ReclaimOptions() reclaim.Options {
	return reclaim.Options{
		Workers:     c.ReclaimWorkers,
		QueueSize:   c.ReclaimQueueSize,
		MaxAttempts: c.ReclaimMaxAttempts,
		Backoff:     c.ReclaimBackoff,
		MaxBackoff:  c.ReclaimMaxBackoff,
	}
}

func (c ComplianceConfig) LockOptions() lock.RedisOptions {
	return lock.RedisOptions{TTL: c.LockTTL, Retries: c.LockRetries, Backoff: c.LockBackoff}
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 15)
	v.SetDefault("MONGODB_DATABASE", "compliance")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("STORAGE_BACKEND", "minio")
	v.SetDefault("MINIO_BUCKET", "driver-documents")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("AUTH_REVIEWER_ROLE", "compliance-reviewer")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	v.SetDefault("COMPLIANCE_SIGNED_URL_TTL", 3600)
	v.SetDefault("COMPLIANCE_MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("COMPLIANCE_ALLOWED_MIME_TYPES", "image/png,image/jpeg,application/pdf")
	v.SetDefault("COMPLIANCE_BANK_REQUIRED_FIELDS", "accountHolderName,bankName,iban")
	v.SetDefault("COMPLIANCE_COMPANY_REQUIRED_FIELDS", "companyName,taxNumber,taxOffice,address")
	v.SetDefault("COMPLIANCE_LOCK_WAIT_MS", 5000)
	v.SetDefault("COMPLIANCE_LOCK_TTL_MS", 10000)
	v.SetDefault("COMPLIANCE_LOCK_RETRIES", 40)
	v.SetDefault("COMPLIANCE_LOCK_BACKOFF_MS", 25)
	v.SetDefault("COMPLIANCE_COMMIT_TIMEOUT_MS", 10000)
	v.SetDefault("COMPLIANCE_COMMIT_RETRIES", 3)
	v.SetDefault("COMPLIANCE_RECLAIM_WORKERS", 2)
	v.SetDefault("COMPLIANCE_RECLAIM_QUEUE_SIZE", 1024)
	v.SetDefault("COMPLIANCE_RECLAIM_MAX_ATTEMPTS", 5)
	v.SetDefault("COMPLIANCE_RECLAIM_BACKOFF_MS", 200)
	v.SetDefault("COMPLIANCE_RECLAIM_MAX_BACKOFF_MS", 6000)
	v.SetDefault("RECLAIM_MAX_ESCALATIONS", 10)
	v.SetDefault("RECLAIM_BACKLOG_KEY", "reclaim:dead")
	v.SetDefault("RECLAIM_DRAIN_INTERVAL", 60)
	v.SetDefault("RECLAIM_DRAIN_BATCH", 100)

	ms := func(key string) time.Duration { return time.Duration(v.GetInt(key)) * time.Millisecond }

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			Host:            v.GetString("SERVER_HOST"),
			Environment:     v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: time.Duration(v.GetInt("SERVER_SHUTDOWN_TIMEOUT")) * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
			MinIO: storage.MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
				Bucket:    v.GetString("MINIO_BUCKET"),
				Region:    v.GetString("MINIO_REGION"),
			},
		},
		Keycloak: KeycloakConfig{
			URL:               v.GetString("KEYCLOAK_URL"),
			Realm:             v.GetString("KEYCLOAK_REALM"),
			ClientID:          v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:      v.GetString("KEYCLOAK_CLIENT_SECRET"),
			SkipClientIDCheck: v.GetBool("KEYCLOAK_SKIP_CLIENT_ID_CHECK"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("JWT_SECRET"),
			AccessTokenTTL: time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
		},
		Auth: AuthConfig{
			Insecure:     v.GetBool("AUTH_INSECURE"),
			ReviewerRole: v.GetString("AUTH_REVIEWER_ROLE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Compliance: ComplianceConfig{
			SignedURLTTL:          time.Duration(v.GetInt("COMPLIANCE_SIGNED_URL_TTL")) * time.Second,
			MaxUploadBytes:        v.GetInt64("COMPLIANCE_MAX_UPLOAD_BYTES"),
			AllowedMimeTypes:      splitList(v.GetString("COMPLIANCE_ALLOWED_MIME_TYPES")),
			BankRequiredFields:    splitList(v.GetString("COMPLIANCE_BANK_REQUIRED_FIELDS")),
			CompanyRequiredFields: splitList(v.GetString("COMPLIANCE_COMPANY_REQUIRED_FIELDS")),
			LockWait:              ms("COMPLIANCE_LOCK_WAIT_MS"),
			LockTTL:               ms("COMPLIANCE_LOCK_TTL_MS"),
			LockRetries:           v.GetInt("COMPLIANCE_LOCK_RETRIES"),
			LockBackoff:           ms("COMPLIANCE_LOCK_BACKOFF_MS"),
			CommitTimeout:         ms("COMPLIANCE_COMMIT_TIMEOUT_MS"),
			CommitRetries:         v.GetInt("COMPLIANCE_COMMIT_RETRIES"),
			ReclaimWorkers:        v.GetInt("COMPLIANCE_RECLAIM_WORKERS"),
			ReclaimQueueSize:      v.GetInt("COMPLIANCE_RECLAIM_QUEUE_SIZE"),
			ReclaimMaxAttempts:    v.GetInt("COMPLIANCE_RECLAIM_MAX_ATTEMPTS"),
			ReclaimBackoff:        ms("COMPLIANCE_RECLAIM_BACKOFF_MS"),
			ReclaimMaxBackoff:     ms("COMPLIANCE_RECLAIM_MAX_BACKOFF_MS"),
			ReclaimMaxEscalations: v.GetInt("RECLAIM_MAX_ESCALATIONS"),
			ReclaimBacklogKey:     v.GetString("RECLAIM_BACKLOG_KEY"),
			ReclaimDrainInterval:  time.Duration(v.GetInt("RECLAIM_DRAIN_INTERVAL")) * time.Second,
			ReclaimDrainBatch:     v.GetInt("RECLAIM_DRAIN_BATCH"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.JWT.Secret == "" && cfg.Keycloak.URL == "" && !cfg.Auth.Insecure {
		logger.Warnf("no token verifier configured; set KEYCLOAK_URL or JWT_SECRET")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "minio":
		if err := c.Storage.MinIO.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if _, err := c.Compliance.FieldCatalog(); err != nil {
		return fmt.Errorf("compliance: %w", err)
	}
	if c.Compliance.MaxUploadBytes <= 0 {
		return fmt.Errorf("compliance: COMPLIANCE_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Auth.Insecure && c.Server.Environment == "production" {
		return fmt.Errorf("auth: AUTH_INSECURE is not allowed in production")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
