// Package service implements the compliance engine: the replace transaction
// for artifact uploads, verification decisions, status reads and the bank and
// company pass-through.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/lock"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/repository"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/roadpass/roadpass/backend/go-services/pkg/metrics"
)

// ArtifactStore is the blob store holding submitted files.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Reclaimer schedules deletion of a blob that is no longer referenced.
type Reclaimer interface {
	Enqueue(key string)
}

// Config holds the tunables of the engine.
type Config struct {
	SignedURLTTL     time.Duration
	MaxUploadBytes   int64
	AllowedMimeTypes []string
	CommitTimeout    time.Duration
	CommitRetries    int
	RetryBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.SignedURLTTL <= 0 {
		c.SignedURLTTL = time.Hour
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if len(c.AllowedMimeTypes) == 0 {
		c.AllowedMimeTypes = []string{"image/png", "image/jpeg", "application/pdf"}
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 10 * time.Second
	}
	if c.CommitRetries <= 0 {
		c.CommitRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 20 * time.Millisecond
	}
	return c
}

// Deps wires the engine to its collaborators.
type Deps struct {
	Registry  *compliance.Registry
	Catalog   compliance.FieldCatalog
	Records   repository.RecordRepository
	Banks     repository.InfoStore[compliance.BankInformation]
	Companies repository.InfoStore[compliance.CompanyInformation]
	Store     ArtifactStore
	Locker    lock.Locker
	Reclaimer Reclaimer
	Config    Config

	// optional overrides, used by tests
	Now    func() time.Time
	NewKey func(driverID string, t compliance.ArtifactType, originalName string) string
}

// Service is safe for concurrent use. Mutations of one driver's record are
// serialized through the locker; different drivers never contend.
type Service struct {
	reg       *compliance.Registry
	catalog   compliance.FieldCatalog
	records   repository.RecordRepository
	banks     repository.InfoStore[compliance.BankInformation]
	companies repository.InfoStore[compliance.CompanyInformation]
	store     ArtifactStore
	locker    lock.Locker
	reclaimer Reclaimer
	cfg       Config
	allowed   map[string]bool
	now       func() time.Time
	newKey    func(string, compliance.ArtifactType, string) string
}

func New(d Deps) *Service {
	s := &Service{
		reg:       d.Registry,
		catalog:   d.Catalog,
		records:   d.Records,
		banks:     d.Banks,
		companies: d.Companies,
		store:     d.Store,
		locker:    d.Locker,
		reclaimer: d.Reclaimer,
		cfg:       d.Config.withDefaults(),
		now:       d.Now,
		newKey:    d.NewKey,
	}
	if s.reg == nil {
		s.reg = compliance.DefaultRegistry()
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex(5 * time.Second)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newKey == nil {
		s.newKey = NewStorageKey
	}
	s.allowed = make(map[string]bool, len(s.cfg.AllowedMimeTypes))
	for _, m := range s.cfg.AllowedMimeTypes {
		s.allowed[normalizeMime(m)] = true
	}
	return s
}

// Registry returns the artifact catalog the service enforces.
func (s *Service) Registry() *compliance.Registry { return s.reg }

// mutate loads the driver's record under the driver lock, applies fn and
// saves it. Version conflicts are retried with bounded backoff. fn may be
// called more than once and must not have side effects outside rec.
func (s *Service) mutate(ctx context.Context, op, driverID string, fn func(rec *compliance.Record) error) (*compliance.Record, error) {
	return s.mutateChecked(ctx, op, driverID, fn, nil)
}

// errCommitUnknown marks a save that failed in a way that may still have been
// applied, and whose outcome could not be read back.
var errCommitUnknown = errors.New("commit outcome unknown")

// mutateChecked is mutate for callers that must know whether a failed save
// landed anyway. When Save fails with anything but a version conflict, the
// record is read back under the same lock; if applied reports the stored
// record carries the change, the mutation is treated as committed.
func (s *Service) mutateChecked(ctx context.Context, op, driverID string, fn func(rec *compliance.Record) error, applied func(stored *compliance.Record) bool) (*compliance.Record, error) {
	unlock, err := s.locker.Lock(ctx, driverID)
	if err != nil {
		if errors.Is(err, lock.ErrContention) {
			metrics.ConcurrentModifications.WithLabelValues(op).Inc()
			return nil, fmt.Errorf("%w: driver %s is busy", compliance.ErrConcurrentModification, driverID)
		}
		return nil, fmt.Errorf("%w: lock driver %s: %v", compliance.ErrUnavailable, driverID, err)
	}
	defer unlock()

	backoff := s.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		rec, err := s.records.Get(ctx, driverID)
		if errors.Is(err, repository.ErrNotFound) {
			rec = compliance.NewRecord(driverID)
		} else if err != nil {
			return nil, fmt.Errorf("%w: load record: %v", compliance.ErrUnavailable, err)
		}
		if err := fn(rec); err != nil {
			return nil, err
		}
		err = s.records.Save(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			if applied == nil {
				return nil, fmt.Errorf("%w: save record: %v", compliance.ErrUnavailable, err)
			}
			return s.readBack(ctx, op, driverID, err, applied)
		}
		metrics.ConcurrentModifications.WithLabelValues(op).Inc()
		if attempt >= s.cfg.CommitRetries {
			return nil, fmt.Errorf("%w: driver %s record changed %d times during %s", compliance.ErrConcurrentModification, driverID, attempt+1, op)
		}
		logger.Debugw("record version conflict, retrying", "driver", driverID, "op", op, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", compliance.ErrConcurrentModification, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (s *Service) readBack(ctx context.Context, op, driverID string, saveErr error, applied func(*compliance.Record) bool) (*compliance.Record, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CommitTimeout)
	defer cancel()
	stored, err := s.records.Get(rctx, driverID)
	switch {
	case err == nil && applied(stored):
		logger.Warnw("save reported an error but was applied", "driver", driverID, "op", op, "err", saveErr)
		return stored, nil
	case err == nil, errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%w: save record: %v", compliance.ErrUnavailable, saveErr)
	default:
		return nil, fmt.Errorf("%w: %w: save record: %v; read back: %v", compliance.ErrUnavailable, errCommitUnknown, saveErr, err)
	}
}

func (s *Service) artifactType(raw compliance.ArtifactType) (compliance.ArtifactType, error) {
	return s.reg.Parse(string(raw))
}

func requireDriver(driverID string) error {
	if driverID == "" {
		return fmt.Errorf("%w: driver id is required", compliance.ErrValidation)
	}
	return nil
}

// evaluateAfter logs the verdict produced by a mutation. Failures only cost
// the log line; the verdict is recomputed on every read anyway.
func (s *Service) evaluateAfter(ctx context.Context, op string, rec *compliance.Record) {
	snap, err := s.snapshot(ctx, rec)
	if err != nil {
		logger.Warnw("post-mutation eligibility skipped", "driver", rec.DriverID, "op", op, "err", err)
		return
	}
	v := compliance.Evaluate(s.reg, snap)
	metrics.EligibilityEvaluations.WithLabelValues(fmt.Sprint(v.Eligible)).Inc()
	logger.Infow("eligibility evaluated", "driver", rec.DriverID, "op", op, "eligible", v.Eligible, "unmet", len(v.UnmetRequirements))
}

func (s *Service) snapshot(ctx context.Context, rec *compliance.Record) (compliance.Snapshot, error) {
	snap := compliance.Snapshot{Record: rec}
	if rec == nil {
		return snap, nil
	}
	bank, err := s.banks.Get(ctx, rec.DriverID)
	if snap.HasBank, err = present(bank, err); err != nil {
		return snap, err
	}
	company, err := s.companies.Get(ctx, rec.DriverID)
	if snap.HasCompany, err = present(company, err); err != nil {
		return snap, err
	}
	return snap, nil
}

func present[T any](v *T, err error) (bool, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != nil, nil
}
