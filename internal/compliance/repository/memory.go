package repository

import (
	"context"
	"sync"
	"time"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
)

// MemoryRepo is an in-memory RecordRepository used for local runs and unit tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*compliance.Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*compliance.Record)}
}

func (m *MemoryRepo) Get(ctx context.Context, driverID string) (*compliance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.store[driverID]; ok {
		return r.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) Save(ctx context.Context, rec *compliance.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored int64
	if cur, ok := m.store[rec.DriverID]; ok {
		stored = cur.Version
	}
	if stored != rec.Version {
		return ErrVersionConflict
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Version++
	m.store[rec.DriverID] = rec.Clone()
	return nil
}

// MemoryInfoStore is an in-memory InfoStore.
type MemoryInfoStore[T any] struct {
	mu    sync.RWMutex
	store map[string]T
}

func NewMemoryInfoStore[T any]() *MemoryInfoStore[T] {
	return &MemoryInfoStore[T]{store: make(map[string]T)}
}

func (m *MemoryInfoStore[T]) Get(ctx context.Context, driverID string) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.store[driverID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *MemoryInfoStore[T]) Put(ctx context.Context, driverID string, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[driverID] = v
	return nil
}

func (m *MemoryInfoStore[T]) Delete(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[driverID]; !ok {
		return ErrNotFound
	}
	delete(m.store, driverID)
	return nil
}
