package repository

import (
	"context"
	"errors"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record version conflict")
)

// RecordRepository persists compliance records. Save is a conditional write:
// rec.Version must match the stored version (0 for a record that does not
// exist yet). On success rec.Version is advanced.
type RecordRepository interface {
	Get(ctx context.Context, driverID string) (*compliance.Record, error)
	Save(ctx context.Context, rec *compliance.Record) error
}

// InfoStore is a key-value store for one informational record per driver.
// Put fully overwrites any previous value.
type InfoStore[T any] interface {
	Get(ctx context.Context, driverID string) (*T, error)
	Put(ctx context.Context, driverID string, v T) error
	Delete(ctx context.Context, driverID string) error
}
