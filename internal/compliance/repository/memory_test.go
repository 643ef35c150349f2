package repository

import (
	"context"
	"testing"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepo_SaveGetVersioning(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()

	_, err := r.Get(ctx, "d1")
	require.ErrorIs(t, err, ErrNotFound)

	rec := compliance.NewRecord("d1")
	rec.Artifacts[compliance.CriminalRecord] = compliance.Artifact{Type: compliance.CriminalRecord, Status: compliance.StatusSubmitted, StorageKey: "k1", Revision: 1}
	require.NoError(t, r.Save(ctx, rec))
	require.Equal(t, int64(1), rec.Version)
	require.False(t, rec.CreatedAt.IsZero())

	got, err := r.Get(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "k1", got.Artifact(compliance.CriminalRecord).StorageKey)

	// mutating the returned copy does not leak into the store
	got.Artifacts[compliance.CriminalRecord] = compliance.Artifact{Type: compliance.CriminalRecord, Status: compliance.StatusVerified, StorageKey: "k1"}
	again, err := r.Get(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, compliance.StatusSubmitted, again.Artifact(compliance.CriminalRecord).Status)

	// stale writer loses
	require.NoError(t, r.Save(ctx, got))
	require.ErrorIs(t, r.Save(ctx, again), ErrVersionConflict)

	// a second "first" save conflicts as well
	require.ErrorIs(t, r.Save(ctx, compliance.NewRecord("d1")), ErrVersionConflict)
}

func TestMemoryInfoStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryInfoStore[compliance.BankInformation]()

	_, err := s.Get(ctx, "d1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "d1"), ErrNotFound)

	require.NoError(t, s.Put(ctx, "d1", compliance.BankInformation{IBAN: "TR1", BankName: "A", BranchCode: "9"}))
	require.NoError(t, s.Put(ctx, "d1", compliance.BankInformation{IBAN: "TR2", BankName: "B"}))
	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "TR2", got.IBAN)
	require.Empty(t, got.BranchCode, "put overwrites, never merges")

	require.NoError(t, s.Delete(ctx, "d1"))
	_, err = s.Get(ctx, "d1")
	require.ErrorIs(t, err, ErrNotFound)
}
