package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/roadpass/roadpass/backend/go-services/pkg/metrics"
)

// Upload is one file submitted by a driver.
type Upload struct {
	Content      io.Reader
	Size         int64
	MimeType     string
	OriginalName string
}

func (s *Service) validateUpload(up Upload) error {
	if up.Content == nil || up.Size <= 0 {
		return fmt.Errorf("%w: file is required", compliance.ErrValidation)
	}
	if up.Size > s.cfg.MaxUploadBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", compliance.ErrValidation, s.cfg.MaxUploadBytes)
	}
	if !s.allowed[normalizeMime(up.MimeType)] {
		return fmt.Errorf("%w: unsupported content type %q", compliance.ErrValidation, up.MimeType)
	}
	return nil
}

// Submit stores a new file for the artifact and makes it current.
//
// The blob is uploaded to a fresh key before the record is touched, so a
// failed upload leaves the previous submission in place. The commit runs
// detached from the caller's cancellation; if it fails anyway the new blob is
// deleted. The superseded blob, if any, is handed to the reclaimer.
func (s *Service) Submit(ctx context.Context, driverID string, t compliance.ArtifactType, up Upload) (compliance.Artifact, error) {
	if err := requireDriver(driverID); err != nil {
		return compliance.Artifact{}, err
	}
	t, err := s.artifactType(t)
	if err != nil {
		return compliance.Artifact{}, err
	}
	if err := s.validateUpload(up); err != nil {
		metrics.Submissions.WithLabelValues(string(t), "invalid").Inc()
		return compliance.Artifact{}, err
	}

	key := s.newKey(driverID, t, up.OriginalName)
	mimeType := normalizeMime(up.MimeType)
	if err := s.store.Put(ctx, key, up.Content, up.Size, mimeType); err != nil {
		metrics.Submissions.WithLabelValues(string(t), "upload_failed").Inc()
		logger.Errorw("artifact upload failed", "driver", driverID, "type", t, "key", key, "err", err)
		// a partial object may exist under the fresh key; nothing references it
		s.reclaimer.Enqueue(key)
		return compliance.Artifact{}, fmt.Errorf("%w: %v", compliance.ErrStorageWriteFailed, err)
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CommitTimeout)
	defer cancel()

	var previous string
	var out compliance.Artifact
	committed := func(stored *compliance.Record) bool { return stored.Artifact(t).StorageKey == key }
	rec, err := s.mutateChecked(cctx, "submit", driverID, func(rec *compliance.Record) error {
		old := rec.Artifact(t)
		previous = ""
		if old.Submitted() {
			previous = old.StorageKey
		}
		now := s.now()
		out = compliance.Artifact{
			Type:         t,
			Status:       compliance.StatusSubmitted,
			StorageKey:   key,
			MimeType:     mimeType,
			OriginalName: up.OriginalName,
			SizeBytes:    up.Size,
			Revision:     old.Revision + 1,
			SubmittedAt:  &now,
		}
		rec.Artifacts[t] = out
		return nil
	}, committed)
	if err != nil {
		metrics.Submissions.WithLabelValues(string(t), "commit_failed").Inc()
		if errors.Is(err, errCommitUnknown) {
			// the record may reference key; deleting it could leave a dangling reference
			logger.Errorw("ALERT artifact commit outcome unknown, keeping upload", "driver", driverID, "type", t, "key", key, "err", err)
			return compliance.Artifact{}, err
		}
		logger.Errorw("artifact commit failed, rolling back upload", "driver", driverID, "type", t, "key", key, "err", err)
		if derr := s.store.Delete(cctx, key); derr != nil {
			logger.Warnw("rollback delete failed, scheduling reclaim", "key", key, "err", derr)
			s.reclaimer.Enqueue(key)
		}
		return compliance.Artifact{}, err
	}

	if previous != "" && previous != key {
		s.reclaimer.Enqueue(previous)
	}
	metrics.Submissions.WithLabelValues(string(t), "ok").Inc()
	logger.Infow("artifact submitted", "driver", driverID, "type", t, "revision", out.Revision, "replaced", previous != "")
	s.evaluateAfter(cctx, "submit", rec)

	out.URL = s.sign(cctx, key)
	return out, nil
}

// Clear marks the artifact missing and schedules its blob for reclamation.
// It returns the key that was referenced.
func (s *Service) Clear(ctx context.Context, driverID string, t compliance.ArtifactType) (string, error) {
	if err := requireDriver(driverID); err != nil {
		return "", err
	}
	t, err := s.artifactType(t)
	if err != nil {
		return "", err
	}
	var previous string
	rec, err := s.mutate(ctx, "clear", driverID, func(rec *compliance.Record) error {
		a := rec.Artifact(t)
		if !a.Submitted() {
			return fmt.Errorf("%w: artifact %s", compliance.ErrNotFound, t)
		}
		previous = a.StorageKey
		rec.Artifacts[t] = compliance.Artifact{Type: t, Status: compliance.StatusMissing, Revision: a.Revision}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.reclaimer.Enqueue(previous)
	logger.Infow("artifact cleared", "driver", driverID, "type", t)
	s.evaluateAfter(ctx, "clear", rec)
	return previous, nil
}

func (s *Service) sign(ctx context.Context, key string) string {
	u, err := s.store.SignedURL(ctx, key, s.cfg.SignedURLTTL)
	if err != nil {
		logger.Warnw("signing artifact url failed", "key", key, "err", err)
		return ""
	}
	return u
}
