package service

import (
	"context"
	"fmt"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
	"github.com/roadpass/roadpass/backend/go-services/pkg/metrics"
)

// SetVerification records a reviewer decision on the current submission.
// A positive expectedRevision pins the decision to the submission the
// reviewer looked at; if the driver re-submitted since, the decision is
// rejected with ErrConcurrentModification instead of landing on unseen content.
// Paired types are decided per side; their joint requirement is only checked
// by the eligibility evaluator.
func (s *Service) SetVerification(ctx context.Context, driverID string, t compliance.ArtifactType, verified bool, expectedRevision int64) (compliance.Artifact, error) {
	if err := requireDriver(driverID); err != nil {
		return compliance.Artifact{}, err
	}
	t, err := s.artifactType(t)
	if err != nil {
		return compliance.Artifact{}, err
	}
	if !s.reg.IsVerifiable(t) {
		return compliance.Artifact{}, fmt.Errorf("%w: %s", compliance.ErrNotVerifiable, t)
	}

	status := compliance.StatusRejected
	if verified {
		status = compliance.StatusVerified
	}
	var out compliance.Artifact
	rec, err := s.mutate(ctx, "verify", driverID, func(rec *compliance.Record) error {
		a := rec.Artifact(t)
		if !a.Submitted() {
			return fmt.Errorf("%w: %s", compliance.ErrNotSubmitted, t)
		}
		if expectedRevision > 0 && a.Revision != expectedRevision {
			return fmt.Errorf("%w: %s is at revision %d, decision was for %d", compliance.ErrConcurrentModification, t, a.Revision, expectedRevision)
		}
		now := s.now()
		a.Status = status
		a.ReviewedAt = &now
		rec.Artifacts[t] = a
		out = a
		return nil
	})
	if err != nil {
		return compliance.Artifact{}, err
	}
	metrics.Verifications.WithLabelValues(string(t), string(status)).Inc()
	logger.Infow("artifact reviewed", "driver", driverID, "type", t, "status", status, "revision", out.Revision)
	s.evaluateAfter(ctx, "verify", rec)
	return out, nil
}
