package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/repository"
	"github.com/roadpass/roadpass/backend/go-services/pkg/metrics"
)

// GetStatus returns every artifact in registry order, the informational
// records and a freshly computed verdict. Reading never creates a record.
func (s *Service) GetStatus(ctx context.Context, driverID string) (*compliance.ComplianceStatus, error) {
	if err := requireDriver(driverID); err != nil {
		return nil, err
	}
	rec, err := s.records.Get(ctx, driverID)
	if errors.Is(err, repository.ErrNotFound) {
		rec = nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: load record: %v", compliance.ErrUnavailable, err)
	}

	bank, err := s.banks.Get(ctx, driverID)
	hasBank, err := present(bank, err)
	if err != nil {
		return nil, fmt.Errorf("%w: load bank information: %v", compliance.ErrUnavailable, err)
	}
	company, err := s.companies.Get(ctx, driverID)
	hasCompany, err := present(company, err)
	if err != nil {
		return nil, fmt.Errorf("%w: load company information: %v", compliance.ErrUnavailable, err)
	}

	out := &compliance.ComplianceStatus{DriverID: driverID}
	for _, t := range s.reg.Types() {
		a := rec.Artifact(t)
		if a.Submitted() {
			a.URL = s.sign(ctx, a.StorageKey)
		} else {
			a = compliance.Artifact{Type: t, Status: compliance.StatusMissing, Revision: a.Revision}
		}
		out.Artifacts = append(out.Artifacts, a)
	}
	if hasBank {
		out.Bank = bank
	}
	if hasCompany {
		out.Company = company
	}
	out.Eligibility = compliance.Evaluate(s.reg, compliance.Snapshot{Record: rec, HasBank: hasBank, HasCompany: hasCompany})
	metrics.EligibilityEvaluations.WithLabelValues(fmt.Sprint(out.Eligibility.Eligible)).Inc()
	return out, nil
}

// ArtifactURL returns a fresh presigned URL for the current submission.
func (s *Service) ArtifactURL(ctx context.Context, driverID string, t compliance.ArtifactType) (string, error) {
	if err := requireDriver(driverID); err != nil {
		return "", err
	}
	t, err := s.artifactType(t)
	if err != nil {
		return "", err
	}
	rec, err := s.records.Get(ctx, driverID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%w: load record: %v", compliance.ErrUnavailable, err)
	}
	a := rec.Artifact(t)
	if !a.Submitted() {
		return "", fmt.Errorf("%w: artifact %s", compliance.ErrNotFound, t)
	}
	u, err := s.store.SignedURL(ctx, a.StorageKey, s.cfg.SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("%w: sign url: %v", compliance.ErrUnavailable, err)
	}
	return u, nil
}
