package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/repository"
	"github.com/roadpass/roadpass/backend/go-services/pkg/logger"
)

// UpsertBank replaces the driver's bank information. Every field in the
// required-field catalog must be populated.
func (s *Service) UpsertBank(ctx context.Context, driverID string, b compliance.BankInformation) (compliance.BankInformation, error) {
	if err := requireDriver(driverID); err != nil {
		return b, err
	}
	if err := s.catalog.ValidateBank(b); err != nil {
		return b, err
	}
	b.UpdatedAt = s.now()
	if err := s.banks.Put(ctx, driverID, b); err != nil {
		return b, fmt.Errorf("%w: save bank information: %v", compliance.ErrUnavailable, err)
	}
	logger.Infow("bank information saved", "driver", driverID)
	return b, nil
}

func (s *Service) GetBank(ctx context.Context, driverID string) (*compliance.BankInformation, error) {
	if err := requireDriver(driverID); err != nil {
		return nil, err
	}
	b, err := s.banks.Get(ctx, driverID)
	return b, translateInfoErr("bank information", err)
}

func (s *Service) DeleteBank(ctx context.Context, driverID string) error {
	if err := requireDriver(driverID); err != nil {
		return err
	}
	if err := translateInfoErr("bank information", s.banks.Delete(ctx, driverID)); err != nil {
		return err
	}
	logger.Infow("bank information deleted", "driver", driverID)
	return nil
}

// UpsertCompany replaces the driver's company information.
func (s *Service) UpsertCompany(ctx context.Context, driverID string, c compliance.CompanyInformation) (compliance.CompanyInformation, error) {
	if err := requireDriver(driverID); err != nil {
		return c, err
	}
	if err := s.catalog.ValidateCompany(c); err != nil {
		return c, err
	}
	c.UpdatedAt = s.now()
	if err := s.companies.Put(ctx, driverID, c); err != nil {
		return c, fmt.Errorf("%w: save company information: %v", compliance.ErrUnavailable, err)
	}
	logger.Infow("company information saved", "driver", driverID)
	return c, nil
}

func (s *Service) GetCompany(ctx context.Context, driverID string) (*compliance.CompanyInformation, error) {
	if err := requireDriver(driverID); err != nil {
		return nil, err
	}
	c, err := s.companies.Get(ctx, driverID)
	return c, translateInfoErr("company information", err)
}

func (s *Service) DeleteCompany(ctx context.Context, driverID string) error {
	if err := requireDriver(driverID); err != nil {
		return err
	}
	if err := translateInfoErr("company information", s.companies.Delete(ctx, driverID)); err != nil {
		return err
	}
	logger.Infow("company information deleted", "driver", driverID)
	return nil
}

func translateInfoErr(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", compliance.ErrNotFound, what)
	default:
		return fmt.Errorf("%w: %s: %v", compliance.ErrUnavailable, what, err)
	}
}
