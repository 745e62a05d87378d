package services

import (
	"context"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/authz"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/validation"
)

type CompanyService struct {
	Deps
	authz    *authz.Service
	validate *validation.Validator
}

func NewCompanyService(d Deps, az *authz.Service, v *validation.Validator) *CompanyService {
	return &CompanyService{Deps: d, authz: az, validate: v}
}

func (s *CompanyService) CreateCompany(ctx context.Context, actorID int64, in models.CreateCompanyInput) (*models.CompanyView, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.CompanyView, error) {
		return s.CreateCompanyTx(ctx, tx, actorID, in)
	})
}

func (s *CompanyService) CreateCompanyTx(ctx context.Context, tx dbx.DBTX, actorID int64, in models.CreateCompanyInput) (*models.CompanyView, error) {
	if err := s.authz.CanCreateCompany(ctx, tx, actorID); err != nil {
		return nil, err
	}
	c, err := s.CreateCompanyUncheckedTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	s.Logger.Info(ctx, "company created", "company_id", c.ID, "actor_id", actorID)
	return lo.ToPtr(c.View()), nil
}

// CreateCompanyUncheckedTx inserts without an authorization check. It is
// used by bootstrap, where no actor exists yet.
func (s *CompanyService) CreateCompanyUncheckedTx(ctx context.Context, tx dbx.DBTX, in models.CreateCompanyInput) (*models.Company, error) {
	c, err := s.Repos.Companies(tx).Create(ctx, &models.Company{Name: in.Name})
	if err != nil {
		return nil, repoError(err, "Company")
	}
	return c, nil
}

func (s *CompanyService) GetCompany(ctx context.Context, actorID, companyID int64) (*models.CompanyView, error) {
	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.CompanyView, error) {
		return s.GetCompanyTx(ctx, tx, actorID, companyID)
	})
}

func (s *CompanyService) GetCompanyTx(ctx context.Context, tx dbx.DBTX, actorID, companyID int64) (*models.CompanyView, error) {
	if err := s.authz.CanRetrieveCompany(ctx, tx, actorID, companyID); err != nil {
		return nil, err
	}
	c, err := s.Repos.Companies(tx).GetByID(ctx, companyID)
	if err != nil {
		return nil, repoError(err, "Company")
	}
	return lo.ToPtr(c.View()), nil
}

func (s *CompanyService) ListCompanies(ctx context.Context, actorID int64, f models.CompanyFilter) ([]models.CompanyView, error) {
	if err := s.validate.Struct(f); err != nil {
		return nil, err
	}
	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) ([]models.CompanyView, error) {
		return s.ListCompaniesTx(ctx, tx, actorID, f)
	})
}

func (s *CompanyService) ListCompaniesTx(ctx context.Context, tx dbx.DBTX, actorID int64, f models.CompanyFilter) ([]models.CompanyView, error) {
	if err := s.authz.CanListCompanies(ctx, tx, actorID); err != nil {
		return nil, err
	}
	list, err := s.Repos.Companies(tx).List(ctx, f.Limit, f.Offset)
	if err != nil {
		return nil, repoError(err, "Company")
	}
	return lo.Map(list, func(c *models.Company, _ int) models.CompanyView { return c.View() }), nil
}

func (s *CompanyService) CompanyExistsTx(ctx context.Context, tx dbx.DBTX, companyID int64) (bool, error) {
	ok, err := s.Repos.Companies(tx).Exists(ctx, companyID)
	if err != nil {
		return false, repoError(err, "Company")
	}
	return ok, nil
}
