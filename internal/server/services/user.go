package services

import (
	"context"
	"strconv"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/authz"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

// UserService manages accounts. Creating a user also creates its
// permission row in the same transaction.
type UserService struct {
	Deps
	authz     *authz.Service
	companies *CompanyService
	perms     *PermissionService
}

func NewUserService(d Deps, az *authz.Service, companies *CompanyService, perms *PermissionService) *UserService {
	return &UserService{Deps: d, authz: az, companies: companies, perms: perms}
}

// CreateUser inserts the user and its permissions atomically. in must
// already be validated and the password hashed.
func (s *UserService) CreateUser(ctx context.Context, actorID int64, in models.CreateUserInput, passwordHash string) (*models.UserView, error) {
	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.UserView, error) {
		return s.CreateUserTx(ctx, tx, actorID, in, passwordHash)
	})
}

func (s *UserService) CreateUserTx(ctx context.Context, tx dbx.DBTX, actorID int64, in models.CreateUserInput, passwordHash string) (*models.UserView, error) {
	if err := s.authz.CanCreateUser(ctx, tx, actorID, in.CompanyID); err != nil {
		return nil, err
	}

	ok, err := s.companies.CompanyExistsTx(ctx, tx, in.CompanyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.BadRequest("Company does not exist: $1", strconv.FormatInt(in.CompanyID, 10))
	}

	taken, err := s.Repos.Users(tx).ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, repoError(err, "User")
	}
	if taken {
		return nil, apperr.Conflict("Username already taken: $1", in.Username)
	}

	u, err := s.InsertUserTx(ctx, tx, models.NewUser(in, passwordHash))
	if err != nil {
		return nil, err
	}
	if _, err := s.perms.CreateFromRoleTx(ctx, tx, u.ID, in.Role); err != nil {
		return nil, err
	}

	s.Logger.Info(ctx, "user created", "user_id", u.ID, "company_id", u.CompanyID, "role", string(in.Role), "actor_id", actorID)
	return lo.ToPtr(u.View()), nil
}

// InsertUserTx stores u without authorization or permission rows.
func (s *UserService) InsertUserTx(ctx context.Context, tx dbx.DBTX, u *models.User) (*models.User, error) {
	out, err := s.Repos.Users(tx).Create(ctx, u)
	if err != nil {
		return nil, repoError(err, "User")
	}
	return out, nil
}

func (s *UserService) GetUser(ctx context.Context, actorID, userID int64) (*models.UserView, error) {
	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.UserView, error) {
		return s.GetUserTx(ctx, tx, actorID, userID)
	})
}

func (s *UserService) GetUserTx(ctx context.Context, tx dbx.DBTX, actorID, userID int64) (*models.UserView, error) {
	if err := s.authz.CanRetrieveUser(ctx, tx, actorID, userID); err != nil {
		return nil, err
	}
	u, err := s.Repos.Users(tx).GetByID(ctx, userID)
	if err != nil {
		return nil, repoError(err, "User")
	}
	return lo.ToPtr(u.View()), nil
}

// CompanyOfUserTx returns the company userID belongs to.
func (s *UserService) CompanyOfUserTx(ctx context.Context, tx dbx.DBTX, userID int64) (int64, error) {
	id, err := s.Repos.Users(tx).GetCompanyID(ctx, userID)
	if err != nil {
		return 0, repoError(err, "User")
	}
	return id, nil
}
