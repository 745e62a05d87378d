package services

import (
	"context"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
)

// PermissionService stores permission masks. It performs no authorization;
// callers decide who may create a user.
type PermissionService struct {
	Deps
}

func NewPermissionService(d Deps) *PermissionService {
	return &PermissionService{Deps: d}
}

func (s *PermissionService) CreatePermission(ctx context.Context, p permissions.Permission) error {
	return s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.CreatePermissionTx(ctx, tx, p)
	})
}

func (s *PermissionService) CreatePermissionTx(ctx context.Context, tx dbx.DBTX, p permissions.Permission) error {
	return repoError(s.Repos.Permissions(tx).Create(ctx, &p), "Permission")
}

// CreateFromRole stores the mask derived from role for userID.
func (s *PermissionService) CreateFromRole(ctx context.Context, userID int64, role permissions.Role) (*permissions.Permission, error) {
	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*permissions.Permission, error) {
		return s.CreateFromRoleTx(ctx, tx, userID, role)
	})
}

func (s *PermissionService) CreateFromRoleTx(ctx context.Context, tx dbx.DBTX, userID int64, role permissions.Role) (*permissions.Permission, error) {
	if !role.Valid() {
		return nil, apperr.BadRequest("Invalid role: $1", string(role))
	}
	p := permissions.FromRole(userID, role)
	if err := s.CreatePermissionTx(ctx, tx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PermissionService) GetPermissionTx(ctx context.Context, tx dbx.DBTX, userID int64) (*permissions.Permission, error) {
	p, err := s.Repos.Permissions(tx).GetByUserID(ctx, userID)
	if err != nil {
		return nil, repoError(err, "Permission")
	}
	return p, nil
}
