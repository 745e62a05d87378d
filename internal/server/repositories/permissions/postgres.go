package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Masks are stored as SMALLINT; the high bit is never set.
func (r *PostgresRepository) Create(ctx context.Context, p *permissions.Permission) error {
	query := `
		INSERT INTO permissions (user_id, users, payroll, company)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, p.UserID, int16(p.User), int16(p.Payroll), int16(p.Company)); err != nil {
		return dbx.ConstraintError(err)
	}
	return nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID int64) (*permissions.Permission, error) {
	query := `
		SELECT users, payroll, company
		FROM permissions
		WHERE user_id = $1
	`
	var u, p, c int16
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&u, &p, &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &permissions.Permission{
		UserID:  userID,
		User:    permissions.Mask(uint16(u)),
		Payroll: permissions.Mask(uint16(p)),
		Company: permissions.Mask(uint16(c)),
	}, nil
}
