package payrolls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

// PostgresRepository implements payroll storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Payroll) (*models.Payroll, error) {
	query := `
		INSERT INTO payrolls (period, user_id, object_key, filename, content_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, uploaded_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.Period, p.UserID, p.ObjectKey, p.Filename, p.ContentType, p.FileSize).Scan(&p.ID, &p.UploadedAt)
	if err != nil {
		return nil, dbx.ConstraintError(err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Payroll, error) {
	query := `
		SELECT id, period, user_id, object_key, filename, content_type, file_size, uploaded_at
		FROM payrolls
		WHERE id = $1
	`
	p := &models.Payroll{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Period, &p.UserID, &p.ObjectKey, &p.Filename, &p.ContentType, &p.FileSize, &p.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetOwnerID(ctx context.Context, id int64) (int64, error) {
	query := `SELECT user_id FROM payrolls WHERE id = $1`

	var userID int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return userID, nil
}

// List returns payrolls matching every non-nil filter field, newest period first.
func (r *PostgresRepository) List(ctx context.Context, filter models.PayrollFilter) ([]*models.Payroll, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Period != nil {
		args = append(args, *filter.Period)
		where = append(where, fmt.Sprintf("period = $%d", len(args)))
	}

	query := `SELECT id, period, user_id, object_key, filename, content_type, file_size, uploaded_at FROM payrolls`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period DESC, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select payrolls: %w", err)
	}
	defer rows.Close()

	var result []*models.Payroll
	for rows.Next() {
		var p models.Payroll
		if err := rows.Scan(&p.ID, &p.Period, &p.UserID, &p.ObjectKey, &p.Filename, &p.ContentType, &p.FileSize, &p.UploadedAt); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
