package companies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, company *models.Company) (*models.Company, error) {
	query := `INSERT INTO companies (name) VALUES ($1) RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, company.Name).Scan(&company.ID); err != nil {
		return nil, dbx.ConstraintError(err)
	}
	return company, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	query := `SELECT id, name FROM companies WHERE id = $1`

	c := &models.Company{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// List returns one page of companies ordered by id.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int64) ([]*models.Company, error) {
	query := `SELECT id, name FROM companies ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select companies: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Company, 0, limit)
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
