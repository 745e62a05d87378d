// Package companies declares and implements persistence for tenants.
package companies

import (
	"context"

	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, company *models.Company) (*models.Company, error)
	GetByID(ctx context.Context, id int64) (*models.Company, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, limit, offset int64) ([]*models.Company, error)
}
