// Package payrolls persists payroll document metadata. The document bytes
// live in object storage under Payroll.ObjectKey.
package payrolls

import (
	"context"

	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts p and fills ID and UploadedAt. A reused object key yields
	// common.ErrorAlreadyExists, an unknown owner common.ErrorInvalidRef.
	Create(ctx context.Context, p *models.Payroll) (*models.Payroll, error)
	GetByID(ctx context.Context, id int64) (*models.Payroll, error)
	// GetOwnerID returns the user the payroll belongs to.
	GetOwnerID(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, filter models.PayrollFilter) ([]*models.Payroll, error)
}
