// Package users declares and implements persistence for user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID. A duplicate username yields
	// common.ErrorAlreadyExists, an unknown company common.ErrorInvalidRef.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// GetCompanyID returns the company the user belongs to.
	GetCompanyID(ctx context.Context, userID int64) (int64, error)
	Count(ctx context.Context) (int64, error)
}
