// Package permissions persists one permission mask row per user.
package permissions

import (
	"context"

	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
)

type Repository interface {
	Create(ctx context.Context, p *permissions.Permission) error
	// GetByUserID returns common.ErrorNotFound when the user has no row.
	GetByUserID(ctx context.Context, userID int64) (*permissions.Permission, error)
}
