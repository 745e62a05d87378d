// Package services contains server-side business logic. Every operation
// that reads for consistency or writes state comes in two forms: an
// outward method that owns a transaction, and an inner ...Tx method that
// runs on a caller-supplied handle and never commits or rolls back. Outward
// methods compose inner ones over a single transaction.
package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/logging"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/repomanager"
)

// Deps carries what every service needs.
type Deps struct {
	DB     *sql.DB
	Repos  repomanager.RepositoryManager
	TxOpts *sql.TxOptions
	Logger logging.Logger
}

func (d Deps) withTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, d.DB, d.TxOpts, fn)
}

// repoError maps repository sentinels to application errors. what names
// the entity in client messages. Errors that already are *apperr.Error
// pass through unchanged.
func repoError(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		return apperr.Conflict(what + " already exists")
	case errors.Is(err, common.ErrorInvalidRef):
		return apperr.BadRequest("Referenced record does not exist")
	default:
		return apperr.Internal(what+" storage error", err)
	}
}
