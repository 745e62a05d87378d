package dbx

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes we translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// ConstraintError translates constraint violations reported by PostgreSQL
// into common.ErrorAlreadyExists or common.ErrorInvalidRef. Anything else is
// wrapped as a generic db error.
func ConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", common.ErrorInvalidRef, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("db error: %w", err)
}
