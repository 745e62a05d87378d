package dbx

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConstraintError(t *testing.T) {
	unique := ConstraintError(&pgconn.PgError{Code: "23505", ConstraintName: "payrolls_object_key_key"})
	assert.ErrorIs(t, unique, common.ErrorAlreadyExists)
	assert.Contains(t, unique.Error(), "payrolls_object_key_key")

	fk := ConstraintError(&pgconn.PgError{Code: "23503", ConstraintName: "users_company_id_fkey"})
	assert.ErrorIs(t, fk, common.ErrorInvalidRef)

	other := ConstraintError(errors.New("conn reset"))
	assert.EqualError(t, other, "db error: conn reset")
	assert.NotErrorIs(t, other, common.ErrorAlreadyExists)
}
