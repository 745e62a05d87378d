package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/companies"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/payrolls"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a caller-supplied handle,
// so several repositories can share one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Companies(db dbx.DBTX) companies.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	Payrolls(db dbx.DBTX) payrolls.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
