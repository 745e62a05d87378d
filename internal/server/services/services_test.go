package services

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/logging"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/authz"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/config"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/repotest"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/storage"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/validation"
)

const testMaxFileSize = 1 << 20

// --- helpers ---

type env struct {
	db   *sql.DB
	mock sqlmock.Sqlmock
	rm   *repotest.Manager
	fs   afero.Fs

	store *flakyStore

	perms     *PermissionService
	companies *CompanyService
	users     *UserService
	payrolls  *PayrollService
	auth      *AuthService

	acme, beta int64
	super      int64
	acmeAdmin  int64
	acmeUser   int64
	acmeUser2  int64
	betaAdmin  int64
	betaUser   int64
}

// newBareEnv wires every service over an empty repository manager.
func newBareEnv(t *testing.T) *env {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{db: db, mock: mock, rm: repotest.New(), fs: afero.NewMemMapFs()}
	require.NoError(t, e.fs.MkdirAll("/tmp", 0o755))
	e.store = &flakyStore{MemoryStore: storage.NewMemoryStore(e.fs)}

	d := Deps{DB: db, Repos: e.rm, Logger: logging.Nop()}
	az := authz.NewService(e.rm, logging.Nop())
	v := validation.New()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}

	e.perms = NewPermissionService(d)
	e.companies = NewCompanyService(d, az, v)
	e.users = NewUserService(d, az, e.companies, e.perms)
	e.payrolls = NewPayrollService(d, az, v, e.fs, e.store, testMaxFileSize)
	e.auth = NewAuthService(d, e.users, e.companies, e.perms, v, cfg)
	return e
}

// newEnv seeds two companies with one user per role.
func newEnv(t *testing.T) *env {
	t.Helper()
	e := newBareEnv(t)

	e.acme = e.rm.AddCompany("Acme")
	e.beta = e.rm.AddCompany("Beta")
	e.super = e.rm.AddUser(e.acme, "root", permissions.RoleSuperAdmin)
	e.acmeAdmin = e.rm.AddUser(e.acme, "alice", permissions.RoleAdmin)
	e.acmeUser = e.rm.AddUser(e.acme, "bob", permissions.RoleUser)
	e.acmeUser2 = e.rm.AddUser(e.acme, "carol", permissions.RoleUser)
	e.betaAdmin = e.rm.AddUser(e.beta, "erin", permissions.RoleAdmin)
	e.betaUser = e.rm.AddUser(e.beta, "dave", permissions.RoleUser)
	return e
}

func (e *env) expectCommit(n int) {
	for i := 0; i < n; i++ {
		e.mock.ExpectBegin()
		e.mock.ExpectCommit()
	}
}

func (e *env) expectRollback() {
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()
}

func (e *env) verify(t *testing.T) {
	t.Helper()
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func assertKind(t *testing.T, want apperr.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, apperr.KindOf(err), "error: %v", err)
}

var errBoom = errors.New("boom")

// --- repoError ---

func TestRepoError(t *testing.T) {
	assert.NoError(t, repoError(nil, "User"))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(repoError(common.ErrorNotFound, "User")))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(repoError(common.ErrorAlreadyExists, "User")))
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(repoError(common.ErrorInvalidRef, "User")))

	internal := repoError(errBoom, "User")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(internal))
	assert.ErrorIs(t, internal, errBoom)

	forbidden := apperr.Forbidden("Forbidden")
	assert.Same(t, forbidden, repoError(forbidden, "User"))
}
