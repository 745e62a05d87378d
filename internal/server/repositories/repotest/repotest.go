// Package repotest provides an in-memory RepositoryManager for tests. It
// enforces the same uniqueness and reference rules as the schema and lets a
// test inject a failure into any repository method. Transactions are not
// modelled: writes land immediately regardless of the handle passed in.
package repotest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/companies"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/payrolls"
	permissionsrepo "github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/users"
)

// Manager is safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	nextID    int64
	companies map[int64]*models.Company
	users     map[int64]*models.User
	perms     map[int64]*permissions.Permission
	payrolls  map[int64]*models.Payroll
	tokens    map[string]*models.RefreshToken
	failures  map[string]error
	calls     map[string]int
}

func New() *Manager {
	return &Manager{
		companies: map[int64]*models.Company{},
		users:     map[int64]*models.User{},
		perms:     map[int64]*permissions.Permission{},
		payrolls:  map[int64]*models.Payroll{},
		tokens:    map[string]*models.RefreshToken{},
		failures:  map[string]error{},
		calls:     map[string]int{},
	}
}

// FailOn makes the named method return err, e.g. FailOn("Payrolls.Create", err).
func (m *Manager) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

// Calls reports how many times the named method was invoked.
func (m *Manager) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// enter records the call and returns the injected failure, if any. The
// caller must hold m.mu.
func (m *Manager) enter(method string) error {
	m.calls[method]++
	return m.failures[method]
}

func (m *Manager) id() int64 {
	m.nextID++
	return m.nextID
}

// AddCompany seeds a company and returns its id.
func (m *Manager) AddCompany(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.companies[id] = &models.Company{ID: id, Name: name}
	return id
}

// AddUser seeds a user in companyID with the permissions of role.
func (m *Manager) AddUser(companyID int64, username string, role permissions.Role) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.users[id] = &models.User{ID: id, Username: username, Name: username, CompanyID: companyID, CreatedAt: time.Now()}
	p := permissions.FromRole(id, role)
	m.perms[id] = &p
	return id
}

// AddPayroll seeds a payroll row and returns a copy with its id set.
func (m *Manager) AddPayroll(p models.Payroll) *models.Payroll {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.payrolls[p.ID] = &p
	out := p
	return &out
}

// SetPermission replaces the stored mask row for p.UserID.
func (m *Manager) SetPermission(p permissions.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[p.UserID] = &p
}

// DeletePermission drops the mask row of userID.
func (m *Manager) DeletePermission(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.perms, userID)
}

func (m *Manager) PayrollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payrolls)
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Users(dbx.DBTX) users.Repository                 { return usersRepo{m} }
func (m *Manager) Companies(dbx.DBTX) companies.Repository         { return companiesRepo{m} }
func (m *Manager) Permissions(dbx.DBTX) permissionsrepo.Repository { return permsRepo{m} }
func (m *Manager) Payrolls(dbx.DBTX) payrolls.Repository           { return payrollsRepo{m} }
func (m *Manager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return tokensRepo{m} }

type usersRepo struct{ m *Manager }

func (r usersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Users.Create"); err != nil {
		return nil, err
	}
	for _, x := range r.m.users {
		if x.Username == u.Username {
			return nil, common.ErrorAlreadyExists
		}
	}
	if _, ok := r.m.companies[u.CompanyID]; !ok {
		return nil, common.ErrorInvalidRef
	}
	row := *u
	row.ID = r.m.id()
	row.CreatedAt = time.Now()
	r.m.users[row.ID] = &row
	out := row
	return &out, nil
}

func (r usersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r usersRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Users.GetByUsername"); err != nil {
		return nil, err
	}
	for _, u := range r.m.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r usersRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Users.ExistsByUsername"); err != nil {
		return false, err
	}
	for _, u := range r.m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r usersRepo) GetCompanyID(_ context.Context, userID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Users.GetCompanyID"); err != nil {
		return 0, err
	}
	u, ok := r.m.users[userID]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return u.CompanyID, nil
}

func (r usersRepo) Count(context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Users.Count"); err != nil {
		return 0, err
	}
	return int64(len(r.m.users)), nil
}

type companiesRepo struct{ m *Manager }

func (r companiesRepo) Create(_ context.Context, c *models.Company) (*models.Company, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Companies.Create"); err != nil {
		return nil, err
	}
	row := *c
	row.ID = r.m.id()
	r.m.companies[row.ID] = &row
	out := row
	return &out, nil
}

func (r companiesRepo) GetByID(_ context.Context, id int64) (*models.Company, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Companies.GetByID"); err != nil {
		return nil, err
	}
	c, ok := r.m.companies[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *c
	return &out, nil
}

func (r companiesRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Companies.Exists"); err != nil {
		return false, err
	}
	_, ok := r.m.companies[id]
	return ok, nil
}

func (r companiesRepo) List(_ context.Context, limit, offset int64) ([]*models.Company, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Companies.List"); err != nil {
		return nil, err
	}
	all := make([]*models.Company, 0, len(r.m.companies))
	for _, c := range r.m.companies {
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= int64(len(all)) {
		return []*models.Company{}, nil
	}
	end := min(offset+limit, int64(len(all)))
	return all[offset:end], nil
}

type permsRepo struct{ m *Manager }

func (r permsRepo) Create(_ context.Context, p *permissions.Permission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Permissions.Create"); err != nil {
		return err
	}
	if _, ok := r.m.users[p.UserID]; !ok {
		return common.ErrorInvalidRef
	}
	if _, ok := r.m.perms[p.UserID]; ok {
		return common.ErrorAlreadyExists
	}
	cp := *p
	r.m.perms[p.UserID] = &cp
	return nil
}

func (r permsRepo) GetByUserID(_ context.Context, userID int64) (*permissions.Permission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Permissions.GetByUserID"); err != nil {
		return nil, err
	}
	p, ok := r.m.perms[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

type payrollsRepo struct{ m *Manager }

func (r payrollsRepo) Create(_ context.Context, p *models.Payroll) (*models.Payroll, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Payrolls.Create"); err != nil {
		return nil, err
	}
	for _, x := range r.m.payrolls {
		if x.ObjectKey == p.ObjectKey {
			return nil, common.ErrorAlreadyExists
		}
	}
	if _, ok := r.m.users[p.UserID]; !ok {
		return nil, common.ErrorInvalidRef
	}
	row := *p
	row.ID = r.m.id()
	row.UploadedAt = time.Now()
	r.m.payrolls[row.ID] = &row
	out := row
	return &out, nil
}

func (r payrollsRepo) GetByID(_ context.Context, id int64) (*models.Payroll, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Payrolls.GetByID"); err != nil {
		return nil, err
	}
	p, ok := r.m.payrolls[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *p
	return &out, nil
}

func (r payrollsRepo) GetOwnerID(_ context.Context, id int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Payrolls.GetOwnerID"); err != nil {
		return 0, err
	}
	p, ok := r.m.payrolls[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return p.UserID, nil
}

func (r payrollsRepo) List(_ context.Context, f models.PayrollFilter) ([]*models.Payroll, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("Payrolls.List"); err != nil {
		return nil, err
	}
	out := []*models.Payroll{}
	for _, p := range r.m.payrolls {
		if f.UserID != nil && p.UserID != *f.UserID {
			continue
		}
		if f.Period != nil && p.Period != *f.Period {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period > out[j].Period
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type tokensRepo struct{ m *Manager }

func (r tokensRepo) Create(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("RefreshTokens.Create"); err != nil {
		return err
	}
	if _, ok := r.m.tokens[token]; ok {
		return common.ErrorAlreadyExists
	}
	r.m.tokens[token] = &models.RefreshToken{ID: r.m.id(), UserID: userID, Token: token, Expires: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (r tokensRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("RefreshTokens.Find"); err != nil {
		return nil, err
	}
	t, ok := r.m.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r tokensRepo) Delete(_ context.Context, token string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.enter("RefreshTokens.Delete"); err != nil {
		return false, err
	}
	_, ok := r.m.tokens[token]
	delete(r.m.tokens, token)
	return ok, nil
}
