package payrolls

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var payrollCols = []string{"id", "period", "user_id", "object_key", "filename", "content_type", "file_size", "uploaded_at"}

const insertQ = `(?s)^INSERT\s+INTO\s+payrolls\s*\(period,\s*user_id,\s*object_key,\s*filename,\s*content_type,\s*file_size\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id,\s*uploaded_at$`

func samplePayroll() *models.Payroll {
	return &models.Payroll{
		Period:      "2024-05",
		UserID:      3,
		ObjectKey:   "payrolls/2024/05/k.pdf",
		Filename:    "may.pdf",
		ContentType: models.ContentTypePDF,
		FileSize:    1000,
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("2024-05", int64(3), "payrolls/2024/05/k.pdf", "may.pdf", "application/pdf", int64(1000)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uploaded_at"}).AddRow(int64(17), now))

	got, err := repo.Create(context.Background(), samplePayroll())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 17 || !got.UploadedAt.Equal(now) {
		t.Fatalf("unexpected payroll: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_ConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"duplicate key", "23505", common.ErrorAlreadyExists},
		{"unknown owner", "23503", common.ErrorInvalidRef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: tt.code})

			_, err := repo.Create(context.Background(), samplePayroll())
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*period,.*FROM\s+payrolls\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs(int64(17)).
		WillReturnRows(sqlmock.NewRows(payrollCols).
			AddRow(int64(17), "2024-05", int64(3), "k", "may.pdf", "application/pdf", int64(1000), time.Now()))
	mock.ExpectQuery(q).WithArgs(int64(18)).WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByID(context.Background(), 17)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.ObjectKey != "k" || got.FileSize != 1000 {
		t.Fatalf("unexpected payroll: %+v", got)
	}

	if _, err := repo.GetByID(context.Background(), 18); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGetOwnerID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^SELECT\s+user_id\s+FROM\s+payrolls\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(3)))
	mock.ExpectQuery(q).WithArgs(int64(2)).WillReturnError(errors.New("db err"))

	owner, err := repo.GetOwnerID(context.Background(), 1)
	if err != nil || owner != 3 {
		t.Fatalf("GetOwnerID: got (%d, %v)", owner, err)
	}

	_, err = repo.GetOwnerID(context.Background(), 2)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestList_BuildsWhereFromFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter models.PayrollFilter
		query  string
		args   []driver.Value
	}{
		{
			name:   "no filter",
			filter: models.PayrollFilter{},
			query:  `FROM\s+payrolls\s+ORDER\s+BY\s+period\s+DESC,\s*id$`,
		},
		{
			name:   "user only",
			filter: models.PayrollFilter{UserID: lo.ToPtr(int64(3))},
			query:  `FROM\s+payrolls\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY`,
			args:   []driver.Value{int64(3)},
		},
		{
			name:   "user and period",
			filter: models.PayrollFilter{UserID: lo.ToPtr(int64(3)), Period: lo.ToPtr("2024-05")},
			query:  `FROM\s+payrolls\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+period\s*=\s*\$2\s+ORDER\s+BY`,
			args:   []driver.Value{int64(3), "2024-05"},
		},
		{
			name:   "period only",
			filter: models.PayrollFilter{Period: lo.ToPtr("2024-05")},
			query:  `FROM\s+payrolls\s+WHERE\s+period\s*=\s*\$1\s+ORDER\s+BY`,
			args:   []driver.Value{"2024-05"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			exp := mock.ExpectQuery(`(?s)^SELECT\s+id,.*` + tt.query)
			if len(tt.args) > 0 {
				exp = exp.WithArgs(tt.args...)
			}
			exp.WillReturnRows(sqlmock.NewRows(payrollCols).
				AddRow(int64(1), "2024-05", int64(3), "k1", "a.pdf", "application/pdf", int64(10), time.Now()))

			got, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			if len(got) != 1 || got[0].ObjectKey != "k1" {
				t.Fatalf("unexpected result: %+v", got)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestList_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+payrolls`).WillReturnError(errors.New("boom"))

	if _, err := repo.List(context.Background(), models.PayrollFilter{}); err == nil {
		t.Fatal("expected error")
	}
}
