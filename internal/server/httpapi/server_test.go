package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/logging"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

const goodToken = "good"

type stubAuth struct {
	signIn  func(models.SignInInput) (*models.AuthResult, error)
	signUp  func(int64, models.CreateUserInput) (*models.UserView, error)
	refresh func(string) (*models.TokenPair, error)
}

func (s *stubAuth) SignIn(_ context.Context, in models.SignInInput) (*models.AuthResult, error) {
	return s.signIn(in)
}

func (s *stubAuth) SignUp(_ context.Context, actorID int64, in models.CreateUserInput) (*models.UserView, error) {
	return s.signUp(actorID, in)
}

func (s *stubAuth) Refresh(_ context.Context, token string) (*models.TokenPair, error) {
	return s.refresh(token)
}

func (s *stubAuth) ActorFromToken(token string) (int64, error) {
	switch token {
	case goodToken:
		return 7, nil
	case "old":
		return 0, apperr.Unauthorized("Token expired")
	default:
		return 0, apperr.Unauthorized("Invalid token")
	}
}

type stubUsers struct{}

func (stubUsers) GetUser(_ context.Context, actorID, userID int64) (*models.UserView, error) {
	if userID != actorID {
		return nil, apperr.Forbidden("Forbidden")
	}
	return &models.UserView{ID: userID, Username: "alice", CompanyID: 1}, nil
}

type stubCompanies struct {
	lastFilter models.CompanyFilter
}

func (s *stubCompanies) CreateCompany(_ context.Context, _ int64, in models.CreateCompanyInput) (*models.CompanyView, error) {
	return &models.CompanyView{ID: 1, Name: in.Name}, nil
}

func (s *stubCompanies) GetCompany(_ context.Context, _ int64, id int64) (*models.CompanyView, error) {
	if id == 99 {
		return nil, apperr.NotFound("Company not found")
	}
	return &models.CompanyView{ID: id, Name: "Acme"}, nil
}

func (s *stubCompanies) ListCompanies(_ context.Context, _ int64, f models.CompanyFilter) ([]models.CompanyView, error) {
	s.lastFilter = f
	return []models.CompanyView{{ID: 1, Name: "Acme"}}, nil
}

type stubPayrolls struct {
	fs         afero.Fs
	created    func(models.CreatePayrollInput, models.UploadedFile) (*models.PayrollView, error)
	gotContent []byte
	lastFilter models.PayrollFilter
	download   *models.PayrollDownload
	downloadE  error
}

func (s *stubPayrolls) CreatePayroll(_ context.Context, _ int64, in models.CreatePayrollInput, f models.UploadedFile) (*models.PayrollView, error) {
	b, err := afero.ReadFile(s.fs, f.Path)
	if err != nil {
		return nil, err
	}
	s.gotContent = b
	_ = s.fs.Remove(f.Path)
	return s.created(in, f)
}

func (s *stubPayrolls) GetPayroll(_ context.Context, _ int64, id int64) (*models.PayrollView, error) {
	return &models.PayrollView{ID: id, Period: "2024-03", UserID: 7}, nil
}

func (s *stubPayrolls) DownloadPayroll(context.Context, int64, int64) (*models.PayrollDownload, error) {
	return s.download, s.downloadE
}

func (s *stubPayrolls) ListPayrolls(_ context.Context, _ int64, f models.PayrollFilter) ([]models.PayrollView, error) {
	s.lastFilter = f
	return []models.PayrollView{}, nil
}

type fixture struct {
	srv       *Server
	handler   http.Handler
	fs        afero.Fs
	auth      *stubAuth
	companies *stubCompanies
	payrolls  *stubPayrolls
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/spool", 0o755))

	f := &fixture{
		fs:        fs,
		auth:      &stubAuth{},
		companies: &stubCompanies{},
		payrolls:  &stubPayrolls{fs: fs},
	}
	f.srv = NewServer(":0", logging.Nop(), Services{
		Auth:      f.auth,
		Users:     stubUsers{},
		Companies: f.companies,
		Payrolls:  f.payrolls,
	}, UploadConfig{FS: fs, TempDir: "/spool", MaxFileSize: 1024}, 0)
	f.handler = f.srv.Routes()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func authed(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+goodToken)
	return req
}

func (f *fixture) spoolEntries(t *testing.T) []string {
	t.Helper()
	entries, err := afero.ReadDir(f.fs, "/spool")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequireActor(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing", "", http.StatusUnauthorized, "Missing token"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Missing token"},
		{"expired", "Bearer old", http.StatusUnauthorized, "Token expired"},
		{"invalid", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"ok", "bearer " + goodToken, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/7", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := f.do(req)
			require.Equal(t, tt.status, rec.Code)
			if tt.message != "" {
				var body struct {
					Message string `json:"message"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.message, body.Message)
			}
		})
	}
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	f.auth.signIn = func(in models.SignInInput) (*models.AuthResult, error) {
		if in.Password != "secret123" {
			return nil, apperr.Unauthorized("Invalid password")
		}
		return &models.AuthResult{
			TokenPair: models.TokenPair{AccessToken: "a", RefreshToken: "r"},
			User:      models.UserView{ID: 1, Username: in.Username},
		}, nil
	}

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin",
		strings.NewReader(`{"username":"alice","password":"secret123"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token":"a"`)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin",
		strings.NewReader(`{"username":"alice","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid password","parameters":[]}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	var got string
	f.auth.refresh = func(token string) (*models.TokenPair, error) {
		got = token
		return &models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
	}

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh",
		strings.NewReader(`{"refresh_token":"r1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", got)
	assert.JSONEq(t, `{"access_token":"a2","refresh_token":"r2"}`, rec.Body.String())
}

func TestSignUp_PassesActor(t *testing.T) {
	f := newFixture(t)
	var gotActor int64
	f.auth.signUp = func(actorID int64, in models.CreateUserInput) (*models.UserView, error) {
		gotActor = actorID
		return &models.UserView{ID: 10, Username: in.Username, CompanyID: in.CompanyID}, nil
	}

	rec := f.do(authed(http.MethodPost, "/api/v1/auth/signup",
		strings.NewReader(`{"username":"bob","name":"Bob","password":"longenough","company_id":1,"role":"User"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(7), gotActor)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(authed(http.MethodGet, "/api/v1/users/7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(authed(http.MethodGet, "/api/v1/users/8", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(authed(http.MethodGet, "/api/v1/users/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid id: $1","parameters":["abc"]}`, rec.Body.String())
}

func TestCompanies(t *testing.T) {
	f := newFixture(t)

	rec := f.do(authed(http.MethodPost, "/api/v1/companies", strings.NewReader(`{"name":"Acme"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"Acme"}`, rec.Body.String())

	rec = f.do(authed(http.MethodGet, "/api/v1/companies", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CompanyFilter{Limit: defaultPageSize}, f.companies.lastFilter)

	rec = f.do(authed(http.MethodGet, "/api/v1/companies?limit=5&offset=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CompanyFilter{Limit: 5, Offset: 10}, f.companies.lastFilter)

	rec = f.do(authed(http.MethodGet, "/api/v1/companies?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(authed(http.MethodGet, "/api/v1/companies/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPayrolls_Filters(t *testing.T) {
	f := newFixture(t)

	rec := f.do(authed(http.MethodGet, "/api/v1/payrolls", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, f.payrolls.lastFilter.UserID)
	assert.Nil(t, f.payrolls.lastFilter.Period)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = f.do(authed(http.MethodGet, "/api/v1/payrolls?user_id=3&period=2024-03", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.payrolls.lastFilter.UserID)
	assert.Equal(t, int64(3), *f.payrolls.lastFilter.UserID)
	require.NotNil(t, f.payrolls.lastFilter.Period)
	assert.Equal(t, "2024-03", *f.payrolls.lastFilter.Period)
}

func TestGetPayroll(t *testing.T) {
	f := newFixture(t)
	rec := f.do(authed(http.MethodGet, "/api/v1/payrolls/5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":5`)
}

type part struct {
	name, filename, content string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		disp := `form-data; name="` + p.name + `"`
		if p.filename != "" {
			disp += `; filename="` + p.filename + `"`
		}
		h.Set("Content-Disposition", disp)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreatePayroll_StreamsFileToService(t *testing.T) {
	f := newFixture(t)
	var gotIn models.CreatePayrollInput
	var gotFile models.UploadedFile
	f.payrolls.created = func(in models.CreatePayrollInput, file models.UploadedFile) (*models.PayrollView, error) {
		gotIn, gotFile = in, file
		return &models.PayrollView{ID: 1, Period: in.Period, UserID: in.UserID, Filename: file.OriginalName, FileSize: file.Size}, nil
	}

	body, ct := multipartBody(t,
		part{name: "body", content: `{"date":"2024-03","user_id":7}`},
		part{name: "file", filename: "march.pdf", content: "%PDF-1.4 data"},
	)
	req := authed(http.MethodPost, "/api/v1/payrolls", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, models.CreatePayrollInput{Period: "2024-03", UserID: 7}, gotIn)
	assert.Equal(t, "march.pdf", gotFile.OriginalName)
	assert.Equal(t, int64(len("%PDF-1.4 data")), gotFile.Size)
	assert.True(t, strings.HasPrefix(gotFile.Path, "/spool/"))
	assert.Equal(t, []byte("%PDF-1.4 data"), f.payrolls.gotContent)
}

func TestCreatePayroll_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		parts       []part
		status      int
	}{
		{
			name:        "not multipart",
			contentType: "application/json",
			status:      http.StatusUnsupportedMediaType,
		},
		{
			name:   "file first",
			parts:  []part{{name: "file", filename: "a.pdf", content: "x"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "bad json",
			parts:  []part{{name: "body", content: "{"}, {name: "file", filename: "a.pdf", content: "x"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing file",
			parts:  []part{{name: "body", content: `{"date":"2024-03","user_id":7}`}},
			status: http.StatusBadRequest,
		},
		{
			name:   "no filename",
			parts:  []part{{name: "body", content: `{"date":"2024-03","user_id":7}`}, {name: "file", content: "x"}},
			status: http.StatusBadRequest,
		},
		{
			name: "too large",
			parts: []part{
				{name: "body", content: `{"date":"2024-03","user_id":7}`},
				{name: "file", filename: "a.pdf", content: strings.Repeat("x", 1025)},
			},
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.payrolls.created = func(models.CreatePayrollInput, models.UploadedFile) (*models.PayrollView, error) {
				t.Fatal("service must not be called")
				return nil, nil
			}

			var req *http.Request
			if tt.parts != nil {
				body, ct := multipartBody(t, tt.parts...)
				req = authed(http.MethodPost, "/api/v1/payrolls", body)
				req.Header.Set("Content-Type", ct)
			} else {
				req = authed(http.MethodPost, "/api/v1/payrolls", strings.NewReader("{}"))
				req.Header.Set("Content-Type", tt.contentType)
			}

			rec := f.do(req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Empty(t, f.spoolEntries(t), "no temp file may be left behind")
		})
	}
}

func TestCreatePayroll_TooLargeMessage(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t,
		part{name: "body", content: `{"date":"2024-03","user_id":7}`},
		part{name: "file", filename: "a.pdf", content: strings.Repeat("x", 2048)},
	)
	req := authed(http.MethodPost, "/api/v1/payrolls", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"File size cannot exceed $1 bytes","parameters":["1024"]}`, rec.Body.String())
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestDownloadPayroll_Streams(t *testing.T) {
	f := newFixture(t)
	body := &closeTracker{Reader: strings.NewReader("%PDF-1.4 data")}
	f.payrolls.download = &models.PayrollDownload{
		Filename:    "märz 2024.pdf",
		ContentType: models.ContentTypePDF,
		Size:        13,
		Body:        body,
	}

	rec := f.do(authed(http.MethodGet, "/api/v1/payrolls/5/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ContentTypePDF, rec.Header().Get("Content-Type"))
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename*=utf-8''m%C3%A4rz%202024.pdf")
	assert.Equal(t, "%PDF-1.4 data", rec.Body.String())
	assert.True(t, body.closed)
}

func TestDownloadPayroll_InternalErrorHasNoDetail(t *testing.T) {
	f := newFixture(t)
	f.payrolls.downloadE = apperr.Internal("File size mismatch: expected 1000, store reports 900", nil)

	rec := f.do(authed(http.MethodGet, "/api/v1/payrolls/5/download", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "{}\n", rec.Body.String())
}
