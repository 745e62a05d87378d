// Package httpapi exposes the services over HTTP/JSON under /api/v1.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"

	"github.com/dmitrijs2005/payrollkeeper/internal/logging"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

type AuthService interface {
	SignIn(ctx context.Context, in models.SignInInput) (*models.AuthResult, error)
	SignUp(ctx context.Context, actorID int64, in models.CreateUserInput) (*models.UserView, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	ActorFromToken(token string) (int64, error)
}

type UserService interface {
	GetUser(ctx context.Context, actorID, userID int64) (*models.UserView, error)
}

type CompanyService interface {
	CreateCompany(ctx context.Context, actorID int64, in models.CreateCompanyInput) (*models.CompanyView, error)
	GetCompany(ctx context.Context, actorID, companyID int64) (*models.CompanyView, error)
	ListCompanies(ctx context.Context, actorID int64, f models.CompanyFilter) ([]models.CompanyView, error)
}

type PayrollService interface {
	CreatePayroll(ctx context.Context, actorID int64, in models.CreatePayrollInput, file models.UploadedFile) (*models.PayrollView, error)
	GetPayroll(ctx context.Context, actorID, payrollID int64) (*models.PayrollView, error)
	DownloadPayroll(ctx context.Context, actorID, payrollID int64) (*models.PayrollDownload, error)
	ListPayrolls(ctx context.Context, actorID int64, f models.PayrollFilter) ([]models.PayrollView, error)
}

// Services bundles what the handlers call.
type Services struct {
	Auth      AuthService
	Users     UserService
	Companies CompanyService
	Payrolls  PayrollService
}

// UploadConfig controls how multipart uploads are spooled.
type UploadConfig struct {
	FS          afero.Fs
	TempDir     string
	MaxFileSize int64
}

type Server struct {
	address         string
	svc             Services
	upload          UploadConfig
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func NewServer(addr string, l logging.Logger, svc Services, upload UploadConfig, shutdownTimeout time.Duration) *Server {
	return &Server{
		address:         addr,
		svc:             svc,
		upload:          upload,
		logger:          l.With("module", "http_server"),
		shutdownTimeout: shutdownTimeout,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signin", s.signIn)
		r.Post("/auth/refresh", s.refresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireActor)

			r.Post("/auth/signup", s.signUp)
			r.Get("/users/{id}", s.getUser)

			r.Post("/companies", s.createCompany)
			r.Get("/companies", s.listCompanies)
			r.Get("/companies/{id}", s.getCompany)

			r.Post("/payrolls", s.createPayroll)
			r.Get("/payrolls", s.listPayrolls)
			r.Get("/payrolls/{id}", s.getPayroll)
			r.Get("/payrolls/{id}/download", s.downloadPayroll)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
