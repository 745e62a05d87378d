// Package server wires configuration, the database, object storage and the
// services together and runs the HTTP API until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/filex"
	"github.com/dmitrijs2005/payrollkeeper/internal/logging"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/authz"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/config"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/services"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/storage"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/validation"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	auth   *services.AuthService
	http   *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	db.SetMaxOpenConns(c.DBMaxOpenConns)
	db.SetMaxIdleConns(c.DBMaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	level, err := dbx.ParseIsolation(c.TxIsolation)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	fs := afero.NewOsFs()
	spoolDir, err := filex.EnsureDir(fs, c.UploadTempDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("upload dir error: %w", err)
	}

	store, err := newObjectStore(ctx, c, fs)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	deps := services.Deps{DB: db, Repos: rm, TxOpts: dbx.TxOptions(level), Logger: logger}
	az := authz.NewService(rm, logger)
	v := validation.New()

	perms := services.NewPermissionService(deps)
	companies := services.NewCompanyService(deps, az, v)
	users := services.NewUserService(deps, az, companies, perms)
	authSvc := services.NewAuthService(deps, users, companies, perms, v, c)
	payrolls := services.NewPayrollService(deps, az, v, fs, store, c.MaxFileSize)

	srv := httpapi.NewServer(c.HTTPAddr, logger, httpapi.Services{
		Auth:      authSvc,
		Users:     users,
		Companies: companies,
		Payrolls:  payrolls,
	}, httpapi.UploadConfig{
		FS:          fs,
		TempDir:     spoolDir,
		MaxFileSize: c.MaxFileSize,
	}, c.ShutdownTimeout)

	return &App{config: c, logger: logger, db: db, auth: authSvc, http: srv}, nil
}

func newObjectStore(ctx context.Context, c *config.Config, fs afero.Fs) (storage.ObjectStore, error) {
	var store storage.ObjectStore
	switch c.StorageBackend {
	case config.StorageMemory:
		store = storage.NewMemoryStore(afero.NewMemMapFs())
	default:
		s3store, err := storage.NewS3Store(ctx, storage.S3Config{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			UsePathStyle: c.S3UsePathStyle,
		}, fs)
		if err != nil {
			return nil, fmt.Errorf("storage init error: %w", err)
		}
		store = s3store
	}

	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	return store, nil
}

func (app *App) bootstrap(ctx context.Context) error {
	created, err := app.auth.Bootstrap(ctx, app.config.BootstrapCompany, app.config.BootstrapUsername, app.config.BootstrapPassword)
	if err != nil {
		return fmt.Errorf("bootstrap error: %w", err)
	}
	if created {
		app.logger.Info(ctx, "Created bootstrap super admin", "username", app.config.BootstrapUsername)
	}
	return nil
}

// Run blocks until SIGINT/SIGTERM/SIGQUIT or a fatal server error.
func (app *App) Run(ctx context.Context) error {
	defer app.db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	if err := app.bootstrap(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.http.Run(ctx)
	})

	err := g.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return err
}
