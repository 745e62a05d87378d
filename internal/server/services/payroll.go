package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/authz"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/storage"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/validation"
)

// PayrollService ingests and serves payroll documents. Bytes live in the
// object store, metadata in the database; a row is only committed once its
// blob is fully stored.
type PayrollService struct {
	Deps
	authz       *authz.Service
	validate    *validation.Validator
	fs          afero.Fs
	store       storage.ObjectStore
	maxFileSize int64

	newKey func(period string) (string, error)
}

func NewPayrollService(d Deps, az *authz.Service, v *validation.Validator, fs afero.Fs, store storage.ObjectStore, maxFileSize int64) *PayrollService {
	return &PayrollService{
		Deps:        d,
		authz:       az,
		validate:    v,
		fs:          fs,
		store:       store,
		maxFileSize: maxFileSize,
		newKey:      objectKey,
	}
}

// objectKey returns payrolls/YYYY/MM/<uuidv7>.pdf. Version 7 ids sort by
// creation time.
func objectKey(period string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	year, month, _ := strings.Cut(period, "-")
	return fmt.Sprintf("payrolls/%s/%s/%s.pdf", year, month, id), nil
}

// CreatePayroll stores file as the payroll of in.UserID for in.Period.
//
// The blob is uploaded outside any transaction, then the row is inserted
// in one. If the insert fails the blob is deleted again; a failed delete is
// reported as its own internal error joined with the insert error. The
// temporary file is removed on every path.
func (s *PayrollService) CreatePayroll(ctx context.Context, actorID int64, in models.CreatePayrollInput, file models.UploadedFile) (out *models.PayrollView, err error) {
	defer func() {
		rerr := s.fs.Remove(file.Path)
		if rerr == nil || errors.Is(rerr, os.ErrNotExist) {
			return
		}
		if err == nil {
			out, err = nil, apperr.Internal("remove temp file "+file.Path, rerr)
			return
		}
		s.Logger.Error(ctx, "remove temp file", "path", file.Path, "error", rerr)
	}()

	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if err := validation.CheckUpload(s.fs, file, s.maxFileSize); err != nil {
		return nil, err
	}

	// fail fast before paying for an upload
	if err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.authz.CanCreatePayroll(ctx, tx, actorID, in.UserID)
	}); err != nil {
		return nil, err
	}

	key, err := s.newKey(in.Period)
	if err != nil {
		return nil, apperr.Internal("generate object key", err)
	}
	if err := validation.CheckObjectKey(key); err != nil {
		return nil, apperr.Internal("generated object key is invalid", err)
	}

	if err := s.store.UploadFile(ctx, key, file.Path, models.ContentTypePDF); err != nil {
		return nil, apperr.Internal("upload payroll document", err)
	}

	row := &models.Payroll{
		Period:      in.Period,
		UserID:      in.UserID,
		ObjectKey:   key,
		Filename:    file.OriginalName,
		ContentType: models.ContentTypePDF,
		FileSize:    file.Size,
	}
	p, err := dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.Payroll, error) {
		return s.CreatePayrollTx(ctx, tx, actorID, row)
	})
	if err != nil {
		// the request may already be cancelled; the delete must still run
		if derr := s.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.Logger.Error(ctx, "compensation failed", "object_key", key, "error", derr)
			return nil, errors.Join(apperr.Internal("compensation failed for object "+key, derr), err)
		}
		return nil, err
	}

	s.Logger.Info(ctx, "payroll stored", "payroll_id", p.ID, "object_key", key, "size", p.FileSize, "actor_id", actorID)
	return lo.ToPtr(p.View()), nil
}

// CreatePayrollTx re-checks authorization against the transaction's
// snapshot and inserts the row.
func (s *PayrollService) CreatePayrollTx(ctx context.Context, tx dbx.DBTX, actorID int64, p *models.Payroll) (*models.Payroll, error) {
	if err := s.authz.CanCreatePayroll(ctx, tx, actorID, p.UserID); err != nil {
		return nil, err
	}
	out, err := s.Repos.Payrolls(tx).Create(ctx, p)
	if err != nil {
		return nil, repoError(err, "Payroll")
	}
	return out, nil
}

func (s *PayrollService) GetPayroll(ctx context.Context, actorID, payrollID int64) (*models.PayrollView, error) {
	p, err := dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.Payroll, error) {
		return s.GetPayrollTx(ctx, tx, actorID, payrollID)
	})
	if err != nil {
		return nil, err
	}
	return lo.ToPtr(p.View()), nil
}

// GetPayrollTx resolves the owner and authorizes before any metadata is
// read.
func (s *PayrollService) GetPayrollTx(ctx context.Context, tx dbx.DBTX, actorID, payrollID int64) (*models.Payroll, error) {
	repo := s.Repos.Payrolls(tx)

	owner, err := repo.GetOwnerID(ctx, payrollID)
	if err != nil {
		return nil, repoError(err, "Payroll")
	}
	if err := s.authz.CanRetrievePayroll(ctx, tx, actorID, owner); err != nil {
		return nil, err
	}
	p, err := repo.GetByID(ctx, payrollID)
	if err != nil {
		return nil, repoError(err, "Payroll")
	}
	return p, nil
}

// DownloadPayroll opens the document of payrollID. Metadata is read in a
// transaction; the object is opened after commit so no connection is held
// while streaming. The caller must close the returned Body.
func (s *PayrollService) DownloadPayroll(ctx context.Context, actorID, payrollID int64) (*models.PayrollDownload, error) {
	p, err := dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.Payroll, error) {
		return s.GetPayrollTx(ctx, tx, actorID, payrollID)
	})
	if err != nil {
		return nil, err
	}

	obj, err := s.store.Open(ctx, p.ObjectKey)
	if err != nil {
		return nil, apperr.Internal("open payroll document "+p.ObjectKey, err)
	}
	if obj.Size != p.FileSize {
		_ = obj.Body.Close()
		s.Logger.Error(ctx, "payroll size mismatch",
			"payroll_id", p.ID, "object_key", p.ObjectKey, "expected", p.FileSize, "actual", obj.Size)
		return nil, apperr.Internal(
			fmt.Sprintf("File size mismatch: expected %d, store reports %d", p.FileSize, obj.Size), nil)
	}

	return &models.PayrollDownload{
		Filename:    p.Filename,
		ContentType: p.ContentType,
		Size:        p.FileSize,
		Body:        obj.Body,
	}, nil
}

func (s *PayrollService) ListPayrolls(ctx context.Context, actorID int64, f models.PayrollFilter) ([]models.PayrollView, error) {
	if err := s.validate.Struct(f); err != nil {
		return nil, err
	}
	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) ([]models.PayrollView, error) {
		return s.ListPayrollsTx(ctx, tx, actorID, f)
	})
}

func (s *PayrollService) ListPayrollsTx(ctx context.Context, tx dbx.DBTX, actorID int64, f models.PayrollFilter) ([]models.PayrollView, error) {
	if err := s.authz.CanListPayrolls(ctx, tx, actorID, f.UserID); err != nil {
		return nil, err
	}
	list, err := s.Repos.Payrolls(tx).List(ctx, f)
	if err != nil {
		return nil, repoError(err, "Payroll")
	}
	return lo.Map(list, func(p *models.Payroll, _ int) models.PayrollView { return p.View() }), nil
}
