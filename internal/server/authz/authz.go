// Package authz decides whether an actor may perform an operation on a
// resource. Every decision reads through the caller's transaction, so it
// observes the same snapshot as the writes it guards; the service never
// opens a transaction of its own.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/logging"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/repositories/repomanager"
)

// Target is the object of a decision: a user, a company, or nothing.
type Target struct {
	userID    int64
	companyID int64
	kind      targetKind
}

type targetKind uint8

const (
	targetNone targetKind = iota
	targetUser
	targetCompany
)

// OnUser targets a user; SelfCompany checks resolve the user's company.
func OnUser(userID int64) Target { return Target{userID: userID, kind: targetUser} }

// OnCompany targets a company directly.
func OnCompany(companyID int64) Target { return Target{companyID: companyID, kind: targetCompany} }

// Nothing is the target of collection-wide operations; only Any scopes
// can match it.
func Nothing() Target { return Target{} }

func (t Target) String() string {
	switch t.kind {
	case targetUser:
		return fmt.Sprintf("user:%d", t.userID)
	case targetCompany:
		return fmt.Sprintf("company:%d", t.companyID)
	default:
		return "none"
	}
}

type Service struct {
	rm     repomanager.RepositoryManager
	logger logging.Logger
}

func NewService(rm repomanager.RepositoryManager, logger logging.Logger) *Service {
	return &Service{rm: rm, logger: logger.With("module", "authz")}
}

// Decide grants when any of these hold:
//
//   - the actor has Any(op) on resource;
//   - the actor has SelfCompany(op) and belongs to the target's company;
//   - the actor has Owned(op) and is the target user.
//
// A missing permission row or an unresolvable company is a denial.
// Storage errors are returned as errors.
func (s *Service) Decide(ctx context.Context, tx dbx.DBTX, actorID int64, r permissions.Resource, op permissions.Operation, t Target) (bool, error) {
	perm, err := s.rm.Permissions(tx).GetByUserID(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}

	if perm.Has(r, permissions.Any(op)) {
		return true, nil
	}

	if perm.Has(r, permissions.SelfCompany(op)) {
		ok, err := s.sameCompany(ctx, tx, actorID, t)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	if perm.Has(r, permissions.Owned(op)) && t.kind == targetUser && t.userID == actorID {
		return true, nil
	}

	return false, nil
}

func (s *Service) sameCompany(ctx context.Context, tx dbx.DBTX, actorID int64, t Target) (bool, error) {
	var targetCo int64
	switch t.kind {
	case targetCompany:
		targetCo = t.companyID
	case targetUser:
		id, err := s.companyOf(ctx, tx, t.userID)
		if err != nil || id == 0 {
			return false, err
		}
		targetCo = id
	default:
		return false, nil
	}

	actorCompany, err := s.companyOf(ctx, tx, actorID)
	if err != nil || actorCompany == 0 {
		return false, err
	}
	return actorCompany == targetCo, nil
}

// companyOf returns 0 when the user does not exist.
func (s *Service) companyOf(ctx context.Context, tx dbx.DBTX, userID int64) (int64, error) {
	id, err := s.rm.Users(tx).GetCompanyID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return 0, nil
	}
	return id, err
}

// Authorize is Decide with a denial turned into apperr.Forbidden.
func (s *Service) Authorize(ctx context.Context, tx dbx.DBTX, actorID int64, r permissions.Resource, op permissions.Operation, t Target) error {
	ok, err := s.Decide(ctx, tx, actorID, r, op, t)
	if err != nil {
		return apperr.Internal("authorization lookup failed", err)
	}
	if !ok {
		s.logger.Warn(ctx, "access denied",
			"actor_id", actorID, "resource", r.String(), "op", op.String(), "target", t.String())
		return apperr.Forbidden("Forbidden")
	}
	return nil
}

func (s *Service) CanCreateUser(ctx context.Context, tx dbx.DBTX, actorID, companyID int64) error {
	return s.Authorize(ctx, tx, actorID, permissions.ResourceUser, permissions.Create, OnCompany(companyID))
}

func (s *Service) CanRetrieveUser(ctx context.Context, tx dbx.DBTX, actorID, userID int64) error {
	return s.Authorize(ctx, tx, actorID, permissions.ResourceUser, permissions.Read, OnUser(userID))
}

func (s *Service) CanCreateCompany(ctx context.Context, tx dbx.DBTX, actorID int64) error {
	return s.Authorize(ctx, tx, actorID, permissions.ResourceCompany, permissions.Create, Nothing())
}

func (s *Service) CanRetrieveCompany(ctx context.Context, tx dbx.DBTX, actorID, companyID int64) error {
	return s.Authorize(ctx, tx, actorID, permissions.ResourceCompany, permissions.Read, OnCompany(companyID))
}

func (s *Service) CanListCompanies(ctx context.Context, tx dbx.DBTX, actorID int64) error {
	return s.Authorize(ctx, tx, actorID, permissions.ResourceCompany, permissions.Read, Nothing())
}

func (s *Service) CanCreatePayroll(ctx context.Context, tx dbx.DBTX, actorID, ownerID int64) error {
	return s.Authorize(ctx, tx, actorID, permissions.ResourcePayroll, permissions.Create, OnUser(ownerID))
}

// CanListPayrolls checks a listing narrowed to ownerID. A nil owner lists
// across tenants and needs Any(Read).
func (s *Service) CanListPayrolls(ctx context.Context, tx dbx.DBTX, actorID int64, ownerID *int64) error {
	t := Nothing()
	if ownerID != nil {
		t = OnUser(*ownerID)
	}
	return s.Authorize(ctx, tx, actorID, permissions.ResourcePayroll, permissions.Read, t)
}

func (s *Service) CanRetrievePayroll(ctx context.Context, tx dbx.DBTX, actorID, ownerID int64) error {
	return s.Authorize(ctx, tx, actorID, permissions.ResourcePayroll, permissions.Read, OnUser(ownerID))
}
