package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/common"
	"github.com/dmitrijs2005/payrollkeeper/internal/dbx"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/auth"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/config"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/validation"
)

// AuthService signs users in and out of the API: credential checks,
// access token minting, refresh token rotation, sign-up and the one-time
// bootstrap of the first super admin.
type AuthService struct {
	Deps
	users     *UserService
	companies *CompanyService
	perms     *PermissionService
	validate  *validation.Validator

	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration

	now func() time.Time
}

func NewAuthService(d Deps, users *UserService, companies *CompanyService, perms *PermissionService, v *validation.Validator, cfg *config.Config) *AuthService {
	return &AuthService{
		Deps:                         d,
		users:                        users,
		companies:                    companies,
		perms:                        perms,
		validate:                     v,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// SignIn checks credentials and issues a token pair. The password is
// compared outside any transaction.
func (s *AuthService) SignIn(ctx context.Context, in models.SignInInput) (*models.AuthResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.Repos.Users(s.DB).GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, repoError(err, "User")
	}

	ok, err := auth.CheckPassword(user.PasswordHash, in.Password)
	if err != nil {
		return nil, apperr.Internal("compare password", err)
	}
	if !ok {
		s.Logger.Warn(ctx, "sign-in rejected", "user_id", user.ID)
		return nil, apperr.Unauthorized("Invalid password")
	}

	pair, err := dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.TokenPair, error) {
		return s.issueTokenPairTx(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{TokenPair: *pair, User: user.View()}, nil
}

// SignUp validates in, hashes the password and creates the user on behalf
// of actorID.
func (s *AuthService) SignUp(ctx context.Context, actorID int64, in models.CreateUserInput) (*models.UserView, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	return s.users.CreateUser(ctx, actorID, in, hash)
}

// Refresh rotates refreshToken: the old token is deleted and a new pair is
// issued in one transaction, so a token can be redeemed once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (*models.TokenPair, error) {
		return s.RefreshTx(ctx, tx, refreshToken)
	})
}

func (s *AuthService) RefreshTx(ctx context.Context, tx dbx.DBTX, refreshToken string) (*models.TokenPair, error) {
	repo := s.Repos.RefreshTokens(tx)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, apperr.Unauthorized("Invalid refresh token")
		}
		return nil, repoError(err, "Refresh token")
	}
	if token.Expires.Before(s.now()) {
		return nil, apperr.Unauthorized("Refresh token expired")
	}

	deleted, err := repo.Delete(ctx, refreshToken)
	if err != nil {
		return nil, repoError(err, "Refresh token")
	}
	if !deleted {
		return nil, apperr.Unauthorized("Invalid refresh token")
	}

	return s.issueTokenPairTx(ctx, tx, token.UserID)
}

// Bootstrap creates companyName and a SuperAdmin called username when the
// database has no users. It reports whether anything was created.
func (s *AuthService) Bootstrap(ctx context.Context, companyName, username, password string) (bool, error) {
	if username == "" {
		return false, nil
	}
	if len(password) < auth.MinPasswordLength {
		return false, apperr.BadRequest("Password must be at least 8 characters long")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, apperr.Internal("hash password", err)
	}

	return dbx.InTx(ctx, s.DB, s.TxOpts, func(ctx context.Context, tx dbx.DBTX) (bool, error) {
		return s.BootstrapTx(ctx, tx, companyName, username, hash)
	})
}

func (s *AuthService) BootstrapTx(ctx context.Context, tx dbx.DBTX, companyName, username, passwordHash string) (bool, error) {
	n, err := s.Repos.Users(tx).Count(ctx)
	if err != nil {
		return false, repoError(err, "User")
	}
	if n > 0 {
		return false, nil
	}

	c, err := s.companies.CreateCompanyUncheckedTx(ctx, tx, models.CreateCompanyInput{Name: companyName})
	if err != nil {
		return false, err
	}
	u, err := s.users.InsertUserTx(ctx, tx, &models.User{
		Username:     username,
		Name:         username,
		PasswordHash: passwordHash,
		CompanyID:    c.ID,
	})
	if err != nil {
		return false, err
	}
	if _, err := s.perms.CreateFromRoleTx(ctx, tx, u.ID, permissions.RoleSuperAdmin); err != nil {
		return false, err
	}

	s.Logger.Info(ctx, "bootstrap super admin created", "user_id", u.ID, "company_id", c.ID)
	return true, nil
}

// ActorFromToken resolves the user id carried by an access token.
func (s *AuthService) ActorFromToken(token string) (int64, error) {
	id, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return 0, apperr.Unauthorized("Token expired")
		}
		return 0, apperr.Unauthorized("Invalid token")
	}
	return id, nil
}

func (s *AuthService) issueTokenPairTx(ctx context.Context, tx dbx.DBTX, userID int64) (*models.TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, apperr.Internal("sign access token", err)
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, apperr.Internal("generate refresh token", err)
	}
	if err := s.Repos.RefreshTokens(tx).Create(ctx, userID, refresh, s.now().Add(s.refreshTokenValidityDuration)); err != nil {
		return nil, repoError(err, "Refresh token")
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
