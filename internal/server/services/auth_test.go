package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/payrollkeeper/internal/apperr"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/auth"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
	"github.com/dmitrijs2005/payrollkeeper/internal/server/permissions"
)

func (e *env) signUp(t *testing.T, username, password string) *models.UserView {
	t.Helper()
	e.expectCommit(1)
	in := newUserInput(e.acme, username, permissions.RoleUser)
	in.Password = password
	uv, err := e.auth.SignUp(context.Background(), e.acmeAdmin, in)
	require.NoError(t, err)
	return uv
}

func TestSignUp_HashesPassword(t *testing.T) {
	e := newEnv(t)
	uv := e.signUp(t, "frank", "password1")

	u, err := e.rm.Users(nil).GetByID(context.Background(), uv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "password1", u.PasswordHash)
	ok, err := auth.CheckPassword(u.PasswordHash, "password1")
	require.NoError(t, err)
	assert.True(t, ok)
	e.verify(t)
}

func TestSignUp_ValidationRunsBeforeTransaction(t *testing.T) {
	e := newEnv(t)

	in := newUserInput(e.acme, "frank", permissions.RoleUser)
	in.Password = "short"
	_, err := e.auth.SignUp(context.Background(), e.acmeAdmin, in)
	assertKind(t, apperr.KindBadRequest, err)
	assert.Equal(t, "Password must be at least 8 characters long", apperr.As(err).Message)
	e.verify(t)
}

func TestSignIn(t *testing.T) {
	e := newEnv(t)
	uv := e.signUp(t, "frank", "password1")
	ctx := context.Background()

	e.expectCommit(1)
	res, err := e.auth.SignIn(ctx, models.SignInInput{Username: "frank", Password: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Len(t, res.RefreshToken, 64)
	assert.Equal(t, *uv, res.User)

	actor, err := e.auth.ActorFromToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uv.ID, actor)

	_, err = e.auth.SignIn(ctx, models.SignInInput{Username: "frank", Password: "wrong-password"})
	assertKind(t, apperr.KindUnauthorized, err)

	_, err = e.auth.SignIn(ctx, models.SignInInput{Username: "nobody", Password: "password1"})
	assertKind(t, apperr.KindNotFound, err)

	_, err = e.auth.SignIn(ctx, models.SignInInput{})
	assertKind(t, apperr.KindBadRequest, err)

	e.verify(t)
}

func TestRefresh_RotatesOnce(t *testing.T) {
	e := newEnv(t)
	e.signUp(t, "frank", "password1")
	ctx := context.Background()

	e.expectCommit(1)
	res, err := e.auth.SignIn(ctx, models.SignInInput{Username: "frank", Password: "password1"})
	require.NoError(t, err)

	e.expectCommit(1)
	pair, err := e.auth.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)

	e.expectRollback()
	_, err = e.auth.Refresh(ctx, res.RefreshToken)
	assertKind(t, apperr.KindUnauthorized, err)

	e.verify(t)
}

func TestRefresh_Expired(t *testing.T) {
	e := newEnv(t)
	e.signUp(t, "frank", "password1")
	ctx := context.Background()

	e.expectCommit(1)
	res, err := e.auth.SignIn(ctx, models.SignInInput{Username: "frank", Password: "password1"})
	require.NoError(t, err)

	e.auth.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	e.expectRollback()
	_, err = e.auth.Refresh(ctx, res.RefreshToken)
	assertKind(t, apperr.KindUnauthorized, err)
	assert.Equal(t, "Refresh token expired", apperr.As(err).Message)
	e.verify(t)
}

func TestActorFromToken_Rejects(t *testing.T) {
	e := newEnv(t)

	_, err := e.auth.ActorFromToken("garbage")
	assertKind(t, apperr.KindUnauthorized, err)

	expired, err := auth.GenerateToken(1, []byte("k"), -time.Minute)
	require.NoError(t, err)
	_, err = e.auth.ActorFromToken(expired)
	assert.Equal(t, "Token expired", apperr.As(err).Message)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	empty := newBareEnv(t)
	seeded := newEnv(t)

	empty.expectCommit(1)
	created, err := empty.auth.Bootstrap(ctx, "HQ", "root", "password1")
	require.NoError(t, err)
	assert.True(t, created)

	u, err := empty.rm.Users(nil).GetByUsername(ctx, "root")
	require.NoError(t, err)
	p, err := empty.rm.Permissions(nil).GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, permissions.FromRole(u.ID, permissions.RoleSuperAdmin), *p)

	empty.expectCommit(1)
	created, err = empty.auth.Bootstrap(ctx, "HQ", "root2", "password1")
	require.NoError(t, err)
	assert.False(t, created, "second bootstrap is a no-op")

	seeded.expectCommit(1)
	created, err = seeded.auth.Bootstrap(ctx, "HQ", "root2", "password1")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = seeded.auth.Bootstrap(ctx, "HQ", "", "")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = seeded.auth.Bootstrap(ctx, "HQ", "root", "short")
	assertKind(t, apperr.KindBadRequest, err)

	empty.verify(t)
	seeded.verify(t)
}
