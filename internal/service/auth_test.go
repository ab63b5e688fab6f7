package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/moviecatalog/internal/config"
	"github.com/user/moviecatalog/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func setupRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := repository.Open(config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewRepositories(db)
}

func newAuth(t *testing.T) (*AuthService, *repository.Repositories) {
	repos := setupRepos(t)
	return NewAuthService(repos.User, repos.Session, bcrypt.MinCost, time.Minute), repos
}

func TestAuthService_Register(t *testing.T) {
	auth, repos := newAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "alice", "pw1", "alice@example.com")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "pw1", user.Password, "password is stored hashed")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("pw1")))

	// 同名用户即使邮箱和密码不同也应失败
	_, err = auth.Register(ctx, "alice", "other", "other@example.com")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	count, err := repos.User.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAuthService_RegisterRequiresCredentials(t *testing.T) {
	auth, _ := newAuth(t)

	_, err := auth.Register(context.Background(), "  ", "pw", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = auth.Register(context.Background(), "bob", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	auth, repos := newAuth(t)
	ctx := context.Background()
	user, err := auth.Register(ctx, "alice", "pw1", "")
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "alice", "pw2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = auth.Login(ctx, "mallory", "pw1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := repos.Session.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestAuthService_LoginCreatesSingleSession(t *testing.T) {
	auth, repos := newAuth(t)
	ctx := context.Background()
	_, err := auth.Register(ctx, "alice", "pw1", "")
	require.NoError(t, err)

	token, user, err := auth.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	count, err := repos.Session.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	session, err := repos.Session.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, token, session.SessionID)

	validated, err := auth.ValidateSession(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, validated)
	assert.Equal(t, user.ID, validated.ID)
}

func TestAuthService_ReloginSupersedesOldToken(t *testing.T) {
	auth, repos := newAuth(t)
	ctx := context.Background()
	_, err := auth.Register(ctx, "alice", "pw1", "")
	require.NoError(t, err)

	clock := time.UnixMilli(1_700_000_000_000)
	auth.now = func() time.Time { return clock }

	first, _, err := auth.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	// 先命中一次缓存，确认重新登录会清掉缓存
	u, err := auth.ValidateSession(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, u)

	clock = clock.Add(time.Second)
	second, user, err := auth.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	old, err := auth.ValidateSession(ctx, first)
	assert.NoError(t, err)
	assert.Nil(t, old)

	cur, err := auth.ValidateSession(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, cur)

	count, err := repos.Session.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAuthService_ValidateUnknownToken(t *testing.T) {
	auth, _ := newAuth(t)

	u, err := auth.ValidateSession(context.Background(), "bm9ib2R5")
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = auth.ValidateSession(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestNewSessionToken(t *testing.T) {
	token := NewSessionToken("alice", time.UnixMilli(1_700_000_000_123))

	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Equal(t, "alice1700000000123", string(raw))
}

func TestAuthService_LookupDuringLoginIsNotCached(t *testing.T) {
	auth, repos := newAuth(t)
	ctx := context.Background()
	_, err := auth.Register(ctx, "alice", "pw1", "")
	require.NoError(t, err)

	clock := time.UnixMilli(1_700_000_000_000)
	auth.now = func() time.Time { return clock }

	first, user, err := auth.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	// 查询读到旧令牌之后、写缓存之前，同一用户再次登录
	seen := auth.currentEpoch()
	clock = clock.Add(time.Second)
	_, _, err = auth.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	auth.remember(first, *user, seen)

	_, cached := auth.cache.Get(first)
	assert.False(t, cached)

	old, err := auth.ValidateSession(ctx, first)
	assert.NoError(t, err)
	assert.Nil(t, old)

	session, err := repos.Session.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEqual(t, first, session.SessionID)
}

func TestAuthService_RegisterValidatesFields(t *testing.T) {
	auth, repos := newAuth(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, "alice", "pw1", "not-an-email")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "invalid input: email is not a valid address")

	_, err = auth.Register(ctx, strings.Repeat("a", 65), "pw1", "")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "invalid input: username must be at most 64 characters")

	count, err := repos.User.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = auth.Register(ctx, strings.Repeat("a", 64), "pw1", " alice@example.com ")
	assert.NoError(t, err)
}

func TestAuthService_LoginTrimsUsername(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()
	_, err := auth.Register(ctx, "  alice ", "pw1", "")
	require.NoError(t, err)

	token, user, err := auth.Login(ctx, " alice  ", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, token)
}
