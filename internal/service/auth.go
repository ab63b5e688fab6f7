package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/user/moviecatalog/internal/model"
	"github.com/user/moviecatalog/internal/repository"
	"github.com/user/moviecatalog/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

const sessionCacheSize = 1024

// AuthService 注册、登录与会话校验
type AuthService struct {
	users    *repository.UserRepository
	sessions *repository.SessionRepository
	cache    *utils.TTLCache[model.User]
	validate *validator.Validate
	cost     int
	now      func() time.Time

	// 每次登录递增；查询期间发生过登录的结果不写入缓存
	mu    sync.Mutex
	epoch uint64
}

// NewAuthService bcryptCost 超出范围时使用默认值；cacheTTL 为令牌查询结果的缓存时间
func NewAuthService(users *repository.UserRepository, sessions *repository.SessionRepository, bcryptCost int, cacheTTL time.Duration) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		cache:    utils.NewTTLCache[model.User](sessionCacheSize, cacheTTL),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cost:     bcryptCost,
		now:      time.Now,
	}
}

// Register 注册用户，用户名已存在时返回 ErrDuplicateUsername
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	logCtx := logrus.WithField("username", username)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	candidate := model.User{Username: username, Email: email}
	if err := s.validate.StructPartial(&candidate, "Username", "Email"); err != nil {
		return nil, userValidationError(err)
	}

	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("查找用户失败: %w", err)
	}
	if existing != nil {
		logCtx.Warn("注册失败：用户名已存在")
		return nil, ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password is too long", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	user, err := s.users.Create(ctx, username, string(hash), email)
	if errors.Is(err, repository.ErrDuplicate) {
		// 并发注册同名用户时由唯一索引兜底
		return nil, ErrDuplicateUsername
	}
	if err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	logCtx.WithField("user_id", user.ID).Info("用户注册成功")
	return user, nil
}

// Login 校验密码并签发新令牌，覆盖该用户之前的会话
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	username = strings.TrimSpace(username)
	logCtx := logrus.WithField("username", username)

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("查找用户失败: %w", err)
	}
	if user == nil {
		logCtx.Warn("登录失败：用户不存在")
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		logCtx.Warn("登录失败：密码错误")
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	token := NewSessionToken(user.Username, now)
	if err := s.sessions.Upsert(ctx, user.ID, token, now); err != nil {
		return "", nil, fmt.Errorf("保存会话失败: %w", err)
	}
	s.mu.Lock()
	s.epoch++
	s.forgetUser(user.ID)
	s.mu.Unlock()

	logCtx.WithField("user_id", user.ID).Info("用户登录成功")
	return token, user, nil
}

// ValidateSession 返回令牌对应的用户；令牌未知时返回 (nil, nil)。
// 令牌没有过期时间，只会被同一用户的下一次登录取代。
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	if user, ok := s.cache.Get(token); ok {
		return &user, nil
	}
	seen := s.currentEpoch()

	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	s.remember(token, *user, seen)
	return user, nil
}

func (s *AuthService) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// remember 只有在 seen 之后没有发生登录时才缓存，否则结果可能已被新令牌取代
func (s *AuthService) remember(token string, user model.User, seen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == seen {
		s.cache.Set(token, user)
	}
}

func (s *AuthService) forgetUser(userID uint) {
	s.cache.RemoveWhere(func(_ string, u model.User) bool { return u.ID == userID })
}

// userValidationError 只暴露字段和规则，不带 validator 的内部描述
func userValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "email":
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	case "max":
		return fmt.Errorf("%w: %s must be at most %s characters", ErrInvalidInput, strings.ToLower(fe.Field()), fe.Param())
	}
	return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, strings.ToLower(fe.Field()))
}

// NewSessionToken base64(用户名 + 毫秒时间戳)
func NewSessionToken(username string, at time.Time) string {
	raw := username + strconv.FormatInt(at.UnixMilli(), 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}
