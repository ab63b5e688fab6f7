package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/moviecatalog/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository 会话存储，每个用户最多一行
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert 写入用户的当前令牌，已有记录则覆盖
func (r *SessionRepository) Upsert(ctx context.Context, userID uint, token string, createdAt time.Time) error {
	session := &model.Session{
		UserID:    userID,
		SessionID: token,
		CreatedAt: createdAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "created_at"}),
	}).Create(session).Error
	return classify(err)
}

// FindByToken 根据令牌查找会话，不存在返回 nil
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("session_id = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByUserID 查找用户当前会话，不存在返回 nil
func (r *SessionRepository) FindByUserID(ctx context.Context, userID uint) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CountByUser 用户的会话行数（正常情况下为 0 或 1）
func (r *SessionRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
