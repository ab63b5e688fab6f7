package repository

import (
	"context"

	"github.com/user/moviecatalog/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WatchedRepository 用户观看状态
type WatchedRepository struct {
	db *gorm.DB
}

func NewWatchedRepository(db *gorm.DB) *WatchedRepository {
	return &WatchedRepository{db: db}
}

// Upsert 单条语句写入观看状态，(user_id, film_id) 冲突时只更新 watched
func (r *WatchedRepository) Upsert(ctx context.Context, userID, filmID uint, watched bool) error {
	rec := &model.UserFilm{
		UserID:  userID,
		FilmID:  filmID,
		Watched: watched,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "film_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"watched"}),
	}).Create(rec).Error
	return classify(err)
}

// ListWatchedByUser 用户标记为已看的记录
func (r *WatchedRepository) ListWatchedByUser(ctx context.Context, userID uint) ([]model.UserFilm, error) {
	records := []model.UserFilm{}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND watched = ?", userID, true).
		Order("film_id ASC").
		Find(&records).Error
	return records, err
}

// Get 查找单条观看状态，不存在返回 nil
func (r *WatchedRepository) Get(ctx context.Context, userID, filmID uint) (*model.UserFilm, error) {
	var records []model.UserFilm
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND film_id = ?", userID, filmID).
		Limit(1).
		Find(&records).Error
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

// PruneOrphans 删除指向已不存在的用户或电影的记录
func (r *WatchedRepository) PruneOrphans(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("film_id NOT IN (?)", r.db.Model(&model.Film{}).Select("id")).
		Or("user_id NOT IN (?)", r.db.Model(&model.User{}).Select("id")).
		Delete(&model.UserFilm{})
	return result.RowsAffected, result.Error
}
