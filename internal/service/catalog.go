package service

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/user/moviecatalog/internal/model"
	"github.com/user/moviecatalog/internal/repository"
	"github.com/user/moviecatalog/internal/utils"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyUsernames  = "id_users"
	cacheKeyCategories = "categories"
)

// CatalogService 通用资源读写，缓存用户名映射和分类列表
type CatalogService struct {
	repos *repository.Repositories
	cache *cache.Cache
	group singleflight.Group
}

// NewCatalogService ttl 为读缓存有效期
func NewCatalogService(repos *repository.Repositories, ttl time.Duration) *CatalogService {
	return &CatalogService{
		repos: repos,
		cache: utils.NewCache(ttl),
	}
}

// Read 读取资源；不带过滤条件的分类列表走缓存
func (s *CatalogService) Read(ctx context.Context, res model.Resource, filter map[string]any) (any, error) {
	if res == model.ResourceCategories && len(filter) == 0 {
		return s.cached(cacheKeyCategories, func() (any, error) {
			return s.repos.Catalog.Read(ctx, res, nil)
		})
	}
	return s.repos.Catalog.Read(ctx, res, filter)
}

// UsernamesByID id → 用户名
func (s *CatalogService) UsernamesByID(ctx context.Context) (map[uint]string, error) {
	v, err := s.cached(cacheKeyUsernames, func() (any, error) {
		return s.repos.User.UsernamesByID(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[uint]string), nil
}

// Insert 插入记录；电影未指定作者时记为当前用户
func (s *CatalogService) Insert(ctx context.Context, res model.Resource, record map[string]any, callerID uint) (any, error) {
	if res == model.ResourceFilms && callerID != 0 {
		if _, ok := record["author_id"]; !ok {
			record["author_id"] = callerID
		}
	}
	row, err := s.repos.Catalog.Insert(ctx, res, record)
	if err != nil {
		return nil, err
	}
	s.Invalidate(res)
	return row, nil
}

// Update 按主键更新
func (s *CatalogService) Update(ctx context.Context, res model.Resource, record map[string]any) (any, error) {
	row, err := s.repos.Catalog.Update(ctx, res, record)
	if err != nil {
		return nil, err
	}
	s.Invalidate(res)
	return row, nil
}

// Delete 按单列条件删除
func (s *CatalogService) Delete(ctx context.Context, res model.Resource, cond repository.Condition) (string, error) {
	msg, err := s.repos.Catalog.Delete(ctx, res, cond)
	if err != nil {
		return "", err
	}
	s.Invalidate(res)
	return msg, nil
}

// UpsertWatchedStatus 设置用户对电影的观看状态
func (s *CatalogService) UpsertWatchedStatus(ctx context.Context, userID, filmID uint, watched bool) error {
	return s.repos.Watched.Upsert(ctx, userID, filmID, watched)
}

// WatchedByUser 用户已看的记录
func (s *CatalogService) WatchedByUser(ctx context.Context, userID uint) ([]model.UserFilm, error) {
	return s.repos.Watched.ListWatchedByUser(ctx, userID)
}

// Invalidate 资源被写入后清除相关缓存
func (s *CatalogService) Invalidate(res model.Resource) {
	switch res {
	case model.ResourceUsers:
		s.forget(cacheKeyUsernames)
	case model.ResourceCategories:
		s.forget(cacheKeyCategories)
	}
}

func (s *CatalogService) forget(key string) {
	s.cache.Delete(key)
	s.group.Forget(key)
}

// cached 先查缓存，未命中时同一个 key 只加载一次
func (s *CatalogService) cached(key string, load func() (any, error)) (any, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		s.cache.SetDefault(key, v)
		return v, nil
	})
	return v, err
}
