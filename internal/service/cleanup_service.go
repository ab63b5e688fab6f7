package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/user/moviecatalog/internal/repository"
)

// CleanupService 定期清理孤立的观看记录（外键未生效的 SQLite 库会留下这类数据）
type CleanupService struct {
	repos    *repository.Repositories
	interval time.Duration
}

// NewCleanupService 创建清理服务
func NewCleanupService(repos *repository.Repositories) *CleanupService {
	return &CleanupService{repos: repos, interval: 24 * time.Hour}
}

// Start 启动定时清理任务，ctx 取消后退出
func (s *CleanupService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()

		// 启动时先运行一次
		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 执行一次清理，返回删除的行数
func (s *CleanupService) RunOnce(ctx context.Context) int64 {
	removed, err := s.repos.Watched.PruneOrphans(ctx)
	if err != nil {
		logrus.WithError(err).Error("[CleanupService] 清理孤立观看记录失败")
		return 0
	}
	if removed > 0 {
		logrus.WithField("removed", removed).Info("[CleanupService] 已清理孤立观看记录")
	}
	return removed
}
