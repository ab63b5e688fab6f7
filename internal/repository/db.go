package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/user/moviecatalog/internal/config"
	"github.com/user/moviecatalog/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 根据配置打开数据库连接
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return Open(config.DriverSQLite, cfg.SQLitePath)
	case config.DriverPostgres, config.DriverPQ:
		return Open(cfg.DBDriver, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %q", cfg.DBDriver)
	}
}

// Open 打开连接并设置连接池
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	case config.DriverPQ:
		// lib/pq 以 "postgres" 名称注册到 database/sql（由 errors.go 的导入完成）
		dialector = postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn})
	case config.DriverSQLite:
		dialector = sqlite.Open(withForeignKeys(dsn))
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接失败: %w", err)
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池；SQLite 写入本就串行，内存库也只能在单连接上共享
	if driver == config.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// newGormLogger SQL 日志走 logrus；未找到记录属于正常分支，不记录
func newGormLogger() logger.Interface {
	return logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	if dsn == ":memory:" {
		dsn = "file::memory:"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// Migrate 建表并写入默认分类
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(model.AllModels()...); err != nil {
		return fmt.Errorf("自动迁移失败: %w", err)
	}

	var count int64
	if err := db.WithContext(ctx).Model(&model.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("统计分类失败: %w", err)
	}
	if count > 0 {
		return nil
	}

	categories := make([]model.Category, 0, len(model.DefaultCategories))
	for _, name := range model.DefaultCategories {
		categories = append(categories, model.Category{Name: name})
	}
	if err := db.WithContext(ctx).Create(&categories).Error; err != nil {
		return fmt.Errorf("写入默认分类失败: %w", err)
	}
	logrus.WithField("count", len(categories)).Info("已创建默认分类")
	return nil
}

// Repositories 仓库集合
type Repositories struct {
	DB      *gorm.DB
	User    *UserRepository
	Session *SessionRepository
	Catalog *CatalogRepository
	Watched *WatchedRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:      db,
		User:    NewUserRepository(db),
		Session: NewSessionRepository(db),
		Catalog: NewCatalogRepository(db, validator.New(validator.WithRequiredStructEnabled())),
		Watched: NewWatchedRepository(db),
	}
}
