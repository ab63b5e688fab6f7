package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"github.com/user/moviecatalog/internal/config"
	"github.com/user/moviecatalog/internal/handler"
	"github.com/user/moviecatalog/internal/logger"
	"github.com/user/moviecatalog/internal/middleware"
	"github.com/user/moviecatalog/internal/repository"
	"github.com/user/moviecatalog/internal/router"
	"github.com/user/moviecatalog/internal/service"
	"gorm.io/gorm"
)

func main() {
	app := &cli.Command{
		Name:  "moviecatalog",
		Usage: "Movie catalog web service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file",
				Value: ".env",
			},
		},
		Before:   loadEnv,
		Action:   serve,
		Commands: []*cli.Command{serveCommand(), migrateCommand()},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server (default)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port, overrides PORT",
			},
		},
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create tables and seed default categories, then exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			logrus.Info("数据库迁移完成")
			return nil
		},
	}
}

// loadEnv 加载 .env 并初始化日志
func loadEnv(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := godotenv.Load(cmd.String("env-file")); err != nil {
		logrus.Debug("未找到 .env 文件，使用系统环境变量")
	}
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	return ctx, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := repository.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		closeDB(db)
		return nil, err
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.WithError(err).Warn("关闭数据库连接池失败")
		}
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Load()
	if port := cmd.String("port"); port != "" {
		cfg.Port = port
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	repos := repository.NewRepositories(db)
	auth := service.NewAuthService(repos.User, repos.Session, cfg.BcryptCost, cfg.CacheTTL)
	catalog := service.NewCatalogService(repos, cfg.CacheTTL)
	h := handler.NewHandler(auth, catalog, cfg)

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	// 启动定时清理任务
	service.NewCleanupService(repos).Start(bgCtx)

	limiter := middleware.NewLoginLimiter(cfg.LoginRatePerMin, cfg.LoginBurst)
	limiter.StartJanitor(bgCtx)

	r := router.NewEngine(cfg)
	router.RegisterRoutes(r, h, limiter)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logrus.Info("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logrus.Info("服务器已退出")
	return nil
}
