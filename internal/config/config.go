package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSecret = "your-secret-key-change-in-production"

// 支持的数据库驱动
const (
	DriverPostgres = "postgres" // gorm + pgx
	DriverPQ       = "pq"       // gorm + lib/pq
	DriverSQLite   = "sqlite"
)

// Config 应用配置
type Config struct {
	Env          string
	AppSecret    string
	Port         string
	SiteName     string
	DBDriver     string
	DatabaseURL  string
	SQLitePath   string
	TemplatesDir string
	PublicDir    string

	SessionMaxAge time.Duration
	CookieSecure  bool
	BcryptCost    int

	LoginRatePerMin int
	LoginBurst      int
	CacheTTL        time.Duration

	LogLevel  string
	LogFormat string
}

// Load 加载配置
func Load() *Config {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "moviecatalog")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	env := getEnv("APP_ENV", "development")
	appSecret := getEnv("APP_SECRET", defaultSecret)
	if env == "production" && appSecret == defaultSecret {
		logrus.Warn("生产环境正在使用默认密钥，请立即设置 APP_SECRET 环境变量")
	}

	return &Config{
		Env:          env,
		AppSecret:    appSecret,
		Port:         getEnv("PORT", "8080"),
		SiteName:     getEnv("SITE_NAME", "Movie Catalog"),
		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DatabaseURL:  getEnv("DATABASE_URL", dbURL),
		SQLitePath:   getEnv("SQLITE_PATH", "moviecatalog.db"),
		TemplatesDir: getEnv("TEMPLATES_DIR", "./web/templates"),
		PublicDir:    getEnv("PUBLIC_DIR", "./web/public"),

		SessionMaxAge: time.Duration(getEnvInt("SESSION_MAX_AGE_DAYS", 30)) * 24 * time.Hour,
		CookieSecure:  getEnvBool("COOKIE_SECURE", false),
		BcryptCost:    getEnvInt("BCRYPT_COST", 10),

		LoginRatePerMin: getEnvPositiveInt("LOGIN_RATE_PER_MIN", 10),
		LoginBurst:      getEnvPositiveInt("LOGIN_BURST", 5),
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_SECONDS", 60)) * time.Second,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvPositiveInt 非正数同样回退到默认值
func getEnvPositiveInt(key string, defaultValue int) int {
	if v := getEnvInt(key, defaultValue); v > 0 {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
