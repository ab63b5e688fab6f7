package router

import (
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/user/moviecatalog/internal/config"
	"github.com/user/moviecatalog/internal/handler"
	"github.com/user/moviecatalog/internal/middleware"
)

// NewEngine 创建带公共中间件、模板和静态文件的 Gin 引擎
func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// 启用 gzip，默认压缩级别
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 页面 Session 只保存展示用的用户信息，鉴权以 sessionId 为准
	store := cookie.NewStore([]byte(cfg.AppSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("mysession", store))

	// 加载模板（使用 multitemplate 解决继承问题）
	r.HTMLRender = LoadTemplates(cfg.TemplatesDir)

	// 静态文件
	r.Static("/public", cfg.PublicDir)

	return r
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler, limiter *middleware.LoginLimiter) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 页面 ====================
	r.GET("/", h.Index)
	r.GET("/login", h.LoginPage)
	r.GET("/register", h.RegisterPage)

	// ==================== 公开 API ====================
	api := r.Group("/api")
	{
		api.GET("/users", h.ListUsers)
		api.POST("/users", h.Register)
		api.POST("/login", limiter.Middleware(), h.Login)
		api.POST("/logout", h.Logout)
	}

	// ==================== 需要登录的 API ====================
	protected := api.Group("")
	protected.Use(middleware.RequireSession(h.Auth))
	{
		protected.POST("/update-watched-status", h.UpdateWatchedStatus)

		protected.GET("/:resource", h.List)
		protected.POST("/:resource", h.Create)
		protected.PUT("/:resource", h.Update)
		protected.DELETE("/:resource", h.Delete)
	}

	r.NoRoute(h.NotFound)
}

// LoadTemplates 使用 multitemplate 加载模板，解决模板继承问题
func LoadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	// 获取布局和局部模板
	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	partials, err := filepath.Glob(templatesDir + "/partials/*.html")
	if err != nil {
		panic(err)
	}

	// 组装模板文件列表，布局放在最前面作为入口模板
	assemble := func(view string) []string {
		files := make([]string, 0, len(layouts)+len(partials)+1)
		files = append(files, layouts...)
		files = append(files, partials...)
		files = append(files, view)
		return files
	}

	// 模板函数
	funcMap := template.FuncMap{
		"default": func(defaultValue, value any) any {
			switch v := value.(type) {
			case string:
				if v == "" {
					return defaultValue
				}
			case nil:
				return defaultValue
			}
			return value
		},
		"asset": func(name string) string {
			return fmt.Sprintf("/public/%s", name)
		},
	}

	// 注册所有页面模板
	pages := []string{"index", "login", "register", "404"}
	for _, page := range pages {
		viewPath := templatesDir + "/pages/" + page + ".html"
		r.AddFromFilesFuncs(page+".html", funcMap, assemble(viewPath)...)
	}

	return r
}
