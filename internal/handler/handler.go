package handler

import (
	"encoding/gob"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/moviecatalog/internal/config"
	"github.com/user/moviecatalog/internal/middleware"
	"github.com/user/moviecatalog/internal/model"
	"github.com/user/moviecatalog/internal/service"
)

func init() {
	// 页面 Session 使用 gob 编码
	gob.Register(model.SessionUser{})
}

// Handler HTTP 处理器
type Handler struct {
	Auth    *service.AuthService
	Catalog *service.CatalogService
	Config  *config.Config
}

// NewHandler 创建处理器
func NewHandler(auth *service.AuthService, catalog *service.CatalogService, cfg *config.Config) *Handler {
	return &Handler{
		Auth:    auth,
		Catalog: catalog,
		Config:  cfg,
	}
}

// RenderData 统一封装公共渲染数据
func (h *Handler) RenderData(c *gin.Context, data gin.H) gin.H {
	res := gin.H{
		"SiteName": h.Config.SiteName,
		"Path":     c.Request.URL.Path,
	}

	// 注入用户信息
	session := sessions.Default(c)
	if userinfo := session.Get("userinfo"); userinfo != nil {
		if su, ok := userinfo.(model.SessionUser); ok {
			res["UserInfo"] = su
		}
	}

	for k, v := range data {
		res[k] = v
	}
	return res
}

// ==================== 页面 ====================

// Index 主页，未登录时跳转到登录页
func (h *Handler) Index(c *gin.Context) {
	user, err := h.Auth.ValidateSession(c.Request.Context(), middleware.SessionToken(c))
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if user == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	// 首页不设置 Title，模板回退到站点名
	c.HTML(http.StatusOK, "index.html", h.RenderData(c, gin.H{
		"Username": user.Username,
		"UserID":   user.ID,
	}))
}

// LoginPage 登录页
func (h *Handler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", h.RenderData(c, gin.H{
		"Title": "Login - " + h.Config.SiteName,
	}))
}

// RegisterPage 注册页
func (h *Handler) RegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", h.RenderData(c, gin.H{
		"Title": "Register - " + h.Config.SiteName,
	}))
}

// NotFound API 路径返回 JSON，其余返回 404 页面
func (h *Handler) NotFound(c *gin.Context) {
	if isAPIRequest(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
		return
	}
	c.HTML(http.StatusNotFound, "404.html", h.RenderData(c, gin.H{
		"Title": "Not Found - " + h.Config.SiteName,
	}))
}
