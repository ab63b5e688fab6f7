package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/user/moviecatalog/internal/middleware"
	"github.com/user/moviecatalog/internal/model"
	"github.com/user/moviecatalog/internal/repository"
	"github.com/user/moviecatalog/internal/utils"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

type watchedRequest struct {
	FilmID  uint  `json:"film_id" binding:"required"`
	Watched *bool `json:"watched" binding:"required"`
	UserID  *uint `json:"user_id"`
}

// ==================== 认证 ====================

// Register 注册
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "")
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		handleError(c, err)
		return
	}
	h.Catalog.Invalidate(model.ResourceUsers)

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login 登录，设置 sessionId Cookie
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "")
		return
	}

	token, user, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}

	// gin 的 SetCookie 会对值做 URL 编码，base64 中的 '+' 会被改写，这里直接写原始值
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Config.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 保存 UserInfo 到页面 Session
	session := sessions.Default(c)
	session.Set("userinfo", model.SessionUser{ID: user.ID, Username: user.Username})
	if err := session.Save(); err != nil {
		logrus.WithError(err).Warn("保存页面 Session 失败")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"sessionId": token,
		"user":      user,
	})
}

// Logout 清除 Cookie；服务端会话行保留，直到下次登录被覆盖
func (h *Handler) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		logrus.WithError(err).Warn("清除页面 Session 失败")
	}

	utils.Message(c, http.StatusOK, "Logged out")
}

// ==================== 读取 ====================

// ListUsers 用户列表，无需登录
func (h *Handler) ListUsers(c *gin.Context) {
	rows, err := h.Catalog.Read(c.Request.Context(), model.ResourceUsers, queryFilter(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// List 通用读取，支持 ?列=值 过滤
func (h *Handler) List(c *gin.Context) {
	switch c.Param("resource") {
	case "user_films", "films-watched":
		h.Watched(c)
		return
	case "id_users":
		h.IdUsers(c)
		return
	}

	res, ok := resourceParam(c, readable)
	if !ok {
		return
	}
	rows, err := h.Catalog.Read(c.Request.Context(), res, queryFilter(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Watched 当前用户已看的电影
func (h *Handler) Watched(c *gin.Context) {
	rows, err := h.Catalog.WatchedByUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// IdUsers 用户 ID 到用户名的映射
func (h *Handler) IdUsers(c *gin.Context) {
	names, err := h.Catalog.UsernamesByID(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

// ==================== 写入 ====================

// UpdateWatchedStatus 设置当前用户对某部电影的观看状态
func (h *Handler) UpdateWatchedStatus(c *gin.Context) {
	var req watchedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "")
		return
	}

	userID := middleware.GetUserID(c)
	if req.UserID != nil && *req.UserID != userID {
		utils.Forbidden(c, "Cannot change watched status of another user")
		return
	}

	if err := h.Catalog.UpsertWatchedStatus(c.Request.Context(), userID, req.FilmID, *req.Watched); err != nil {
		handleError(c, err)
		return
	}
	utils.Message(c, http.StatusOK, "Watched status updated")
}

// Create 通用插入
func (h *Handler) Create(c *gin.Context) {
	res, ok := resourceParam(c, writable)
	if !ok {
		return
	}
	var record map[string]any
	if err := c.ShouldBindJSON(&record); err != nil || record == nil {
		utils.BadRequest(c, "")
		return
	}

	row, err := h.Catalog.Insert(c.Request.Context(), res, record, middleware.GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

// Update 通用更新，记录必须带主键
func (h *Handler) Update(c *gin.Context) {
	res, ok := resourceParam(c, writable)
	if !ok {
		return
	}
	var record map[string]any
	if err := c.ShouldBindJSON(&record); err != nil || record == nil {
		utils.BadRequest(c, "")
		return
	}

	row, err := h.Catalog.Update(c.Request.Context(), res, record)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Record updated in table %q", string(res)),
		"data":    row,
	})
}

// Delete 通用删除，请求体中的第一个键值对作为条件
func (h *Handler) Delete(c *gin.Context) {
	res, ok := resourceParam(c, writable)
	if !ok {
		return
	}
	cond, err := firstPair(c.Request.Body)
	if err != nil {
		utils.BadRequest(c, "")
		return
	}

	msg, err := h.Catalog.Delete(c.Request.Context(), res, cond)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.Message(c, http.StatusOK, msg)
}

// queryFilter 查询参数转为过滤条件，同名参数只取第一个
func queryFilter(c *gin.Context) map[string]any {
	query := c.Request.URL.Query()
	if len(query) == 0 {
		return nil
	}
	filter := make(map[string]any, len(query))
	for k, vs := range query {
		if len(vs) > 0 {
			filter[k] = vs[0]
		}
	}
	return filter
}

// firstPair 按文档顺序读取 JSON 对象的第一个键值对；空对象返回零值条件
func firstPair(body io.Reader) (repository.Condition, error) {
	var cond repository.Condition
	if body == nil {
		return cond, errors.New("empty body")
	}

	dec := json.NewDecoder(body)
	tok, err := dec.Token()
	if err != nil {
		return cond, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return cond, errors.New("condition must be a JSON object")
	}
	if !dec.More() {
		return cond, nil
	}

	key, err := dec.Token()
	if err != nil {
		return cond, err
	}
	cond.Column, _ = key.(string)
	if err := dec.Decode(&cond.Value); err != nil {
		return cond, err
	}
	return cond, nil
}
