package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/user/moviecatalog/internal/model"
)

// SessionCookie 会话 Cookie 名称
const SessionCookie = "sessionId"

// 上下文键
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
)

// SessionValidator 根据令牌查找用户，令牌无效时返回 (nil, nil)
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.User, error)
}

// RequireSession 必须登录中间件
func RequireSession(auth SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.ValidateSession(c.Request.Context(), SessionToken(c))
		if err != nil {
			logrus.WithError(err).Error("会话校验失败")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		if user == nil {
			// 页面请求重定向到登录页
			if strings.Contains(c.GetHeader("Accept"), "text/html") {
				c.Redirect(http.StatusFound, "/login")
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxUsername, user.Username)
		c.Next()
	}
}

// SessionToken 从 Cookie 或 Authorization 头中取令牌。
// 令牌是标准 base64，可能含有 '+'，这里读取原始值而不做 URL 解码。
func SessionToken(c *gin.Context) string {
	if cookie, err := c.Request.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// GetUserID 从上下文获取用户 ID（未登录返回 0）
func GetUserID(c *gin.Context) uint {
	if userID, exists := c.Get(ctxUserID); exists {
		return userID.(uint)
	}
	return 0
}

// GetUsername 从上下文获取用户名
func GetUsername(c *gin.Context) string {
	return c.GetString(ctxUsername)
}
