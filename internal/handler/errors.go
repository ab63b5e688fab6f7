package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/user/moviecatalog/internal/model"
	"github.com/user/moviecatalog/internal/repository"
	"github.com/user/moviecatalog/internal/service"
	"github.com/user/moviecatalog/internal/utils"
)

// 通过 HTTP 可读写的资源；sessions 永不暴露
var (
	readable = map[model.Resource]bool{
		model.ResourceCategories: true,
		model.ResourceFilms:      true,
		model.ResourceUsers:      true,
	}
	writable = map[model.Resource]bool{
		model.ResourceCategories: true,
		model.ResourceFilms:      true,
	}
)

// resourceParam 解析路径中的资源名，不在允许列表中时返回 404
func resourceParam(c *gin.Context, allowed map[model.Resource]bool) (model.Resource, bool) {
	res, ok := model.ParseResource(c.Param("resource"))
	if !ok || !allowed[res] {
		utils.NotFound(c, "Unknown resource")
		return "", false
	}
	return res, true
}

// handleError 把服务层和仓库层错误映射为 HTTP 响应，内部错误只写日志
func handleError(c *gin.Context, err error) {
	var (
		colErr *repository.UnknownColumnError
		valErr *repository.InvalidValueError
	)

	switch {
	case errors.Is(err, service.ErrDuplicateUsername):
		utils.BadRequest(c, "Username already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		utils.Unauthorized(c, "Invalid username or password")
	case errors.Is(err, service.ErrInvalidInput):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrUnknownResource):
		utils.NotFound(c, "Unknown resource")
	case errors.Is(err, repository.ErrNotFound):
		utils.NotFound(c, "Record not found")
	case errors.As(err, &colErr):
		utils.BadRequest(c, colErr.Error())
	case errors.As(err, &valErr):
		logrus.WithError(valErr.Err).WithField("column", valErr.Column).Debug("记录值不合法")
		utils.BadRequest(c, valErr.Error())
	case errors.Is(err, repository.ErrInvalidRecord):
		utils.BadRequest(c, repository.ErrInvalidRecord.Error())
	case errors.Is(err, repository.ErrDuplicate):
		utils.BadRequest(c, repository.ErrDuplicate.Error())
	case errors.Is(err, repository.ErrForeignKey):
		utils.BadRequest(c, repository.ErrForeignKey.Error())
	case errors.Is(err, repository.ErrNoRowsMatched),
		errors.Is(err, repository.ErrMissingID),
		errors.Is(err, repository.ErrNothingToUpdate),
		errors.Is(err, repository.ErrMissingCondition):
		utils.BadRequest(c, err.Error())
	default:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("未处理的内部错误")
		utils.InternalServerError(c)
	}
}

func isAPIRequest(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}
