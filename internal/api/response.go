package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/middleware"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, &SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: middleware.GetRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// respondError 把错误转换为统一错误响应
func respondError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, middleware.GetRequestID(c)))
}

// bindJSON 解析请求体，失败时写入参数错误
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return false
	}
	return true
}

// playerFrom 请求体中的玩家ID优先，其次取身份中间件的值
func playerFrom(c *gin.Context, bodyID string) (string, error) {
	if bodyID != "" {
		return bodyID, nil
	}
	if id, ok := middleware.GetPlayerID(c); ok {
		return id, nil
	}
	return "", errors.New(errors.ErrInvalidParam, "player id is required").WithField("player_id")
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, errors.NewErrorResponse(
		errors.New(errors.ErrNotFound, "route not found"), middleware.GetRequestID(c)))
}
