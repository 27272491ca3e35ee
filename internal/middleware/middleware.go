package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/logger"
)

// 上下文键
const (
	RequestIDKey  = "requestID"
	PlayerIDKey   = "playerID"
	PlayerNameKey = "playerName"
)

// 请求头
const (
	HeaderRequestID  = "X-Request-ID"
	HeaderPlayerID   = "X-Player-ID"
	HeaderPlayerName = "X-Player-Name"
)

// RequestID 为每个请求分配请求ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger 记录请求日志
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// Recovery 捕获panic并返回统一错误
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogPanic(r, debug.Stack())
				appErr := errors.New(errors.ErrUnknown, "internal server error")
				c.AbortWithStatusJSON(http.StatusInternalServerError, errors.NewErrorResponse(appErr, GetRequestID(c)))
			}
		}()
		c.Next()
	}
}

// PlayerIdentity 从请求中提取玩家身份（可选）
//
// 依次读取 X-Player-ID 请求头与 player_id 查询参数。
func PlayerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderPlayerID))
		if id == "" {
			id = strings.TrimSpace(c.Query("player_id"))
		}
		if id != "" {
			c.Set(PlayerIDKey, id)
		}
		if name := strings.TrimSpace(c.GetHeader(HeaderPlayerName)); name != "" {
			c.Set(PlayerNameKey, name)
		}
		c.Next()
	}
}

// GetRequestID 从上下文获取请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// GetPlayerID 从上下文获取玩家ID
func GetPlayerID(c *gin.Context) (string, bool) {
	id := c.GetString(PlayerIDKey)
	return id, id != ""
}

// GetPlayerName 从上下文获取玩家名
func GetPlayerName(c *gin.Context) string {
	return c.GetString(PlayerNameKey)
}
