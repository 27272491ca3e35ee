package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按类别分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown       ErrorCode = 1000
	ErrInvalidParam  ErrorCode = 1001
	ErrNotFound      ErrorCode = 1002
	ErrAlreadyExists ErrorCode = 1003
	ErrUnauthorized  ErrorCode = 1004
	ErrTimeout       ErrorCode = 1005
	ErrCanceled      ErrorCode = 1006
	ErrForbidden     ErrorCode = 1007

	// 状态错误 (2000-2999)：会话/回合处于错误的生命周期阶段
	ErrInvalidGameState   ErrorCode = 2000
	ErrGameAlreadyStarted ErrorCode = 2001
	ErrNotEnoughPlayers   ErrorCode = 2002
	ErrGameFull           ErrorCode = 2003
	ErrAlreadyJoined      ErrorCode = 2004
	ErrNotHost            ErrorCode = 2005
	ErrRoundNotOpen       ErrorCode = 2006
	ErrSequenceExhausted  ErrorCode = 2007
	ErrAlreadySubmitted   ErrorCode = 2008
	ErrTooManySessions    ErrorCode = 2009

	// 校验错误 (3000-3999)：输入本身不合法，可恢复
	ErrInvalidExpression ErrorCode = 3000
	ErrWordNotFormable   ErrorCode = 3001
	ErrWordNotInLexicon  ErrorCode = 3002
	ErrWrongRoundType    ErrorCode = 3003
	ErrInvalidInviteCode ErrorCode = 3004
	ErrInviteExpired     ErrorCode = 3005
	ErrEmptyAnswer       ErrorCode = 3006
	ErrIncorrectAnswer   ErrorCode = 3007
	ErrInvalidMode       ErrorCode = 3008

	// 未找到 (4000-4099)
	ErrSessionNotFound ErrorCode = 4000
	ErrPlayerNotFound  ErrorCode = 4001
	ErrInviteNotFound  ErrorCode = 4002
	ErrRequestNotFound ErrorCode = 4003

	// 匹配错误 (4500-4999)
	ErrAlreadyQueued       ErrorCode = 4500
	ErrMatchmakingTimeout  ErrorCode = 4501
	ErrMatchmakingCanceled ErrorCode = 4502

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrSnapshotCodec   ErrorCode = 5004

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigValidate ErrorCode = 6002
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:       "未知错误",
	ErrInvalidParam:  "无效的参数",
	ErrNotFound:      "资源未找到",
	ErrAlreadyExists: "资源已存在",
	ErrUnauthorized:  "身份令牌无效",
	ErrTimeout:       "操作超时",
	ErrCanceled:      "操作已取消",
	ErrForbidden:     "无权操作该资源",

	ErrInvalidGameState:   "游戏状态错误",
	ErrGameAlreadyStarted: "游戏已经开始",
	ErrNotEnoughPlayers:   "玩家人数不足",
	ErrGameFull:           "游戏人数已满",
	ErrAlreadyJoined:      "玩家已在游戏中",
	ErrNotHost:            "只有房主可以开始游戏",
	ErrRoundNotOpen:       "当前没有进行中的回合",
	ErrSequenceExhausted:  "回合已全部结束",
	ErrAlreadySubmitted:   "本回合已提交答案",
	ErrTooManySessions:    "会话数量已达上限",

	ErrInvalidExpression: "无效的算式",
	ErrWordNotFormable:   "单词无法由给定字母组成",
	ErrWordNotInLexicon:  "单词不在词典中",
	ErrWrongRoundType:    "当前回合类型不支持该操作",
	ErrInvalidInviteCode: "无效的邀请码",
	ErrInviteExpired:     "邀请码已过期",
	ErrEmptyAnswer:       "答案不能为空",
	ErrIncorrectAnswer:   "答案错误",
	ErrInvalidMode:       "无效的游戏模式",

	ErrSessionNotFound: "游戏会话不存在",
	ErrPlayerNotFound:  "玩家不存在",
	ErrInviteNotFound:  "邀请码不存在",
	ErrRequestNotFound: "匹配请求不存在",

	ErrAlreadyQueued:       "玩家已在匹配队列中",
	ErrMatchmakingTimeout:  "匹配超时",
	ErrMatchmakingCanceled: "匹配已取消",

	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseUpdate:  "数据库更新失败",
	ErrSnapshotCodec:   "会话快照编解码失败",

	ErrConfigLoad:     "配置加载失败",
	ErrConfigValidate: "配置验证失败",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`            // 错误码
	Message string       `json:"message"`         // 错误消息
	Details string       `json:"details"`         // 详细信息
	Field   string       `json:"field,omitempty"` // 出错的字段
	Cause   error        `json:"-"`               // 原始错误
	Stack   []StackFrame `json:"-"`               // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithField 标记出错的字段
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	wrapped := New(code, details...)
	wrapped.Cause = err
	if wrapped.Details == "" {
		wrapped.Details = err.Error()
	}

	return wrapped
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// As 提取AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := As(err); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// IsState 是否为状态错误
func IsState(err error) bool {
	code := GetCode(err)
	return code >= 2000 && code <= 2999
}

// IsValidation 是否为校验错误
func IsValidation(err error) bool {
	code := GetCode(err)
	return code == ErrInvalidParam || (code >= 3000 && code <= 3999)
}

// IsNotFound 是否为未找到错误
func IsNotFound(err error) bool {
	code := GetCode(err)
	return code == ErrNotFound || (code >= 4000 && code <= 4099)
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()

		// 跳过runtime和本包的调用
		if strings.Contains(frame.Function, "runtime.") ||
			strings.Contains(frame.Function, "github.com/wfunc/countdown-game/internal/errors") {
			if !more {
				break
			}
			continue
		}

		e.Stack = append(e.Stack, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})

		// 只保留前10个栈帧
		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrUnauthorized:
		return 401 // Unauthorized
	case e.Code == ErrForbidden:
		return 403 // Forbidden
	case e.Code == ErrNotFound || (e.Code >= 4000 && e.Code <= 4099):
		return 404 // Not Found
	case e.Code == ErrInvalidParam || (e.Code >= 3000 && e.Code <= 3999):
		return 400 // Bad Request
	case e.Code == ErrAlreadyExists || e.Code == ErrAlreadyQueued || (e.Code >= 2000 && e.Code <= 2999):
		return 409 // Conflict
	case e.Code == ErrTimeout || e.Code == ErrMatchmakingTimeout:
		return 408 // Request Timeout
	case e.Code == ErrCanceled || e.Code == ErrMatchmakingCanceled:
		return 499
	case e.Code >= 5000 && e.Code <= 5999:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
