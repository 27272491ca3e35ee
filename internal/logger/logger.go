package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/countdown-game/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu       sync.RWMutex
	root     *zap.Logger
	fallback = sync.OnceValue(func() *zap.Logger {
		l, err := zap.NewProduction()
		if err != nil {
			return zap.NewNop()
		}
		return l
	})

	// 全局级别，SetLevel 可在运行时调整
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	// 模块日志器及其独立级别
	modules      map[string]*zap.Logger
	moduleLevels map[string]zap.AtomicLevel
)

// sinks 日志输出目标
type sinks struct {
	encoder zapcore.Encoder
	main    []zapcore.WriteSyncer
	errors  zapcore.WriteSyncer
}

// Init 初始化日志系统，可重复调用，后一次配置覆盖前一次
func Init(cfg *config.LogConfig) error {
	out, err := openSinks(cfg)
	if err != nil {
		return err
	}
	level.SetLevel(parseLevel(cfg.Level))

	cores := make([]zapcore.Core, 0, len(out.main)+1)
	for _, ws := range out.main {
		cores = append(cores, zapcore.NewCore(out.encoder, ws, level))
	}
	if out.errors != nil {
		cores = append(cores, zapcore.NewCore(out.encoder, out.errors, zapcore.ErrorLevel))
	}
	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	// 模块日志器写入相同目标，级别单独控制
	mods := make(map[string]*zap.Logger, len(cfg.Modules))
	levels := make(map[string]zap.AtomicLevel, len(cfg.Modules))
	for module, lv := range cfg.Modules {
		al := zap.NewAtomicLevelAt(parseLevel(lv))
		moduleCores := make([]zapcore.Core, 0, len(out.main))
		for _, ws := range out.main {
			moduleCores = append(moduleCores, zapcore.NewCore(out.encoder, ws, al))
		}
		mods[module] = zap.New(zapcore.NewTee(moduleCores...), zap.AddCaller()).Named(module)
		levels[module] = al
	}

	mu.Lock()
	root = l
	modules = mods
	moduleLevels = levels
	mu.Unlock()
	return nil
}

// openSinks 按配置创建编码器与输出
func openSinks(cfg *config.LogConfig) (*sinks, error) {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "module",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	out := &sinks{}
	if strings.EqualFold(cfg.Format, "json") {
		out.encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		out.encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	switch cfg.Output {
	case "", "stdout":
		out.main = append(out.main, zapcore.Lock(os.Stdout))
	case "stderr":
		out.main = append(out.main, zapcore.Lock(os.Stderr))
	case "file", "both":
		if cfg.Output == "both" {
			out.main = append(out.main, zapcore.Lock(os.Stdout))
		}
		if err := os.MkdirAll(cfg.File.Path, 0755); err != nil {
			return nil, err
		}
		filename := cfg.File.Filename
		if filename == "" {
			filename = "countdown.log"
		}
		out.main = append(out.main, zapcore.AddSync(rotating(cfg.File, filename)))
		out.errors = zapcore.AddSync(rotating(cfg.File, "error.log"))
	default:
		out.main = append(out.main, zapcore.Lock(os.Stdout))
	}
	return out, nil
}

// rotating 按大小轮转的日志文件
func rotating(cfg config.LogFileConfig, filename string) io.Writer {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Path, filename),
		MaxSize:    cfg.MaxSize, // MB
		MaxAge:     cfg.MaxAge,  // 天
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}

func parseLevel(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 获取根日志器，未初始化时返回生产环境默认日志器
func GetLogger() *zap.Logger {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l == nil {
		return fallback()
	}
	return l
}

// GetModuleLogger 获取模块日志器，未单独配置的模块使用根日志器
func GetModuleLogger(module string) *zap.Logger {
	mu.RLock()
	l, ok := modules[module]
	mu.RUnlock()
	if ok {
		return l
	}
	return GetLogger().Named(module)
}

// SetLevel 动态设置全局日志级别
func SetLevel(s string) {
	level.SetLevel(parseLevel(s))
}

// CurrentLevel 当前全局日志级别
func CurrentLevel() zapcore.Level {
	return level.Level()
}

// SetModuleLevel 动态设置模块日志级别，返回模块是否已配置
func SetModuleLevel(module, s string) bool {
	mu.RLock()
	al, ok := moduleLevels[module]
	mu.RUnlock()
	if ok {
		al.SetLevel(parseLevel(s))
	}
	return ok
}

// Sync 同步日志缓冲区
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return nil
	}
	return root.Sync()
}

// Debug 输出调试日志
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Info 输出信息日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Warn 输出警告日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error 输出错误日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogRequest 记录HTTP请求
func LogRequest(method, path string, status int, latency time.Duration, clientIP string) {
	l := GetModuleLogger("http")
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("client_ip", clientIP),
	}
	switch {
	case status >= 500:
		l.Error("request", fields...)
	case status >= 400:
		l.Warn("request", fields...)
	default:
		l.Info("request", fields...)
	}
}

// LogPanic 记录panic
func LogPanic(recovered interface{}, stack []byte) {
	GetLogger().Error("panic recovered",
		zap.Any("panic", recovered),
		zap.ByteString("stack", stack),
	)
}
