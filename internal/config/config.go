package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	WebSocket   WebSocketConfig   `mapstructure:"websocket"`
	Game        GameConfig        `mapstructure:"game"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Rating      RatingConfig      `mapstructure:"rating"`
	Lexicon     LexiconConfig     `mapstructure:"lexicon"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig Redis配置（会话快照缓存）
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path            string `mapstructure:"path"`
	ReadBufferSize  int    `mapstructure:"read_buffer_size"`
	WriteBufferSize int    `mapstructure:"write_buffer_size"`
}

// GameConfig 对局配置
type GameConfig struct {
	RoundTimeLimit  time.Duration `mapstructure:"round_time_limit"`
	InterRoundDelay time.Duration `mapstructure:"inter_round_delay"`
	SessionTimeout  time.Duration `mapstructure:"session_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	Layout          string        `mapstructure:"layout"` // 例如 "LLNLLNLLNLLLNLC"
	Scoring         ScoringConfig `mapstructure:"scoring"`
}

// ScoringConfig 计分规则
type ScoringConfig struct {
	NineLetterBonus  int `mapstructure:"nine_letter_bonus"`
	NumbersExact     int `mapstructure:"numbers_exact"`
	NumbersNear      int `mapstructure:"numbers_near"`
	NumbersNearRange int `mapstructure:"numbers_near_range"`
	NumbersFar       int `mapstructure:"numbers_far"`
	NumbersFarRange  int `mapstructure:"numbers_far_range"`
	Conundrum        int `mapstructure:"conundrum"`
}

// MatchmakingConfig 匹配配置
type MatchmakingConfig struct {
	InitialTolerance int           `mapstructure:"initial_tolerance"`
	ToleranceStep    int           `mapstructure:"tolerance_step"`
	MaxTolerance     int           `mapstructure:"max_tolerance"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	InviteTTL        time.Duration `mapstructure:"invite_ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
}

// RatingConfig 等级分配置
type RatingConfig struct {
	DefaultRating    int `mapstructure:"default_rating"`
	ProvisionalGames int `mapstructure:"provisional_games"`
	ProvisionalK     int `mapstructure:"provisional_k"`
	StandardK        int `mapstructure:"standard_k"`
	MasterThreshold  int `mapstructure:"master_threshold"`
	MasterK          int `mapstructure:"master_k"`
	Floor            int `mapstructure:"floor"`
}

// LexiconConfig 词库配置
type LexiconConfig struct {
	WordFile      string `mapstructure:"word_file"`      // 为空时使用内置词库
	ConundrumFile string `mapstructure:"conundrum_file"` // 为空时使用内置九字母词
}

// AuthConfig 玩家身份令牌配置，令牌由外部账号服务签发
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // 为空时不校验令牌，只读取请求头
	Issuer    string `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		// 开发环境下从 .env 加载环境变量，文件不存在时忽略
		_ = godotenv.Load()

		v = viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		v.SetEnvPrefix("COUNTDOWN")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		loaded := &Config{}
		if err = v.Unmarshal(loaded); err != nil {
			return
		}
		if err = loaded.Validate(); err != nil {
			return
		}

		mu.Lock()
		cfg = loaded
		mu.Unlock()
	})

	return err
}

// Default 返回仅包含默认值的配置（测试和嵌入使用）
func Default() *Config {
	dv := viper.New()
	setDefaults(dv)
	c := &Config{}
	_ = dv.Unmarshal(c)
	return c
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "3m")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/countdown.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// Redis默认配置
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "2h")

	// WebSocket默认配置
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)

	// 对局默认配置
	v.SetDefault("game.round_time_limit", "30s")
	v.SetDefault("game.inter_round_delay", "5s")
	v.SetDefault("game.session_timeout", "30m")
	v.SetDefault("game.cleanup_interval", "1m")
	v.SetDefault("game.max_sessions", 10000)
	v.SetDefault("game.layout", "LLNLLNLLNLLLNLC")
	v.SetDefault("game.scoring.nine_letter_bonus", 18)
	v.SetDefault("game.scoring.numbers_exact", 10)
	v.SetDefault("game.scoring.numbers_near", 7)
	v.SetDefault("game.scoring.numbers_near_range", 5)
	v.SetDefault("game.scoring.numbers_far", 5)
	v.SetDefault("game.scoring.numbers_far_range", 10)
	v.SetDefault("game.scoring.conundrum", 10)

	// 匹配默认配置
	v.SetDefault("matchmaking.initial_tolerance", 200)
	v.SetDefault("matchmaking.tolerance_step", 100)
	v.SetDefault("matchmaking.max_tolerance", 500)
	v.SetDefault("matchmaking.poll_interval", "5s")
	v.SetDefault("matchmaking.stale_after", "2m")
	v.SetDefault("matchmaking.invite_ttl", "15m")
	v.SetDefault("matchmaking.sweep_interval", "30s")

	// 等级分默认配置
	v.SetDefault("rating.default_rating", 1500)
	v.SetDefault("rating.provisional_games", 30)
	v.SetDefault("rating.provisional_k", 40)
	v.SetDefault("rating.standard_k", 20)
	v.SetDefault("rating.master_threshold", 2400)
	v.SetDefault("rating.master_k", 10)
	v.SetDefault("rating.floor", 0)

	// 身份令牌默认配置
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "countdown")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "countdown.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}

// BaseRoundCount 一局的常规回合数（不含加赛）
const BaseRoundCount = 15

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Game.RoundTimeLimit <= 0 {
		return fmt.Errorf("game.round_time_limit 必须大于0")
	}
	if len(c.Game.Layout) == 0 {
		return fmt.Errorf("game.layout 不能为空")
	}
	if len(c.Game.Layout) != BaseRoundCount {
		return fmt.Errorf("game.layout 必须包含 %d 个回合，实际 %d 个", BaseRoundCount, len(c.Game.Layout))
	}
	for _, ch := range c.Game.Layout {
		if ch != 'L' && ch != 'N' && ch != 'C' {
			return fmt.Errorf("game.layout 包含无效的回合类型: %q", ch)
		}
	}
	if c.Matchmaking.InitialTolerance > c.Matchmaking.MaxTolerance {
		return fmt.Errorf("matchmaking.initial_tolerance 不能大于 max_tolerance")
	}
	if c.Matchmaking.ToleranceStep < 0 {
		return fmt.Errorf("matchmaking.tolerance_step 不能为负数")
	}
	if c.Rating.Floor < 0 {
		return fmt.Errorf("rating.floor 不能为负数")
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	if v == nil {
		return
	}
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载校验失败: %v\n", err)
			return
		}

		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}

		fmt.Println("配置已重新加载:", e.Name)
	})
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}
