package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	"github.com/wfunc/countdown-game/internal/api"
	"github.com/wfunc/countdown-game/internal/config"
	"github.com/wfunc/countdown-game/internal/database"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/game"
	"github.com/wfunc/countdown-game/internal/lexicon"
	"github.com/wfunc/countdown-game/internal/logger"
	"github.com/wfunc/countdown-game/internal/matchmaking"
	"github.com/wfunc/countdown-game/internal/middleware"
	"github.com/wfunc/countdown-game/internal/rating"
	"github.com/wfunc/countdown-game/internal/repository"
	"github.com/wfunc/countdown-game/internal/round"
	ws "github.com/wfunc/countdown-game/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	redis       *redis.Client
	coordinator *game.Coordinator
	queue       *matchmaking.Queue
	sweeper     gocron.Scheduler
	hub         *ws.Hub
	httpServer  *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 初始化组件并开始监听
func (s *Server) Start() error {
	s.logger.Info("正在启动Countdown对局服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}
	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}
	if err := s.startServices(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动服务失败")
	}

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功", zap.String("http", s.httpServer.Addr))
	return nil
}

// initDatabase 初始化数据库与可选的Redis
func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	client, err := database.InitRedis(s.ctx, &s.cfg.Redis)
	if err != nil {
		return err
	}
	s.redis = client
	return nil
}

// initComponents 组装对局、匹配、等级分与推送组件
func (s *Server) initComponents() error {
	gameCfg := s.cfg.Game

	lex, conundrums, err := loadLexicon(s.cfg.Lexicon, logger.GetModuleLogger("lexicon"))
	if err != nil {
		return err
	}
	layout, err := round.ParseLayout(gameCfg.Layout)
	if err != nil {
		return err
	}
	generator := round.NewGenerator(time.Now().UnixNano(), lex.ConundrumPool(conundrums), gameCfg.RoundTimeLimit)
	scorer := round.NewScorer(lex, scoringRules(gameCfg.Scoring))
	engine := game.NewEngine(generator, scorer, layout, gameCfg.RoundTimeLimit, logger.GetModuleLogger("game"))

	ratings := rating.NewService(repository.NewManager(database.GetDB()), ratingConfig(s.cfg.Rating), logger.GetModuleLogger("rating"))

	var persister game.StatePersister = game.NewDatabaseStatePersister(database.GetDB())
	if s.redis != nil {
		persister = game.NewCacheStatePersister(game.NewRedisStatePersister(s.redis, s.cfg.Redis.TTL), persister)
	}

	s.coordinator = game.NewCoordinator(engine, game.CoordinatorConfig{
		InterRoundDelay:   gameCfg.InterRoundDelay,
		SessionTimeout:    gameCfg.SessionTimeout,
		MaxSessions:       gameCfg.MaxSessions,
		DefaultDifficulty: game.DifficultyMedium,
	}, logger.GetModuleLogger("game"),
		game.WithPersister(persister),
		game.WithRatings(ratings),
		game.WithAI(game.NewAIOpponent(lex, time.Now().UnixNano())),
	)

	s.hub = ws.NewHub(logger.GetModuleLogger("websocket"))
	s.coordinator.AddListener(s.hub)

	s.queue = matchmaking.NewQueue(matchmakingConfig(s.cfg.Matchmaking), logger.GetModuleLogger("matchmaking"),
		matchmaking.WithJoiner(s.coordinator),
		matchmaking.WithPairingHandler(func(ctx context.Context, p *matchmaking.Pairing) (string, error) {
			m, err := s.coordinator.CreateMatch(ctx, p.Requester.PlayerID, p.Requester.Name, p.Opponent.PlayerID, p.Opponent.Name)
			if err != nil {
				return "", err
			}
			return m.ID, nil
		}),
	)

	gin.SetMode(ginMode(s.cfg.Server.Mode))
	router := api.NewRouter(api.Dependencies{
		DB:          database.GetDB(),
		Coordinator: s.coordinator,
		Queue:       s.queue,
		Ratings:     ratings,
		Hub:         s.hub,
		Tokens:      middleware.NewTokenVerifier(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer),
		WebSocket:   s.cfg.WebSocket,
		Logger:      logger.GetModuleLogger("api"),
	})
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return nil
}

// startServices 启动后台任务与HTTP服务
func (s *Server) startServices() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	s.coordinator.StartCleanupTask(s.ctx, s.cfg.Game.CleanupInterval)

	sweeper, err := s.queue.StartSweeper(s.ctx, s.cfg.Matchmaking.SweepInterval)
	if err != nil {
		return err
	}
	s.sweeper = sweeper

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
			s.cancel()
		}
	}()
	return nil
}

// WaitForShutdown 等待退出信号或内部错误
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-s.ctx.Done():
	}
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("关闭HTTP服务失败", zap.Error(err))
	}

	// 保存会话快照后再停止后台任务
	s.coordinator.Shutdown(shutdownCtx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	if s.sweeper != nil {
		if err := s.sweeper.Shutdown(); err != nil {
			s.logger.Warn("关闭调度器失败", zap.Error(err))
		}
	}
	if err := database.CloseRedis(); err != nil {
		s.logger.Error("关闭Redis失败", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return nil
}

// reloadConfig 应用可热更新的配置
//
// 只调整日志级别；s.cfg 启动后只读，其余配置需要重启生效。
func (s *Server) reloadConfig(newCfg *config.Config) {
	logger.SetLevel(newCfg.Log.Level)
	for module, lv := range newCfg.Log.Modules {
		if !logger.SetModuleLevel(module, lv) {
			s.logger.Debug("模块日志器未初始化，忽略级别调整", zap.String("module", module))
		}
	}
	s.logger.Info("配置重新加载完成", zap.String("log_level", newCfg.Log.Level))
}

// loadLexicon 加载词库和谜题词表，未配置文件时使用内置数据
func loadLexicon(cfg config.LexiconConfig, log *zap.Logger) (*lexicon.Service, []string, error) {
	provider := lexicon.DefaultProvider()
	if cfg.WordFile != "" {
		p, err := lexicon.LoadFile(cfg.WordFile)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrConfigLoad, "加载词库失败")
		}
		provider = p
	}
	conundrums := lexicon.DefaultConundrums()
	if cfg.ConundrumFile != "" {
		lines, err := lexicon.LoadLines(cfg.ConundrumFile)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrConfigLoad, "加载谜题词表失败")
		}
		conundrums = lines
	}
	return lexicon.NewService(provider, log), conundrums, nil
}

// ginMode 服务器运行模式对应的gin模式
func ginMode(mode string) string {
	switch mode {
	case "production", "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

func scoringRules(c config.ScoringConfig) round.ScoringRules {
	return round.ScoringRules{
		NineLetterBonus:  c.NineLetterBonus,
		NumbersExact:     c.NumbersExact,
		NumbersNear:      c.NumbersNear,
		NumbersNearRange: c.NumbersNearRange,
		NumbersFar:       c.NumbersFar,
		NumbersFarRange:  c.NumbersFarRange,
		Conundrum:        c.Conundrum,
	}
}

func ratingConfig(c config.RatingConfig) rating.Config {
	return rating.Config{
		DefaultRating:    c.DefaultRating,
		ProvisionalGames: c.ProvisionalGames,
		ProvisionalK:     c.ProvisionalK,
		StandardK:        c.StandardK,
		MasterThreshold:  c.MasterThreshold,
		MasterK:          c.MasterK,
		Floor:            c.Floor,
	}
}

func matchmakingConfig(c config.MatchmakingConfig) matchmaking.Config {
	return matchmaking.Config{
		InitialTolerance: c.InitialTolerance,
		ToleranceStep:    c.ToleranceStep,
		MaxTolerance:     c.MaxTolerance,
		PollInterval:     c.PollInterval,
		StaleAfter:       c.StaleAfter,
		InviteTTL:        c.InviteTTL,
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("Countdown对局服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
