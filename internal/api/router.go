package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/countdown-game/internal/config"
	"github.com/wfunc/countdown-game/internal/game"
	"github.com/wfunc/countdown-game/internal/matchmaking"
	"github.com/wfunc/countdown-game/internal/middleware"
	"github.com/wfunc/countdown-game/internal/rating"
	ws "github.com/wfunc/countdown-game/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies 路由依赖的服务
type Dependencies struct {
	DB          *gorm.DB
	Coordinator *game.Coordinator
	Queue       *matchmaking.Queue
	Ratings     *rating.Service
	Hub         *ws.Hub
	Tokens      *middleware.TokenVerifier
	WebSocket   config.WebSocketConfig
	Logger      *zap.Logger
}

// Router API路由器
type Router struct {
	engine *gin.Engine
	deps   Dependencies

	games       *GameHandler
	matchmaking *MatchmakingHandler
	ratings     *RatingHandler
	websocket   *WebSocketHandler
	log         *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps Dependencies) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.PlayerIdentity())
	engine.Use(middleware.PlayerToken(deps.Tokens))

	r := &Router{
		engine:      engine,
		deps:        deps,
		games:       NewGameHandler(deps.Coordinator, deps.Queue, deps.Logger),
		matchmaking: NewMatchmakingHandler(deps.Queue, deps.Ratings, deps.Logger),
		ratings:     NewRatingHandler(deps.Ratings),
		websocket:   NewWebSocketHandler(deps.Hub, deps.WebSocket, deps.Logger),
		log:         deps.Logger,
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		games := v1.Group("/games")
		{
			games.POST("", r.games.Create)
			games.GET("/:id", r.games.Get)
			games.POST("/:id/join", r.games.Join)
			games.POST("/:id/start", r.games.Start)
			games.POST("/:id/answers", r.games.Submit)
			games.POST("/:id/buzz", r.games.Buzz)
			games.POST("/:id/invite", r.games.CreateInvite)
		}

		v1.POST("/invites/:code/redeem", r.games.RedeemInvite)

		queue := v1.Group("/matchmaking/queue")
		{
			queue.POST("", r.matchmaking.Enqueue)
			queue.GET("/:playerId", r.matchmaking.Position)
			queue.DELETE("/:playerId", r.matchmaking.Cancel)
		}

		v1.GET("/ratings/:playerId", r.ratings.Get)
		v1.GET("/ratings/:playerId/history", r.ratings.History)
		v1.GET("/leaderboard", r.ratings.Leaderboard)
	}

	path := r.deps.WebSocket.Path
	if path == "" {
		path = "/ws"
	}
	r.engine.GET(path, r.websocket.Connect)

	r.engine.NoRoute(notFound)
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	status := gin.H{
		"status":          "healthy",
		"active_sessions": r.deps.Coordinator.ActiveSessions(),
		"queue_size":      r.deps.Queue.Size(),
	}
	if r.deps.Hub != nil {
		status["online"] = r.deps.Hub.OnlineCount()
	}

	if r.deps.DB != nil {
		sqlDB, err := r.deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "数据库连接失败",
			})
			return
		}
	}

	c.JSON(http.StatusOK, status)
}

// Handler 返回HTTP处理器
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
