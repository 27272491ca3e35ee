package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/game"
	"github.com/wfunc/countdown-game/internal/matchmaking"
	"github.com/wfunc/countdown-game/internal/middleware"
	"go.uber.org/zap"
)

// GameHandler 对局处理器
type GameHandler struct {
	coordinator *game.Coordinator
	queue       *matchmaking.Queue
	logger      *zap.Logger
}

// NewGameHandler 创建对局处理器
func NewGameHandler(coordinator *game.Coordinator, queue *matchmaking.Queue, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		coordinator: coordinator,
		queue:       queue,
		logger:      logger,
	}
}

// CreateGameRequest 创建对局请求
type CreateGameRequest struct {
	Mode       string `json:"mode"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Difficulty string `json:"difficulty"`
	Rated      *bool  `json:"rated"`
}

// PlayerRequest 只携带玩家身份的请求
type PlayerRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// SubmitRequest 提交答案请求
type SubmitRequest struct {
	PlayerID   string `json:"player_id"`
	Answer     string `json:"answer"`
	Expression string `json:"expression"`
}

// bindPlayer 解析可选请求体并确定玩家身份
func bindPlayer(c *gin.Context) (*PlayerRequest, bool) {
	var req PlayerRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return nil, false
	}
	id, err := playerFrom(c, req.PlayerID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	req.PlayerID = id
	if req.PlayerName == "" {
		req.PlayerName = middleware.GetPlayerName(c)
	}
	return &req, true
}

// Create 创建对局
func (h *GameHandler) Create(c *gin.Context) {
	var req CreateGameRequest
	if !bindJSON(c, &req) {
		return
	}
	playerID, err := playerFrom(c, req.PlayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}

	var opts []game.GameOption
	if req.Difficulty != "" {
		d, err := game.ParseDifficulty(req.Difficulty)
		if err != nil {
			respondError(c, err)
			return
		}
		opts = append(opts, game.WithDifficulty(d))
	}
	if req.Rated != nil && !*req.Rated {
		opts = append(opts, game.Unrated())
	}

	name := req.PlayerName
	if name == "" {
		name = middleware.GetPlayerName(c)
	}
	m, err := h.coordinator.CreateGame(c.Request.Context(), mode, playerID, name, opts...)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, m)
}

// Get 查询对局
func (h *GameHandler) Get(c *gin.Context) {
	m, err := h.coordinator.GetGameState(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, m)
}

// Join 加入对局
func (h *GameHandler) Join(c *gin.Context) {
	req, ok := bindPlayer(c)
	if !ok {
		return
	}
	m, err := h.coordinator.JoinGame(c.Request.Context(), c.Param("id"), req.PlayerID, req.PlayerName)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, m)
}

// Start 房主开始对局
func (h *GameHandler) Start(c *gin.Context) {
	req, ok := bindPlayer(c)
	if !ok {
		return
	}
	m, err := h.coordinator.StartGame(c.Request.Context(), c.Param("id"), req.PlayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, m)
}

// Submit 提交答案
//
// 答案无效时仍然返回200，提交结果中带有原因。
func (h *GameHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if !bindJSON(c, &req) {
		return
	}
	playerID, err := playerFrom(c, req.PlayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.coordinator.SubmitAnswer(c.Request.Context(), c.Param("id"), playerID, req.Answer, req.Expression)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}

// Buzz 谜题回合抢答
func (h *GameHandler) Buzz(c *gin.Context) {
	req, ok := bindPlayer(c)
	if !ok {
		return
	}
	accepted, err := h.coordinator.BuzzIn(c.Request.Context(), c.Param("id"), req.PlayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"accepted": accepted})
}

// CreateInvite 为等待中的对局生成邀请码
func (h *GameHandler) CreateInvite(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	if _, err := h.coordinator.GetGameState(ctx, sessionID); err != nil {
		respondError(c, err)
		return
	}
	inv, err := h.queue.CreateInviteCode(ctx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.coordinator.SetInviteCode(ctx, sessionID, inv.Code); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, inv)
}

// RedeemInvite 使用邀请码入座
func (h *GameHandler) RedeemInvite(c *gin.Context) {
	req, ok := bindPlayer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sessionID, err := h.queue.RedeemInviteCode(ctx, c.Param("code"), req.PlayerID, req.PlayerName)
	if err != nil {
		respondError(c, err)
		return
	}
	m, err := h.coordinator.GetGameState(ctx, sessionID)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrSessionNotFound))
		return
	}
	h.logger.Info("邀请码入座",
		zap.String("session_id", sessionID),
		zap.String("player_id", req.PlayerID))
	respondOK(c, http.StatusOK, m)
}
