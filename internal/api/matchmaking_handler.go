package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/matchmaking"
	"github.com/wfunc/countdown-game/internal/middleware"
	"github.com/wfunc/countdown-game/internal/rating"
	"go.uber.org/zap"
)

// MatchmakingHandler 匹配处理器
type MatchmakingHandler struct {
	queue   *matchmaking.Queue
	ratings *rating.Service
	logger  *zap.Logger
}

// NewMatchmakingHandler 创建匹配处理器
func NewMatchmakingHandler(queue *matchmaking.Queue, ratings *rating.Service, logger *zap.Logger) *MatchmakingHandler {
	return &MatchmakingHandler{
		queue:   queue,
		ratings: ratings,
		logger:  logger,
	}
}

// EnqueueRequest 入队请求
type EnqueueRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Mode     string `json:"mode"`
	// Wait 为 true 时阻塞到匹配成功、超时或请求取消
	Wait bool `json:"wait"`
}

// Enqueue 加入匹配队列，等级分取自等级分服务
func (h *MatchmakingHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if !bindJSON(c, &req) {
		return
	}
	playerID, err := playerFrom(c, req.PlayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	name := req.Name
	if name == "" {
		name = middleware.GetPlayerName(c)
	}

	ctx := c.Request.Context()
	current, err := h.ratings.GetRating(ctx, playerID)
	if err != nil {
		respondError(c, err)
		return
	}

	mreq := matchmaking.Request{
		PlayerID: playerID,
		Name:     name,
		Rating:   current,
		Mode:     req.Mode,
	}

	if req.Wait {
		pairing, err := h.queue.Search(ctx, mreq)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, &matchmaking.EnqueueResult{Pairing: pairing, QueueSize: h.queue.Size()})
		return
	}

	res, err := h.queue.Enqueue(ctx, mreq)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusAccepted
	if res.Pairing != nil {
		status = http.StatusOK
	}
	respondOK(c, status, res)
}

// Position 查询排队位置
func (h *MatchmakingHandler) Position(c *gin.Context) {
	pos, err := h.queue.Position(c.Param("playerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"position": pos, "queue_size": h.queue.Size()})
}

// Cancel 退出匹配队列，只能撤回自己的请求
func (h *MatchmakingHandler) Cancel(c *gin.Context) {
	target := c.Param("playerId")
	caller, err := playerFrom(c, "")
	if err != nil {
		respondError(c, err)
		return
	}
	if caller != target {
		respondError(c, errors.Newf(errors.ErrForbidden, "player %s cannot cancel %s", caller, target).WithField("player_id"))
		return
	}
	if err := h.queue.Cancel(target); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
