package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/rating"
)

// RatingHandler 等级分处理器
type RatingHandler struct {
	ratings *rating.Service
}

// NewRatingHandler 创建等级分处理器
func NewRatingHandler(ratings *rating.Service) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// Get 查询玩家等级分，未登记的玩家返回默认值
func (h *RatingHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	playerID := c.Param("playerId")

	player, err := h.ratings.GetPlayer(ctx, playerID)
	if err == nil {
		respondOK(c, http.StatusOK, player)
		return
	}
	if !errors.Is(err, errors.ErrPlayerNotFound) {
		respondError(c, err)
		return
	}
	current, err := h.ratings.GetRating(ctx, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"player_id": playerID, "rating": current, "games_played": 0})
}

// History 玩家对局历史
func (h *RatingHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	records, p, err := h.ratings.History(c.Request.Context(), c.Param("playerId"), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"records":   records,
		"total":     p.Total,
		"page":      p.Page,
		"page_size": p.PageSize,
		"has_more":  p.HasMore(),
	})
}

// Leaderboard 排行榜
func (h *RatingHandler) Leaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam).WithField("limit"))
		return
	}
	entries, err := h.ratings.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}
