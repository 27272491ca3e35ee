package game

import (
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/round"
)

// Mode 对局模式
type Mode string

const (
	ModeSingle Mode = "single" // 对战电脑
	ModeMulti  Mode = "multi"  // 对战真人
)

// ParseMode 解析对局模式
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModeMulti:
		return Mode(s), nil
	case "":
		return ModeMulti, nil
	default:
		return "", errors.Newf(errors.ErrInvalidMode, "unknown mode %q", s).WithField("mode")
	}
}

// Difficulty 电脑对手难度
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// MaxPlayers 每局玩家数
const MaxPlayers = 2

// DefaultRating 默认等级分
const DefaultRating = 1500

// Player 对局中的玩家
type Player struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Score      int        `json:"score"`
	Rating     int        `json:"rating"`
	IsAI       bool       `json:"is_ai"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
}

// Outcome 回合结束后的走向
type Outcome string

const (
	OutcomeNextRound    Outcome = "next_round"
	OutcomeSuddenDeath  Outcome = "sudden_death"
	OutcomeGameComplete Outcome = "game_complete"
)

// SubmitResult 提交结果
type SubmitResult struct {
	Submission    *round.Submission `json:"submission"`
	RoundComplete bool              `json:"round_complete"`
	Round         *round.Round      `json:"round"`
	State         GameState         `json:"state"`
}
