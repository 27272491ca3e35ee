package game

import (
	"context"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"go.uber.org/zap"
)

// RecoveryAction 恢复后需要协调器执行的动作
type RecoveryAction string

const (
	RecoverNone          RecoveryAction = "none"           // 无需处理
	RecoverResumeRound   RecoveryAction = "resume_round"   // 按剩余时间重新计时
	RecoverCompleteRound RecoveryAction = "complete_round" // 已超时，立即结束回合
	RecoverScheduleNext  RecoveryAction = "schedule_next"  // 安排下一回合
)

// RecoveryPlan 恢复计划
type RecoveryPlan struct {
	Action    RecoveryAction
	Remaining time.Duration
}

// RecoveryManager 对局恢复管理器
type RecoveryManager struct {
	logger    *zap.Logger
	persister StatePersister
	timeout   time.Duration // 快照超过该时长视为失效
}

// NewRecoveryManager 创建恢复管理器
func NewRecoveryManager(logger *zap.Logger, persister StatePersister, timeout time.Duration) *RecoveryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryManager{
		logger:    logger,
		persister: persister,
		timeout:   timeout,
	}
}

// Recover 从快照恢复对局并给出恢复计划
func (rm *RecoveryManager) Recover(ctx context.Context, sessionID string, now time.Time) (*Match, RecoveryPlan, error) {
	snapshot, err := rm.persister.Load(ctx, sessionID)
	if err != nil {
		return nil, RecoveryPlan{}, err
	}
	m := snapshot.Match

	// 未结束的对局快照过旧时丢弃
	if rm.timeout > 0 && !m.IsComplete() && now.Sub(snapshot.SavedAt) > rm.timeout {
		rm.logger.Warn("会话已超时",
			zap.String("session_id", sessionID),
			zap.Time("saved_at", snapshot.SavedAt),
			zap.Duration("timeout", rm.timeout))

		if err := rm.persister.Delete(ctx, sessionID); err != nil {
			rm.logger.Error("删除超时会话失败", zap.Error(err))
		}
		return nil, RecoveryPlan{}, errors.Newf(errors.ErrSessionNotFound, "会话已超时: %s", sessionID)
	}

	plan := rm.strategyFor(m.State)(m, now)

	rm.logger.Info("会话恢复成功",
		zap.String("session_id", sessionID),
		zap.String("state", string(m.State)),
		zap.String("action", string(plan.Action)))

	return m, plan, nil
}

func (rm *RecoveryManager) strategyFor(state GameState) func(*Match, time.Time) RecoveryPlan {
	strategies := map[GameState]func(*Match, time.Time) RecoveryPlan{
		StateWaitingForPlayers: rm.recoverIdle,
		StateInProgress:        rm.recoverScheduleNext,
		StateRoundInProgress:   rm.recoverRound,
		StateRoundComplete:     rm.recoverScheduleNext,
		StateTieBreaker:        rm.recoverScheduleNext,
		StateGameComplete:      rm.recoverIdle,
	}
	if strategy, ok := strategies[state]; ok {
		return strategy
	}
	return rm.recoverIdle
}

func (rm *RecoveryManager) recoverIdle(m *Match, now time.Time) RecoveryPlan {
	return RecoveryPlan{Action: RecoverNone}
}

func (rm *RecoveryManager) recoverScheduleNext(m *Match, now time.Time) RecoveryPlan {
	return RecoveryPlan{Action: RecoverScheduleNext}
}

// recoverRound 进行中的回合按剩余时间继续，已过期则直接结束
func (rm *RecoveryManager) recoverRound(m *Match, now time.Time) RecoveryPlan {
	r := m.CurrentRound()
	if r == nil || !r.IsOpen() {
		rm.logger.Warn("回合状态与对局状态不一致",
			zap.String("session_id", m.ID))
		return RecoveryPlan{Action: RecoverCompleteRound}
	}
	remaining := r.Deadline().Sub(now)
	if remaining <= 0 {
		return RecoveryPlan{Action: RecoverCompleteRound}
	}
	return RecoveryPlan{Action: RecoverResumeRound, Remaining: remaining}
}
