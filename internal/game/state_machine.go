package game

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"go.uber.org/zap"
)

// GameState 对局状态
type GameState string

const (
	StateWaitingForPlayers GameState = "waiting_for_players" // 等待玩家
	StateInProgress        GameState = "in_progress"         // 已开始，尚未开始第一回合
	StateRoundInProgress   GameState = "round_in_progress"   // 回合进行中
	StateRoundComplete     GameState = "round_complete"      // 回合结束
	StateGameComplete      GameState = "game_complete"       // 对局结束
	StateTieBreaker        GameState = "tie_breaker"         // 平分加赛
)

// Event 状态机事件
type Event string

const (
	EventStart         Event = "start"
	EventBeginRound    Event = "begin_round"
	EventCompleteRound Event = "complete_round"
	EventFinish        Event = "finish"
	EventTie           Event = "tie"
)

// Trigger 触发事件时的输入
type Trigger struct {
	Now      time.Time
	PlayerID string
	TimedOut bool
}

// StateTransition 状态转换定义
type StateTransition struct {
	From   GameState
	Event  Event
	To     GameState
	Action func(ctx context.Context, m *Match, t Trigger) error
}

// StateMachine 对局状态机
//
// 转换表构建后只读，对局数据本身由协调器的会话锁保护。
type StateMachine struct {
	transitions   map[string]StateTransition
	logger        *zap.Logger
	onStateChange func(m *Match, from, to GameState)
}

// NewStateMachine 创建空的状态机
func NewStateMachine(logger *zap.Logger) *StateMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateMachine{
		transitions: make(map[string]StateTransition),
		logger:      logger,
	}
}

// AddTransition 添加状态转换
func (sm *StateMachine) AddTransition(t StateTransition) {
	sm.transitions[transitionKey(t.From, t.Event)] = t
}

func transitionKey(state GameState, event Event) string {
	return fmt.Sprintf("%s:%s", state, event)
}

// OnStateChange 设置状态变更回调
func (sm *StateMachine) OnStateChange(fn func(m *Match, from, to GameState)) {
	sm.onStateChange = fn
}

// Fire 触发事件，动作失败时保持原状态
func (sm *StateMachine) Fire(ctx context.Context, m *Match, event Event, t Trigger) error {
	transition, ok := sm.transitions[transitionKey(m.State, event)]
	if !ok {
		return errors.Newf(errors.ErrInvalidGameState, "无效的状态转换: 状态=%s, 事件=%s", m.State, event)
	}

	if transition.Action != nil {
		if err := transition.Action(ctx, m, t); err != nil {
			return err
		}
	}

	from := m.State
	m.State = transition.To
	m.UpdatedAt = t.Now

	if sm.onStateChange != nil {
		sm.onStateChange(m, from, m.State)
	}

	sm.logger.Debug("状态转换",
		zap.String("session_id", m.ID),
		zap.String("from", string(from)),
		zap.String("to", string(m.State)),
		zap.String("event", string(event)))

	return nil
}

// CanFire 当前状态下事件是否有效
func (sm *StateMachine) CanFire(state GameState, event Event) bool {
	_, ok := sm.transitions[transitionKey(state, event)]
	return ok
}

// ValidEvents 当前状态下的有效事件
func (sm *StateMachine) ValidEvents(state GameState) []string {
	prefix := string(state) + ":"
	var events []string
	for key := range sm.transitions {
		if strings.HasPrefix(key, prefix) {
			events = append(events, key[len(prefix):])
		}
	}
	sort.Strings(events)
	return events
}
