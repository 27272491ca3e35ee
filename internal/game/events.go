package game

import (
	"sync"
	"time"

	"github.com/wfunc/countdown-game/internal/round"
)

// EventType 对外通知类型
type EventType string

const (
	EventGameCreated     EventType = "game_created"
	EventPlayerJoined    EventType = "player_joined"
	EventGameStarted     EventType = "game_started"
	EventRoundStarted    EventType = "round_started"
	EventPlayerBuzzed    EventType = "player_buzzed"
	EventAnswerSubmitted EventType = "answer_submitted"
	EventRoundComplete   EventType = "round_complete"
	EventTieBreaker      EventType = "tie_breaker"
	EventGameComplete    EventType = "game_complete"
)

// Notification 状态变化通知，Match 为对外展示副本
type Notification struct {
	Type       EventType         `json:"type"`
	SessionID  string            `json:"session_id"`
	PlayerID   string            `json:"player_id,omitempty"`
	Round      *round.Round      `json:"round,omitempty"`
	Submission *round.Submission `json:"submission,omitempty"`
	Match      *Match            `json:"match,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Listener 通知接收者
type Listener interface {
	OnEvent(n Notification)
}

// ListenerFunc 函数适配器
type ListenerFunc func(n Notification)

// OnEvent 实现Listener
func (f ListenerFunc) OnEvent(n Notification) {
	f(n)
}

// dispatcher 监听者列表
type dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (d *dispatcher) add(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *dispatcher) dispatch(events []Notification) {
	if len(events) == 0 {
		return
	}
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.RUnlock()

	for _, n := range events {
		for _, l := range listeners {
			l.OnEvent(n)
		}
	}
}
