package game

import (
	"sync"
	"time"
)

// TimerKind 定时器类型
type TimerKind string

const (
	TimerRoundTimeout TimerKind = "round_timeout"
	TimerNextRound    TimerKind = "next_round"
	TimerAIAnswer     TimerKind = "ai_answer"
)

// TimerKey 定时器键：会话 + 回合序号 + 类型
type TimerKey struct {
	SessionID string
	Round     int
	Kind      TimerKind
}

type timerHandle struct {
	timer *time.Timer
	gen   uint64
}

// TimerRegistry 可取消的定时器表
//
// 已取消或被替换的定时器即使已经触发，回调也不会执行。
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[TimerKey]*timerHandle
	gen    uint64
}

// NewTimerRegistry 创建定时器表
func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{timers: make(map[TimerKey]*timerHandle)}
}

// Schedule 安排定时回调，同键的旧定时器会被取消
func (r *TimerRegistry) Schedule(key TimerKey, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[key]; ok {
		old.timer.Stop()
	}
	r.gen++
	h := &timerHandle{gen: r.gen}
	h.timer = time.AfterFunc(d, func() {
		if !r.claim(key, h.gen) {
			return
		}
		fn()
	})
	r.timers[key] = h
}

// claim 回调执行前确认定时器仍然有效，并移除登记
func (r *TimerRegistry) claim(key TimerKey, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.timers[key]
	if !ok || h.gen != gen {
		return false
	}
	delete(r.timers, key)
	return true
}

// Cancel 取消定时器，返回是否存在
func (r *TimerRegistry) Cancel(key TimerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.timers[key]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(r.timers, key)
	return true
}

// CancelSession 取消会话的全部定时器
func (r *TimerRegistry) CancelSession(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, h := range r.timers {
		if key.SessionID == sessionID {
			h.timer.Stop()
			delete(r.timers, key)
			n++
		}
	}
	return n
}

// Pending 是否有待执行的定时器
func (r *TimerRegistry) Pending(key TimerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[key]
	return ok
}

// Len 待执行定时器数量
func (r *TimerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// StopAll 停止全部定时器
func (r *TimerRegistry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, h := range r.timers {
		h.timer.Stop()
		delete(r.timers, key)
	}
}
