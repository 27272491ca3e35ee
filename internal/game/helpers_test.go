package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/countdown-game/internal/lexicon"
	"github.com/wfunc/countdown-game/internal/round"
	"go.uber.org/zap"
)

var testLexicon = lexicon.NewService(lexicon.DefaultProvider(), zap.NewNop())

// newTestEngine 按给定回合布局创建引擎
func newTestEngine(t *testing.T, layout string, limit time.Duration) *Engine {
	t.Helper()
	kinds, err := round.ParseLayout(layout)
	require.NoError(t, err)
	gen := round.NewGenerator(42, testLexicon.ConundrumPool(lexicon.DefaultConundrums()), limit)
	scorer := round.NewScorer(testLexicon, round.DefaultScoringRules())
	return NewEngine(gen, scorer, kinds, limit, zap.NewNop())
}

// newTwoPlayerMatch 创建已满员的对局
func newTwoPlayerMatch(t *testing.T, e *Engine, now time.Time) *Match {
	t.Helper()
	m := e.NewMatch("m1", ModeMulti, &Player{ID: "p1", Name: "Alice"}, now)
	require.NoError(t, m.Join(&Player{ID: "p2", Name: "Bob", JoinedAt: now}))
	return m
}

// eventRecorder 记录协调器事件
type eventRecorder struct {
	mu     sync.Mutex
	events []Notification
}

func (r *eventRecorder) OnEvent(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *eventRecorder) count(typ EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
