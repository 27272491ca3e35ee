package matchmaking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/countdown-game/internal/errors"
	"go.uber.org/zap"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue(opts ...Option) (*Queue, *testClock) {
	clock := &testClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewQueue(DefaultConfig(), zap.NewNop(), opts...), clock
}

func TestConfig_Tolerance(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 200, cfg.Tolerance(0))
	assert.Equal(t, 300, cfg.Tolerance(1))
	assert.Equal(t, 500, cfg.Tolerance(3))
	assert.Equal(t, 500, cfg.Tolerance(10))
}

func TestQueue_ExpandingTolerance(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue()

	res, err := q.Enqueue(ctx, Request{PlayerID: "a", Rating: 1500})
	require.NoError(t, err)
	assert.Nil(t, res.Pairing)
	assert.Equal(t, 1, res.Position)

	// 差250，初始容差200不匹配
	res, err = q.Enqueue(ctx, Request{PlayerID: "b", Rating: 1750})
	require.NoError(t, err)
	assert.Nil(t, res.Pairing)
	assert.Equal(t, 2, res.Position)
	assert.Equal(t, 2, res.QueueSize)

	// 放宽到300后匹配
	p, err := q.TryMatch(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "b", p.Requester.PlayerID)
	assert.Equal(t, "a", p.Opponent.PlayerID)
	assert.Equal(t, 250, p.RatingGap)
	assert.Equal(t, 300, p.Tolerance)
	assert.Equal(t, 0, q.Size())
}

func TestQueue_Widen(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue()

	for _, req := range []Request{
		{PlayerID: "a", Rating: 1500},
		{PlayerID: "b", Rating: 1750},
		{PlayerID: "c", Rating: 2400},
	} {
		res, err := q.Enqueue(ctx, req)
		require.NoError(t, err)
		require.Nil(t, res.Pairing)
	}

	// 第一轮放宽到300：a与b配对，c差距太大继续排队
	assert.Equal(t, 1, q.Widen(ctx))
	assert.Equal(t, 1, q.Size())
	_, err := q.Position("a")
	assert.True(t, errors.IsNotFound(err))
	pos, err := q.Position("c")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	// 容差封顶500，c始终无对手
	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, q.Widen(ctx))
	}
	assert.Equal(t, 1, q.Size())
}

func TestQueue_WidenSkipsExpired(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue()
	_, err := q.Enqueue(ctx, Request{PlayerID: "a", Rating: 1500})
	require.NoError(t, err)
	clock.Advance(3 * time.Minute)
	_, err = q.Enqueue(ctx, Request{PlayerID: "b", Rating: 1750})
	require.NoError(t, err)

	assert.Equal(t, 0, q.Widen(ctx))
	assert.Equal(t, 2, q.Size())
}

func TestQueue_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("立即匹配最接近的对手", func(t *testing.T) {
		q, _ := newTestQueue()
		_, err := q.Enqueue(ctx, Request{PlayerID: "far", Rating: 1350})
		require.NoError(t, err)
		_, err = q.Enqueue(ctx, Request{PlayerID: "near", Rating: 1480})
		require.NoError(t, err)

		res, err := q.Enqueue(ctx, Request{PlayerID: "me", Rating: 1500})
		require.NoError(t, err)
		require.NotNil(t, res.Pairing)
		assert.Equal(t, "near", res.Pairing.Opponent.PlayerID)
		assert.Equal(t, 1, q.Size())
	})

	t.Run("模式不同不匹配", func(t *testing.T) {
		q, _ := newTestQueue()
		_, err := q.Enqueue(ctx, Request{PlayerID: "a", Rating: 1500, Mode: "blitz"})
		require.NoError(t, err)
		res, err := q.Enqueue(ctx, Request{PlayerID: "b", Rating: 1500})
		require.NoError(t, err)
		assert.Nil(t, res.Pairing)
	})

	t.Run("过期请求不参与匹配", func(t *testing.T) {
		q, clock := newTestQueue()
		_, err := q.Enqueue(ctx, Request{PlayerID: "old", Rating: 1500})
		require.NoError(t, err)
		clock.Advance(3 * time.Minute)
		res, err := q.Enqueue(ctx, Request{PlayerID: "new", Rating: 1500})
		require.NoError(t, err)
		assert.Nil(t, res.Pairing)

		requests, _ := q.ExpireStale()
		assert.Equal(t, 1, requests)
		_, err = q.Position("old")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("重复入队", func(t *testing.T) {
		q, _ := newTestQueue()
		_, err := q.Enqueue(ctx, Request{PlayerID: "a", Rating: 1500})
		require.NoError(t, err)
		_, err = q.Enqueue(ctx, Request{PlayerID: "a", Rating: 1500})
		assert.True(t, errors.Is(err, errors.ErrAlreadyQueued))
	})

	t.Run("参数校验", func(t *testing.T) {
		q, _ := newTestQueue()
		_, err := q.Enqueue(ctx, Request{Rating: 1500})
		assert.True(t, errors.IsValidation(err))
	})
}

func TestQueue_Cancel(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue()
	_, err := q.Enqueue(ctx, Request{PlayerID: "a", Rating: 1500})
	require.NoError(t, err)

	require.NoError(t, q.Cancel("a"))
	assert.Equal(t, 0, q.Size())
	assert.True(t, errors.IsNotFound(q.Cancel("a")))

	_, err = q.TryMatch(ctx, "a")
	assert.True(t, errors.Is(err, errors.ErrRequestNotFound))
}

func TestQueue_PairingHandler(t *testing.T) {
	ctx := context.Background()
	var got *Pairing
	q, _ := newTestQueue(WithPairingHandler(func(ctx context.Context, p *Pairing) (string, error) {
		got = p
		return "session-1", nil
	}))

	_, err := q.Enqueue(ctx, Request{PlayerID: "a", Name: "Alice", Rating: 1500})
	require.NoError(t, err)
	res, err := q.Enqueue(ctx, Request{PlayerID: "b", Name: "Bob", Rating: 1510})
	require.NoError(t, err)
	require.NotNil(t, res.Pairing)
	assert.Equal(t, "session-1", res.Pairing.SessionID)
	assert.Same(t, got, res.Pairing)
}

func TestQueue_Search(t *testing.T) {
	newFastQueue := func() *Queue {
		cfg := DefaultConfig()
		cfg.PollInterval = 5 * time.Millisecond
		return NewQueue(cfg, zap.NewNop())
	}

	t.Run("等待中被其他玩家匹配", func(t *testing.T) {
		q := newFastQueue()
		done := make(chan *Pairing, 1)
		go func() {
			p, err := q.Search(context.Background(), Request{PlayerID: "a", Rating: 1500})
			assert.NoError(t, err)
			done <- p
		}()
		require.Eventually(t, func() bool { return q.Size() == 1 }, time.Second, time.Millisecond)

		res, err := q.Enqueue(context.Background(), Request{PlayerID: "b", Rating: 1550})
		require.NoError(t, err)
		require.NotNil(t, res.Pairing)

		select {
		case p := <-done:
			assert.Equal(t, res.Pairing.ID, p.ID)
		case <-time.After(time.Second):
			t.Fatal("search did not return")
		}
	})

	t.Run("轮询放宽容差后匹配", func(t *testing.T) {
		q := newFastQueue()
		_, err := q.Enqueue(context.Background(), Request{PlayerID: "a", Rating: 1500})
		require.NoError(t, err)

		p, err := q.Search(context.Background(), Request{PlayerID: "b", Rating: 1900})
		require.NoError(t, err)
		assert.Equal(t, 400, p.RatingGap)
		assert.GreaterOrEqual(t, p.Tolerance, 400)
	})

	t.Run("上下文取消", func(t *testing.T) {
		q := newFastQueue()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := q.Search(ctx, Request{PlayerID: "a", Rating: 1500})
		assert.True(t, errors.Is(err, errors.ErrMatchmakingCanceled))
		assert.Equal(t, 0, q.Size())
	})

	t.Run("主动取消", func(t *testing.T) {
		q := newFastQueue()
		errCh := make(chan error, 1)
		go func() {
			_, err := q.Search(context.Background(), Request{PlayerID: "a", Rating: 1500})
			errCh <- err
		}()
		require.Eventually(t, func() bool { return q.Size() == 1 }, time.Second, time.Millisecond)
		require.NoError(t, q.Cancel("a"))

		select {
		case err := <-errCh:
			assert.True(t, errors.Is(err, errors.ErrMatchmakingCanceled))
		case <-time.After(time.Second):
			t.Fatal("search did not return")
		}
	})
}
