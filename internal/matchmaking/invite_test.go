package matchmaking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/countdown-game/internal/errors"
)

type fakeJoiner struct {
	mu      sync.Mutex
	waiting map[string]bool
	seated  map[string][]string
}

func newFakeJoiner(sessions ...string) *fakeJoiner {
	j := &fakeJoiner{waiting: map[string]bool{}, seated: map[string][]string{}}
	for _, s := range sessions {
		j.waiting[s] = true
	}
	return j
}

func (j *fakeJoiner) IsWaiting(sessionID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.waiting[sessionID]
}

func (j *fakeJoiner) Seat(ctx context.Context, sessionID, playerID, playerName string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.waiting[sessionID] {
		return errors.New(errors.ErrGameFull)
	}
	j.seated[sessionID] = append(j.seated[sessionID], playerID)
	j.waiting[sessionID] = false
	return nil
}

func TestInviteCodes(t *testing.T) {
	ctx := context.Background()

	t.Run("创建并兑换", func(t *testing.T) {
		joiner := newFakeJoiner("s1")
		q, _ := newTestQueue(WithJoiner(joiner))

		inv, err := q.CreateInviteCode(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, inv.Code, InviteCodeLength)
		assert.True(t, validCode(inv.Code))
		assert.Equal(t, 15*time.Minute, inv.ExpiresAt.Sub(inv.CreatedAt))

		again, err := q.CreateInviteCode(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, inv.Code, again.Code)

		sessionID, err := q.RedeemInviteCode(ctx, " "+inv.Code+" ", "p2", "Bob")
		require.NoError(t, err)
		assert.Equal(t, "s1", sessionID)
		assert.Equal(t, []string{"p2"}, joiner.seated["s1"])

		_, err = q.RedeemInviteCode(ctx, inv.Code, "p3", "Carol")
		assert.True(t, errors.Is(err, errors.ErrInviteNotFound))
	})

	t.Run("过期", func(t *testing.T) {
		q, clock := newTestQueue(WithJoiner(newFakeJoiner("s1")))
		inv, err := q.CreateInviteCode(ctx, "s1")
		require.NoError(t, err)

		clock.Advance(16 * time.Minute)
		_, err = q.RedeemInviteCode(ctx, inv.Code, "p2", "Bob")
		assert.True(t, errors.Is(err, errors.ErrInviteExpired))
	})

	t.Run("对局已离开等待状态", func(t *testing.T) {
		joiner := newFakeJoiner("s1")
		q, _ := newTestQueue(WithJoiner(joiner))
		inv, err := q.CreateInviteCode(ctx, "s1")
		require.NoError(t, err)

		joiner.mu.Lock()
		joiner.waiting["s1"] = false
		joiner.mu.Unlock()

		_, err = q.RedeemInviteCode(ctx, inv.Code, "p2", "Bob")
		assert.True(t, errors.Is(err, errors.ErrInvalidInviteCode))
		_, ok := q.Invite(inv.Code)
		assert.False(t, ok)

		_, err = q.CreateInviteCode(ctx, "s1")
		assert.True(t, errors.IsState(err))
	})

	t.Run("格式错误", func(t *testing.T) {
		q, _ := newTestQueue()
		for _, code := range []string{"", "ABC", "ABCDEFG", "ab-12!"} {
			_, err := q.RedeemInviteCode(ctx, code, "p2", "Bob")
			assert.True(t, errors.Is(err, errors.ErrInvalidInviteCode), code)
		}
		_, err := q.RedeemInviteCode(ctx, "ZZZZZZ", "p2", "Bob")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestExpireStale_Invites(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue()
	_, err := q.CreateInviteCode(ctx, "s1")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = q.CreateInviteCode(ctx, "s2")
	require.NoError(t, err)

	clock.Advance(14*time.Minute + time.Second)
	requests, invites := q.ExpireStale()
	assert.Equal(t, 0, requests)
	assert.Equal(t, 1, invites)
}

func TestStartSweeper(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaleAfter = 10 * time.Millisecond
	q := NewQueue(cfg, nil)

	_, err := q.Enqueue(context.Background(), Request{PlayerID: "a", Rating: 1500})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = q.StartSweeper(ctx, 20*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return q.Size() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStartSweeper_WidensQueuedRequests(t *testing.T) {
	var mu sync.Mutex
	var paired []*Pairing
	handler := func(ctx context.Context, p *Pairing) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		paired = append(paired, p)
		return "s-" + p.ID, nil
	}
	q := NewQueue(DefaultConfig(), nil, WithPairingHandler(handler))

	_, err := q.Enqueue(context.Background(), Request{PlayerID: "a", Rating: 1500})
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), Request{PlayerID: "b", Rating: 1750})
	require.NoError(t, err)
	require.Equal(t, 2, q.Size())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = q.StartSweeper(ctx, 20*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(paired) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, q.Size())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 250, paired[0].RatingGap)
	assert.Equal(t, 300, paired[0].Tolerance)
}
