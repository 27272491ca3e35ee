package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/rating"
	"go.uber.org/zap"
)

type fakeRatings struct {
	mu       sync.Mutex
	ratings  map[string]int
	outcomes []rating.Outcome
}

func newFakeRatings() *fakeRatings {
	return &fakeRatings{ratings: map[string]int{"p1": 1600}}
}

func (f *fakeRatings) GetRating(ctx context.Context, playerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.ratings[playerID]; ok {
		return r, nil
	}
	return DefaultRating, nil
}

func (f *fakeRatings) RecordMatch(ctx context.Context, o rating.Outcome) (*rating.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
	return &rating.Result{
		Winner: rating.Update{PlayerID: o.WinnerID, Before: 1500, After: 1520, Delta: 20},
		Loser:  rating.Update{PlayerID: o.LoserID, Before: 1500, After: 1480, Delta: -20},
	}, nil
}

func (f *fakeRatings) recorded() []rating.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rating.Outcome(nil), f.outcomes...)
}

func newTestCoordinator(t *testing.T, layout string, limit, delay time.Duration, opts ...CoordinatorOption) (*Coordinator, *eventRecorder) {
	t.Helper()
	e := newTestEngine(t, layout, limit)
	c := NewCoordinator(e, CoordinatorConfig{
		InterRoundDelay: delay,
		SessionTimeout:  time.Hour,
	}, zap.NewNop(), opts...)
	rec := &eventRecorder{}
	c.AddListener(rec)
	t.Cleanup(c.timers.StopAll)
	return c, rec
}

// startMatch 创建双人对局并开始
func startMatch(t *testing.T, c *Coordinator) string {
	t.Helper()
	ctx := context.Background()
	m, err := c.CreateGame(ctx, ModeMulti, "p1", "Alice")
	require.NoError(t, err)
	_, err = c.JoinGame(ctx, m.ID, "p2", "Bob")
	require.NoError(t, err)
	_, err = c.StartGame(ctx, m.ID, "p1")
	require.NoError(t, err)
	return m.ID
}

func (c *Coordinator) inspect(t *testing.T, id string) *Match {
	t.Helper()
	e, err := c.entry(id)
	require.NoError(t, err)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match.Clone()
}

func TestCoordinator_CreateJoinStart(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestCoordinator(t, "LN", time.Hour, time.Hour, WithRatings(newFakeRatings()))

	m, err := c.CreateGame(ctx, ModeMulti, "p1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, StateWaitingForPlayers, m.State)
	assert.Equal(t, 1600, m.Players[0].Rating)
	assert.True(t, c.IsWaiting(m.ID))

	_, err = c.StartGame(ctx, m.ID, "p1")
	assert.True(t, errors.Is(err, errors.ErrNotEnoughPlayers))

	_, err = c.JoinGame(ctx, m.ID, "p1", "Alice")
	assert.True(t, errors.Is(err, errors.ErrAlreadyJoined))

	_, err = c.JoinGame(ctx, m.ID, "p2", "Bob")
	require.NoError(t, err)
	assert.False(t, c.IsWaiting(m.ID))

	_, err = c.JoinGame(ctx, m.ID, "p3", "Carol")
	assert.True(t, errors.Is(err, errors.ErrGameFull))

	started, err := c.StartGame(ctx, m.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, StateRoundInProgress, started.State)
	assert.True(t, c.Timers().Pending(TimerKey{SessionID: m.ID, Round: 1, Kind: TimerRoundTimeout}))

	assert.Equal(t, []EventType{EventGameCreated, EventPlayerJoined, EventGameStarted, EventRoundStarted}, rec.types())

	_, err = c.GetGameState(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestCoordinator_CreateGameValidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, "L", time.Hour, time.Hour)

	_, err := c.CreateGame(ctx, ModeMulti, "", "x")
	assert.True(t, errors.IsValidation(err))

	_, err = c.CreateGame(ctx, Mode("team"), "p1", "x")
	assert.True(t, errors.Is(err, errors.ErrInvalidMode))

	c.cfg.MaxSessions = 1
	_, err = c.CreateGame(ctx, ModeMulti, "p1", "x")
	require.NoError(t, err)
	_, err = c.CreateGame(ctx, ModeMulti, "p2", "y")
	assert.True(t, errors.Is(err, errors.ErrTooManySessions))
}

func TestCoordinator_SubmitCompletesRoundAndSchedulesNext(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestCoordinator(t, "LN", time.Hour, 20*time.Millisecond)
	id := startMatch(t, c)

	res, err := c.SubmitAnswer(ctx, id, "p1", "zzz", "")
	require.NoError(t, err)
	assert.False(t, res.RoundComplete)

	res, err = c.SubmitAnswer(ctx, id, "p2", "", "")
	require.NoError(t, err)
	assert.True(t, res.RoundComplete)
	assert.Equal(t, StateRoundComplete, res.State)
	assert.False(t, c.Timers().Pending(TimerKey{SessionID: id, Round: 1, Kind: TimerRoundTimeout}))

	require.Eventually(t, func() bool {
		m, err := c.GetGameState(ctx, id)
		return err == nil && m.State == StateRoundInProgress && m.CurrentRoundIndex == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, rec.count(EventRoundStarted))
	assert.Equal(t, 1, rec.count(EventRoundComplete))
}

func TestCoordinator_RoundTimeout(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestCoordinator(t, "L", 30*time.Millisecond, time.Hour)
	id := startMatch(t, c)

	_, err := c.SubmitAnswer(ctx, id, "p1", "zzz", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rec.count(EventRoundComplete) == 1
	}, time.Second, 5*time.Millisecond)

	m := c.inspect(t, id)
	r := m.Rounds[0]
	assert.True(t, r.Submissions["p2"].TimedOut)
	assert.False(t, r.Submissions["p1"].TimedOut)
	// 平分进入加赛
	assert.Equal(t, StateTieBreaker, m.State)
	assert.Equal(t, 1, rec.count(EventTieBreaker))
	assert.Equal(t, 0, rec.count(EventGameComplete))
}

func TestCoordinator_StaleTimeoutIsNoOp(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestCoordinator(t, "LN", time.Hour, time.Hour)
	id := startMatch(t, c)

	_, err := c.SubmitAnswer(ctx, id, "p1", "zzz", "")
	require.NoError(t, err)
	_, err = c.SubmitAnswer(ctx, id, "p2", "zzz", "")
	require.NoError(t, err)
	before := len(rec.types())

	// 回合已结束后到达的超时回调
	c.onRoundTimeout(id, 1)
	c.onRoundTimeout(id, 7)

	m := c.inspect(t, id)
	assert.Equal(t, StateRoundComplete, m.State)
	assert.False(t, m.Rounds[0].Submissions["p1"].TimedOut)
	assert.Len(t, rec.types(), before)
}

func TestCoordinator_ConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestCoordinator(t, "LN", time.Hour, time.Hour)
	id := startMatch(t, c)

	var wg sync.WaitGroup
	for _, pid := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			_, err := c.SubmitAnswer(ctx, id, pid, "zzz", "")
			assert.NoError(t, err)
		}(pid)
	}
	wg.Wait()

	assert.Equal(t, 1, rec.count(EventRoundComplete))
	assert.Equal(t, 2, rec.count(EventAnswerSubmitted))
	assert.True(t, c.Timers().Pending(TimerKey{SessionID: id, Round: 1, Kind: TimerNextRound}))
}

func TestCoordinator_ConundrumAndRating(t *testing.T) {
	ctx := context.Background()
	ratings := newFakeRatings()
	c, rec := newTestCoordinator(t, "C", time.Hour, time.Hour, WithRatings(ratings))
	id := startMatch(t, c)

	view, err := c.GetGameState(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, view.CurrentRound().Conundrum.Solution)

	ok, err := c.BuzzIn(ctx, id, "p2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.BuzzIn(ctx, id, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, rec.count(EventPlayerBuzzed))

	solution := c.inspect(t, id).CurrentRound().Conundrum.Solution
	res, err := c.SubmitAnswer(ctx, id, "p2", solution, "")
	require.NoError(t, err)
	assert.True(t, res.RoundComplete)
	assert.Equal(t, StateGameComplete, res.State)
	assert.Equal(t, solution, res.Round.Conundrum.Solution)

	outcomes := ratings.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "p2", outcomes[0].WinnerID)
	assert.Equal(t, "p1", outcomes[0].LoserID)
	assert.Equal(t, 10, outcomes[0].WinnerScore)

	m, err := c.GetGameState(ctx, id)
	require.NoError(t, err)
	winner, _ := m.Player("p2")
	assert.Equal(t, 1520, winner.Rating)
	assert.Equal(t, 1, rec.count(EventGameComplete))
	assert.Equal(t, 0, c.Timers().Len())
}

func TestCoordinator_SinglePlayerAI(t *testing.T) {
	ctx := context.Background()
	ratings := newFakeRatings()
	c, rec := newTestCoordinator(t, "N", 2*time.Second, time.Hour,
		WithAI(NewAIOpponent(testLexicon, 7)), WithRatings(ratings))

	m, err := c.CreateGame(ctx, ModeSingle, "p1", "Alice", WithDifficulty(DifficultyHard))
	require.NoError(t, err)
	require.Len(t, m.Players, 2)
	ai := m.AIPlayer()
	require.NotNil(t, ai)
	assert.Equal(t, DifficultyHard, ai.Difficulty)
	assert.False(t, m.Rated)

	_, err = c.StartGame(ctx, m.ID, "p1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.inspect(t, m.ID).CurrentRound().HasSubmitted(ai.ID)
	}, 5*time.Second, 10*time.Millisecond)

	sub := c.inspect(t, m.ID).CurrentRound().Submissions[ai.ID]
	assert.True(t, sub.Valid)
	assert.NotEmpty(t, sub.Expression)

	_, err = c.SubmitAnswer(ctx, m.ID, "p1", "", "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.count(EventRoundComplete), 1)
	assert.Empty(t, ratings.recorded())
}

func TestCoordinator_InviteCode(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, "L", time.Hour, time.Hour)

	m, err := c.CreateGame(ctx, ModeMulti, "p1", "Alice")
	require.NoError(t, err)
	require.NoError(t, c.SetInviteCode(ctx, m.ID, "ABC123"))
	require.NoError(t, c.Seat(ctx, m.ID, "p2", "Bob"))

	view, err := c.GetGameState(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", view.InviteCode)
	assert.Len(t, view.Players, 2)

	single, err := c.CreateGame(ctx, ModeSingle, "p3", "Carol")
	require.NoError(t, err)
	err = c.SetInviteCode(ctx, single.ID, "XYZ789")
	assert.True(t, errors.Is(err, errors.ErrInvalidMode))
}

func TestCoordinator_CreateMatch(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, "L", time.Hour, time.Hour)

	m, err := c.CreateMatch(ctx, "p1", "Alice", "p2", "Bob")
	require.NoError(t, err)
	assert.Equal(t, StateRoundInProgress, m.State)
	assert.Len(t, m.Players, 2)
}

func TestCoordinator_Restore(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryStatePersister()
	c, _ := newTestCoordinator(t, "LN", time.Hour, time.Hour, WithPersister(persister))
	id := startMatch(t, c)
	_, err := c.SubmitAnswer(ctx, id, "p1", "zzz", "")
	require.NoError(t, err)

	ok, err := persister.Exists(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	restored, _ := newTestCoordinator(t, "LN", time.Hour, time.Hour, WithPersister(persister))
	m, err := restored.Restore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateRoundInProgress, m.State)
	assert.True(t, m.CurrentRound().HasSubmitted("p1"))
	assert.True(t, restored.Timers().Pending(TimerKey{SessionID: id, Round: 1, Kind: TimerRoundTimeout}))

	res, err := restored.SubmitAnswer(ctx, id, "p2", "zzz", "")
	require.NoError(t, err)
	assert.True(t, res.RoundComplete)

	_, err = restored.Restore(ctx, "unknown")
	assert.True(t, errors.IsNotFound(err))
}

// gatedPersister 在第一次保存"回合进行中且已有一份提交"的快照时阻塞，直到 release 关闭
type gatedPersister struct {
	*MemoryStatePersister
	once    sync.Once
	blocked chan struct{}
	release chan struct{}
}

func (p *gatedPersister) Save(ctx context.Context, sessionID string, snapshot *SessionSnapshot) error {
	if snapshot.State == StateRoundInProgress {
		if r := snapshot.Match.CurrentRound(); r != nil && len(r.Submissions) == 1 {
			gate := false
			p.once.Do(func() { gate = true })
			if gate {
				close(p.blocked)
				<-p.release
			}
		}
	}
	return p.MemoryStatePersister.Save(ctx, sessionID, snapshot)
}

func TestCoordinator_SnapshotsPersistInOrder(t *testing.T) {
	ctx := context.Background()
	persister := &gatedPersister{
		MemoryStatePersister: NewMemoryStatePersister(),
		blocked:              make(chan struct{}),
		release:              make(chan struct{}),
	}
	c, _ := newTestCoordinator(t, "LN", time.Hour, time.Hour, WithPersister(persister))
	id := startMatch(t, c)

	first := make(chan error, 1)
	go func() {
		_, err := c.SubmitAnswer(ctx, id, "p1", "zzz", "")
		first <- err
	}()
	<-persister.blocked

	// p1 的快照写入被卡住时 p2 完成回合
	second := make(chan error, 1)
	go func() {
		res, err := c.SubmitAnswer(ctx, id, "p2", "zzz", "")
		if err == nil && !res.RoundComplete {
			err = errors.New(errors.ErrInvalidGameState, "round still open")
		}
		second <- err
	}()
	require.Eventually(t, func() bool {
		return c.inspect(t, id).State == StateRoundComplete
	}, time.Second, 5*time.Millisecond)

	close(persister.release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	snapshot, err := persister.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateRoundComplete, snapshot.State)
	assert.Len(t, snapshot.Match.CurrentRound().Submissions, 2)

	restored, _ := newTestCoordinator(t, "LN", time.Hour, time.Hour, WithPersister(persister.MemoryStatePersister))
	m, err := restored.Restore(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, StateRoundInProgress, m.State)
}

func TestCoordinator_CleanupInactiveSessions(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	persister := NewMemoryStatePersister()
	c, _ := newTestCoordinator(t, "L", time.Hour, time.Hour,
		WithClock(clock.Now), WithPersister(persister))

	idle, err := c.CreateGame(ctx, ModeMulti, "p1", "Alice")
	require.NoError(t, err)
	clock.Advance(50 * time.Minute)
	active, err := c.CreateGame(ctx, ModeMulti, "p2", "Bob")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)

	assert.Equal(t, 1, c.CleanupInactiveSessions(ctx))
	assert.Equal(t, 1, c.ActiveSessions())

	_, err = c.GetGameState(ctx, idle.ID)
	assert.True(t, errors.IsNotFound(err))
	_, err = c.GetGameState(ctx, active.ID)
	assert.NoError(t, err)

	ok, err := persister.Exists(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
