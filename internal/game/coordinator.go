package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/rating"
	"github.com/wfunc/countdown-game/internal/round"
	"go.uber.org/zap"
)

// RatingService 协调器依赖的等级分服务
type RatingService interface {
	GetRating(ctx context.Context, playerID string) (int, error)
	RecordMatch(ctx context.Context, outcome rating.Outcome) (*rating.Result, error)
}

// CoordinatorConfig 协调器配置
type CoordinatorConfig struct {
	InterRoundDelay   time.Duration
	SessionTimeout    time.Duration
	MaxSessions       int
	DefaultDifficulty Difficulty
}

// Coordinator 会话协调器：持有全部进行中的对局，按会话串行化所有修改
type Coordinator struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	engine    *Engine
	timers    *TimerRegistry
	persister StatePersister
	recovery  *RecoveryManager
	ratings   RatingService
	ai        *AIOpponent
	events    dispatcher
	cfg       CoordinatorConfig
	logger    *zap.Logger
	now       func() time.Time
}

type sessionEntry struct {
	mu           sync.Mutex
	match        *Match
	lastActivity time.Time
	removed      bool
	saveSeq      uint64 // 受 mu 保护，快照生成顺序

	// saveMu 串行化快照写入，savedSeq 为最后写入成功的序号
	saveMu   sync.Mutex
	savedSeq uint64
}

// stageSave 锁内生成快照并分配序号
func (e *sessionEntry) stageSave(now time.Time) (*SessionSnapshot, uint64) {
	e.saveSeq++
	return NewSessionSnapshot(e.match, now), e.saveSeq
}

// effects 锁内收集、解锁后执行的副作用
type effects struct {
	events    []Notification
	save      *SessionSnapshot
	saveSeq   uint64
	owner     *sessionEntry
	completed *Match
}

// CoordinatorOption 可选依赖
type CoordinatorOption func(*Coordinator)

// WithPersister 设置快照持久化
func WithPersister(p StatePersister) CoordinatorOption {
	return func(c *Coordinator) { c.persister = p }
}

// WithRatings 设置等级分服务
func WithRatings(r RatingService) CoordinatorOption {
	return func(c *Coordinator) { c.ratings = r }
}

// WithAI 设置电脑对手策略
func WithAI(ai *AIOpponent) CoordinatorOption {
	return func(c *Coordinator) { c.ai = ai }
}

// WithClock 设置时间来源（测试用）
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator 创建会话协调器
func NewCoordinator(engine *Engine, cfg CoordinatorConfig, logger *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultDifficulty == "" {
		cfg.DefaultDifficulty = DifficultyMedium
	}
	c := &Coordinator{
		sessions: make(map[string]*sessionEntry),
		engine:   engine,
		timers:   NewTimerRegistry(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.persister != nil {
		c.recovery = NewRecoveryManager(logger, c.persister, cfg.SessionTimeout)
	}
	return c
}

// AddListener 注册事件监听者
func (c *Coordinator) AddListener(l Listener) {
	c.events.add(l)
}

// Timers 定时器表
func (c *Coordinator) Timers() *TimerRegistry {
	return c.timers
}

func (c *Coordinator) entry(sessionID string) (*sessionEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.sessions[sessionID]
	if !ok {
		return nil, errors.New(errors.ErrSessionNotFound).WithField("session_id")
	}
	return e, nil
}

// withSession 在会话锁内执行操作，解锁后处理副作用
func (c *Coordinator) withSession(ctx context.Context, sessionID string, fn func(m *Match, fx *effects) error) error {
	e, err := c.entry(sessionID)
	if err != nil {
		return err
	}

	fx := &effects{}
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return errors.New(errors.ErrSessionNotFound).WithField("session_id")
	}
	err = fn(e.match, fx)
	e.lastActivity = c.now()
	if fx.save != nil {
		e.saveSeq++
		fx.saveSeq, fx.owner = e.saveSeq, e
	}
	e.mu.Unlock()

	c.flush(ctx, fx)
	return err
}

func (c *Coordinator) flush(ctx context.Context, fx *effects) {
	if fx.save != nil && fx.owner != nil {
		c.persist(ctx, fx.owner, fx.save, fx.saveSeq)
	}
	c.events.dispatch(fx.events)
	if fx.completed != nil {
		c.recordResult(ctx, fx.completed)
	}
}

// persist 按序号写入快照，晚到的旧快照直接丢弃
func (c *Coordinator) persist(ctx context.Context, e *sessionEntry, snapshot *SessionSnapshot, seq uint64) {
	if c.persister == nil {
		return
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if seq <= e.savedSeq {
		c.logger.Debug("丢弃过期快照",
			zap.String("session_id", snapshot.SessionID),
			zap.Uint64("seq", seq),
			zap.Uint64("saved_seq", e.savedSeq))
		return
	}
	if err := c.persister.Save(ctx, snapshot.SessionID, snapshot); err != nil {
		c.logger.Error("保存对局快照失败",
			zap.String("session_id", snapshot.SessionID),
			zap.Error(err))
		return
	}
	e.savedSeq = seq
}

func (c *Coordinator) emit(fx *effects, typ EventType, m *Match, playerID string, r *round.Round, sub *round.Submission) {
	n := Notification{
		Type:       typ,
		SessionID:  m.ID,
		PlayerID:   playerID,
		Submission: sub,
		Match:      m.PublicView(),
		Timestamp:  c.now(),
	}
	if r != nil {
		n.Round = publicRound(r)
	}
	fx.events = append(fx.events, n)
}

func (c *Coordinator) markSave(m *Match, fx *effects) {
	fx.save = NewSessionSnapshot(m, c.now())
}

func publicRound(r *round.Round) *round.Round {
	pr := r.Clone()
	if pr.Conundrum != nil && pr.Status != round.StatusComplete {
		pr.Conundrum.Solution = ""
	}
	return pr
}

func (c *Coordinator) lookupRating(ctx context.Context, playerID string) int {
	if c.ratings == nil {
		return DefaultRating
	}
	r, err := c.ratings.GetRating(ctx, playerID)
	if err != nil {
		c.logger.Warn("查询等级分失败，使用默认值",
			zap.String("player_id", playerID),
			zap.Error(err))
		return DefaultRating
	}
	return r
}

// GameOption 创建对局选项
type GameOption func(*gameOptions)

type gameOptions struct {
	difficulty Difficulty
	unrated    bool
}

// WithDifficulty 指定电脑对手难度
func WithDifficulty(d Difficulty) GameOption {
	return func(o *gameOptions) { o.difficulty = d }
}

// Unrated 不计等级分
func Unrated() GameOption {
	return func(o *gameOptions) { o.unrated = true }
}

// CreateGame 创建对局；单人模式自动安排电脑对手
func (c *Coordinator) CreateGame(ctx context.Context, mode Mode, hostID, hostName string, opts ...GameOption) (*Match, error) {
	if hostID == "" {
		return nil, errors.New(errors.ErrInvalidParam, "host id is required").WithField("host_id")
	}
	if mode != ModeSingle && mode != ModeMulti {
		return nil, errors.Newf(errors.ErrInvalidMode, "unknown mode %q", mode).WithField("mode")
	}
	o := gameOptions{difficulty: c.cfg.DefaultDifficulty}
	for _, opt := range opts {
		opt(&o)
	}

	host := &Player{ID: hostID, Name: hostName, Rating: c.lookupRating(ctx, hostID)}
	now := c.now()
	m := c.engine.NewMatch(uuid.NewString(), mode, host, now)
	if o.unrated {
		m.Rated = false
	}
	if mode == ModeSingle {
		ai := &Player{
			ID:         "ai-" + m.ID[:8],
			Name:       "Computer",
			Rating:     DefaultRating,
			IsAI:       true,
			Difficulty: o.difficulty,
			JoinedAt:   now,
		}
		m.Players = append(m.Players, ai)
	}

	c.mu.Lock()
	if c.cfg.MaxSessions > 0 && len(c.sessions) >= c.cfg.MaxSessions {
		c.mu.Unlock()
		return nil, errors.Newf(errors.ErrTooManySessions, "limit %d", c.cfg.MaxSessions)
	}
	// 入表前生成首个快照，之后的修改都在会话锁内
	entry := &sessionEntry{match: m, lastActivity: now}
	fx := &effects{owner: entry}
	c.emit(fx, EventGameCreated, m, hostID, nil, nil)
	view := m.PublicView()
	fx.save, fx.saveSeq = entry.stageSave(now)
	c.sessions[m.ID] = entry
	c.mu.Unlock()

	c.flush(ctx, fx)

	c.logger.Info("创建对局",
		zap.String("session_id", m.ID),
		zap.String("mode", string(mode)),
		zap.String("host_id", hostID))
	return view, nil
}

// JoinGame 加入等待中的对局
func (c *Coordinator) JoinGame(ctx context.Context, sessionID, playerID, playerName string) (*Match, error) {
	if playerID == "" {
		return nil, errors.New(errors.ErrInvalidParam, "player id is required").WithField("player_id")
	}
	current := c.lookupRating(ctx, playerID)

	var view *Match
	err := c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		p := &Player{ID: playerID, Name: playerName, Rating: current, JoinedAt: c.now()}
		if err := m.Join(p); err != nil {
			return err
		}
		c.emit(fx, EventPlayerJoined, m, playerID, nil, nil)
		c.markSave(m, fx)
		view = m.PublicView()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// StartGame 房主开始对局并进入第一回合
func (c *Coordinator) StartGame(ctx context.Context, sessionID, hostID string) (*Match, error) {
	var view *Match
	err := c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		if err := c.engine.Start(ctx, m, hostID, c.now()); err != nil {
			return err
		}
		c.emit(fx, EventGameStarted, m, hostID, nil, nil)
		if err := c.beginRound(ctx, m, fx); err != nil {
			return err
		}
		view = m.PublicView()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SubmitAnswer 提交答案
func (c *Coordinator) SubmitAnswer(ctx context.Context, sessionID, playerID, answer, expression string) (*SubmitResult, error) {
	var result *SubmitResult
	err := c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		res, err := c.submit(ctx, m, fx, playerID, answer, expression)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) submit(ctx context.Context, m *Match, fx *effects, playerID, answer, expression string) (*SubmitResult, error) {
	r := m.CurrentRound()
	res, err := c.engine.Submit(ctx, m, playerID, answer, expression, c.now())
	if err != nil {
		return nil, err
	}
	c.emit(fx, EventAnswerSubmitted, m, playerID, r, res.Submission)
	if res.RoundComplete {
		c.afterRoundComplete(ctx, m, fx)
	} else {
		c.markSave(m, fx)
	}
	res.Round = publicRound(res.Round)
	res.State = m.State
	return res, nil
}

// BuzzIn 谜题回合抢答
func (c *Coordinator) BuzzIn(ctx context.Context, sessionID, playerID string) (bool, error) {
	var accepted bool
	err := c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		before := 0
		if r := m.CurrentRound(); r != nil {
			before = len(r.Buzzes)
		}
		ok, err := c.engine.BuzzIn(m, playerID, c.now())
		if err != nil {
			return err
		}
		accepted = ok
		if r := m.CurrentRound(); ok && len(r.Buzzes) > before {
			c.emit(fx, EventPlayerBuzzed, m, playerID, r, nil)
			c.markSave(m, fx)
		}
		return nil
	})
	return accepted, err
}

// GetGameState 查询对局（对外展示副本）
func (c *Coordinator) GetGameState(ctx context.Context, sessionID string) (*Match, error) {
	e, err := c.entry(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, errors.New(errors.ErrSessionNotFound).WithField("session_id")
	}
	return e.match.PublicView(), nil
}

// IsWaiting 对局是否仍在等待玩家
func (c *Coordinator) IsWaiting(sessionID string) bool {
	e, err := c.entry(sessionID)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.removed && e.match.State == StateWaitingForPlayers && !e.match.IsFull()
}

// Seat 通过邀请码入座
func (c *Coordinator) Seat(ctx context.Context, sessionID, playerID, playerName string) error {
	_, err := c.JoinGame(ctx, sessionID, playerID, playerName)
	return err
}

// SetInviteCode 记录对局的邀请码
func (c *Coordinator) SetInviteCode(ctx context.Context, sessionID, code string) error {
	return c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		if m.Mode != ModeMulti {
			return errors.New(errors.ErrInvalidMode, "invite codes are for multiplayer games").WithField("mode")
		}
		if m.State != StateWaitingForPlayers {
			return errors.Newf(errors.ErrGameAlreadyStarted, "session is %s", m.State)
		}
		m.InviteCode = code
		c.markSave(m, fx)
		return nil
	})
}

// CreateMatch 为匹配成功的两名玩家创建并开始对局
func (c *Coordinator) CreateMatch(ctx context.Context, hostID, hostName, guestID, guestName string) (*Match, error) {
	m, err := c.CreateGame(ctx, ModeMulti, hostID, hostName)
	if err != nil {
		return nil, err
	}
	if _, err := c.JoinGame(ctx, m.ID, guestID, guestName); err != nil {
		return nil, err
	}
	return c.StartGame(ctx, m.ID, hostID)
}

// beginRound 开始下一回合并启动计时
func (c *Coordinator) beginRound(ctx context.Context, m *Match, fx *effects) error {
	r, err := c.engine.BeginRound(ctx, m, c.now())
	if err != nil {
		return err
	}
	c.emit(fx, EventRoundStarted, m, r.Controller, r, nil)
	c.armRound(m, r, r.TimeLimit)
	c.markSave(m, fx)
	return nil
}

// armRound 安排回合超时和电脑对手作答
func (c *Coordinator) armRound(m *Match, r *round.Round, remaining time.Duration) {
	sessionID, ordinal := m.ID, r.Ordinal
	c.timers.Schedule(TimerKey{SessionID: sessionID, Round: ordinal, Kind: TimerRoundTimeout}, remaining, func() {
		c.onRoundTimeout(sessionID, ordinal)
	})

	ai := m.AIPlayer()
	if ai == nil || c.ai == nil || r.HasSubmitted(ai.ID) {
		return
	}
	delay := c.ai.Delay(ai.Difficulty, r.TimeLimit)
	if elapsed := r.TimeLimit - remaining; elapsed > 0 {
		delay -= elapsed
	}
	if delay < 0 {
		delay = 0
	}
	if delay >= remaining {
		return
	}
	c.timers.Schedule(TimerKey{SessionID: sessionID, Round: ordinal, Kind: TimerAIAnswer}, delay, func() {
		c.onAIAnswer(sessionID, ordinal)
	})
}

// afterRoundComplete 回合结束：取消计时，推进到下一回合、加赛或结束
func (c *Coordinator) afterRoundComplete(ctx context.Context, m *Match, fx *effects) {
	r := m.CurrentRound()
	c.timers.Cancel(TimerKey{SessionID: m.ID, Round: r.Ordinal, Kind: TimerRoundTimeout})
	c.timers.Cancel(TimerKey{SessionID: m.ID, Round: r.Ordinal, Kind: TimerAIAnswer})
	c.emit(fx, EventRoundComplete, m, "", r, nil)

	outcome, err := c.engine.Advance(ctx, m, c.now())
	if err != nil {
		c.logger.Error("推进对局失败",
			zap.String("session_id", m.ID),
			zap.Error(err))
		c.markSave(m, fx)
		return
	}

	switch outcome {
	case OutcomeNextRound:
		c.scheduleNext(m, r.Ordinal)
	case OutcomeSuddenDeath:
		if m.State == StateTieBreaker {
			c.emit(fx, EventTieBreaker, m, "", nil, nil)
		}
		c.scheduleNext(m, r.Ordinal)
	case OutcomeGameComplete:
		c.emit(fx, EventGameComplete, m, m.WinnerID, nil, nil)
		if m.Rated && !m.HasAI() {
			fx.completed = m.Clone()
		}
		c.logger.Info("对局结束",
			zap.String("session_id", m.ID),
			zap.String("winner_id", m.WinnerID),
			zap.Int("sudden_death_rounds", len(m.SuddenDeath)))
	}
	c.markSave(m, fx)
}

func (c *Coordinator) scheduleNext(m *Match, ordinal int) {
	sessionID := m.ID
	c.timers.Schedule(TimerKey{SessionID: sessionID, Round: ordinal, Kind: TimerNextRound}, c.cfg.InterRoundDelay, func() {
		c.onNextRound(sessionID)
	})
}

// onRoundTimeout 回合超时；回合已由其他途径结束时不做任何事
func (c *Coordinator) onRoundTimeout(sessionID string, ordinal int) {
	ctx := context.Background()
	err := c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		r := m.CurrentRound()
		if m.State != StateRoundInProgress || r == nil || r.Ordinal != ordinal || !r.IsOpen() {
			c.logger.Debug("忽略过期的回合超时",
				zap.String("session_id", sessionID),
				zap.Int("round", ordinal))
			return nil
		}
		if err := c.engine.CompleteRound(ctx, m, c.now(), true); err != nil {
			return err
		}
		c.afterRoundComplete(ctx, m, fx)
		return nil
	})
	if err != nil && !errors.IsNotFound(err) {
		c.logger.Error("处理回合超时失败",
			zap.String("session_id", sessionID),
			zap.Int("round", ordinal),
			zap.Error(err))
	}
}

// onNextRound 回合间隔结束，开始下一回合
func (c *Coordinator) onNextRound(sessionID string) {
	ctx := context.Background()
	err := c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		switch m.State {
		case StateInProgress, StateRoundComplete, StateTieBreaker:
			return c.beginRound(ctx, m, fx)
		default:
			c.logger.Debug("忽略过期的下一回合定时器",
				zap.String("session_id", sessionID),
				zap.String("state", string(m.State)))
			return nil
		}
	})
	if err != nil && !errors.IsNotFound(err) {
		c.logger.Error("开始下一回合失败",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// onAIAnswer 电脑对手作答：锁外计算答案，锁内再次确认回合仍然有效
func (c *Coordinator) onAIAnswer(sessionID string, ordinal int) {
	ctx := context.Background()

	var (
		current    *round.Round
		aiID       string
		difficulty Difficulty
	)
	err := c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		r := m.CurrentRound()
		ai := m.AIPlayer()
		if ai == nil || r == nil || r.Ordinal != ordinal || !r.IsOpen() || r.HasSubmitted(ai.ID) {
			return nil
		}
		current, aiID, difficulty = r.Clone(), ai.ID, ai.Difficulty
		return nil
	})
	if err != nil || current == nil {
		return
	}

	answer, expression, ok := c.ai.Answer(difficulty, current)
	if !ok {
		c.logger.Debug("电脑对手放弃作答",
			zap.String("session_id", sessionID),
			zap.Int("round", ordinal))
		return
	}

	err = c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		r := m.CurrentRound()
		if r == nil || r.Ordinal != ordinal || !r.IsOpen() || r.HasSubmitted(aiID) {
			return nil
		}
		_, err := c.submit(ctx, m, fx, aiID, answer, expression)
		return err
	})
	if err != nil {
		c.logger.Debug("电脑对手提交失败",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// recordResult 对局结束后更新等级分，并刷新对局中缓存的等级分
func (c *Coordinator) recordResult(ctx context.Context, m *Match) {
	if c.ratings == nil || m.WinnerID == "" {
		return
	}
	winner, _ := m.Player(m.WinnerID)
	loser, ok := m.Opponent(m.WinnerID)
	if winner == nil || !ok {
		return
	}

	outcome := rating.Outcome{
		SessionID:         m.ID,
		WinnerID:          winner.ID,
		WinnerName:        winner.Name,
		LoserID:           loser.ID,
		LoserName:         loser.Name,
		WinnerScore:       winner.Score,
		LoserScore:        loser.Score,
		SuddenDeathRounds: len(m.SuddenDeath),
		PlayedAt:          c.now(),
	}
	res, err := c.ratings.RecordMatch(ctx, outcome)
	if err != nil {
		c.logger.Error("更新等级分失败",
			zap.String("session_id", m.ID),
			zap.Error(err))
		return
	}

	e, err := c.entry(m.ID)
	if err != nil {
		return
	}
	e.mu.Lock()
	if p, ok := e.match.Player(res.Winner.PlayerID); ok {
		p.Rating = res.Winner.After
	}
	if p, ok := e.match.Player(res.Loser.PlayerID); ok {
		p.Rating = res.Loser.After
	}
	e.mu.Unlock()
}

// Restore 从快照恢复对局并重新安排计时
func (c *Coordinator) Restore(ctx context.Context, sessionID string) (*Match, error) {
	if view, err := c.GetGameState(ctx, sessionID); err == nil {
		return view, nil
	}
	if c.recovery == nil {
		return nil, errors.New(errors.ErrSessionNotFound, "no persister configured").WithField("session_id")
	}

	m, plan, err := c.recovery.Recover(ctx, sessionID, c.now())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.sessions[sessionID]; ok {
		c.mu.Unlock()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		return existing.match.PublicView(), nil
	}
	c.sessions[sessionID] = &sessionEntry{match: m, lastActivity: c.now()}
	c.mu.Unlock()

	var view *Match
	err = c.withSession(ctx, sessionID, func(m *Match, fx *effects) error {
		switch plan.Action {
		case RecoverResumeRound:
			c.armRound(m, m.CurrentRound(), plan.Remaining)
		case RecoverCompleteRound:
			if err := c.engine.CompleteRound(ctx, m, c.now(), true); err != nil {
				return err
			}
			c.afterRoundComplete(ctx, m, fx)
		case RecoverScheduleNext:
			ordinal := 0
			if r := m.CurrentRound(); r != nil {
				ordinal = r.Ordinal
			}
			c.scheduleNext(m, ordinal)
		}
		view = m.PublicView()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Remove 移除会话：取消定时器并保存最终快照
func (c *Coordinator) Remove(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	e, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return errors.New(errors.ErrSessionNotFound).WithField("session_id")
	}
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	c.timers.CancelSession(sessionID)

	e.mu.Lock()
	e.removed = true
	snapshot, seq := e.stageSave(c.now())
	e.mu.Unlock()

	c.persist(ctx, e, snapshot, seq)
	return nil
}

// CleanupInactiveSessions 清理不活跃的会话
func (c *Coordinator) CleanupInactiveSessions(ctx context.Context) int {
	if c.cfg.SessionTimeout <= 0 {
		return 0
	}
	c.mu.RLock()
	entries := make(map[string]*sessionEntry, len(c.sessions))
	for id, e := range c.sessions {
		entries[id] = e
	}
	c.mu.RUnlock()

	now := c.now()
	removed := 0
	for id, e := range entries {
		e.mu.Lock()
		inactive := now.Sub(e.lastActivity)
		e.mu.Unlock()
		if inactive <= c.cfg.SessionTimeout {
			continue
		}
		if err := c.Remove(ctx, id); err == nil {
			removed++
			c.logger.Info("清理超时会话",
				zap.String("session_id", id),
				zap.Duration("inactive", inactive))
		}
	}
	return removed
}

// StartCleanupTask 启动清理任务
func (c *Coordinator) StartCleanupTask(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("停止会话清理任务")
				return
			case <-ticker.C:
				c.CleanupInactiveSessions(ctx)
			}
		}
	}()
}

// ActiveSessions 活跃会话数
func (c *Coordinator) ActiveSessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Shutdown 停止全部定时器并保存所有会话
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.timers.StopAll()

	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	if c.persister == nil {
		return
	}
	for _, e := range entries {
		e.mu.Lock()
		snapshot, seq := e.stageSave(c.now())
		e.mu.Unlock()
		c.persist(ctx, e, snapshot, seq)
	}
}
