package game

import (
	"context"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/round"
	"go.uber.org/zap"
)

// SummaryWords 回合总结中给出的参考单词数
const SummaryWords = 3

// Engine 比赛引擎：回合编排、提交计分和状态推进
//
// Engine 自身无状态，可被多个对局共享。
type Engine struct {
	sm        *StateMachine
	generator *round.Generator
	scorer    *round.Scorer
	layout    []round.Kind
	timeLimit time.Duration
	logger    *zap.Logger
}

// NewEngine 创建比赛引擎
func NewEngine(generator *round.Generator, scorer *round.Scorer, layout []round.Kind, timeLimit time.Duration, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeLimit <= 0 {
		timeLimit = round.DefaultTimeLimit
	}
	e := &Engine{
		sm:        NewStateMachine(logger),
		generator: generator,
		scorer:    scorer,
		layout:    layout,
		timeLimit: timeLimit,
		logger:    logger,
	}
	e.initTransitions()
	e.sm.OnStateChange(func(m *Match, from, to GameState) {
		e.logger.Info("对局状态变更",
			zap.String("session_id", m.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	})
	return e
}

// StateMachine 返回引擎使用的状态机
func (e *Engine) StateMachine() *StateMachine {
	return e.sm
}

// Scorer 返回计分器
func (e *Engine) Scorer() *round.Scorer {
	return e.scorer
}

func (e *Engine) initTransitions() {
	// 等待玩家 -> 进行中
	e.sm.AddTransition(StateTransition{
		From:  StateWaitingForPlayers,
		Event: EventStart,
		To:    StateInProgress,
		Action: func(ctx context.Context, m *Match, t Trigger) error {
			if t.PlayerID != m.HostID {
				return errors.New(errors.ErrNotHost).WithField("host_id")
			}
			if len(m.Players) != MaxPlayers {
				return errors.Newf(errors.ErrNotEnoughPlayers, "%d of %d players seated", len(m.Players), MaxPlayers)
			}
			now := t.Now
			m.StartedAt = &now
			return nil
		},
	})

	// 进行中 -> 第一回合
	e.sm.AddTransition(StateTransition{
		From:  StateInProgress,
		Event: EventBeginRound,
		To:    StateRoundInProgress,
		Action: func(ctx context.Context, m *Match, t Trigger) error {
			return e.openBaseRound(m, 0, t.Now)
		},
	})

	// 回合结束 -> 下一回合（常规或加赛）
	e.sm.AddTransition(StateTransition{
		From:  StateRoundComplete,
		Event: EventBeginRound,
		To:    StateRoundInProgress,
		Action: func(ctx context.Context, m *Match, t Trigger) error {
			if m.InSuddenDeath() {
				return e.openSuddenDeath(m, t.Now)
			}
			next := m.CurrentRoundIndex + 1
			if next >= len(m.Rounds) {
				return errors.Newf(errors.ErrSequenceExhausted, "all %d rounds played", len(m.Rounds))
			}
			return e.openBaseRound(m, next, t.Now)
		},
	})

	// 加赛 -> 加赛回合
	e.sm.AddTransition(StateTransition{
		From:  StateTieBreaker,
		Event: EventBeginRound,
		To:    StateRoundInProgress,
		Action: func(ctx context.Context, m *Match, t Trigger) error {
			return e.openSuddenDeath(m, t.Now)
		},
	})

	// 回合进行中 -> 回合结束
	e.sm.AddTransition(StateTransition{
		From:  StateRoundInProgress,
		Event: EventCompleteRound,
		To:    StateRoundComplete,
		Action: func(ctx context.Context, m *Match, t Trigger) error {
			r := m.CurrentRound()
			if r == nil || !r.IsOpen() {
				return errors.New(errors.ErrRoundNotOpen)
			}
			for _, id := range m.PlayerIDs() {
				if r.HasSubmitted(id) {
					continue
				}
				r.Submissions[id] = &round.Submission{
					PlayerID:    id,
					SubmittedAt: t.Now,
					TimedOut:    t.TimedOut,
					Reason:      "no answer",
					ReasonCode:  errors.ErrEmptyAnswer,
				}
			}
			r.Complete(t.Now)
			if e.scorer != nil {
				r.Summary = e.scorer.Summarize(r, SummaryWords)
			}
			return nil
		},
	})

	// 回合结束 -> 对局结束
	e.sm.AddTransition(StateTransition{
		From:  StateRoundComplete,
		Event: EventFinish,
		To:    StateGameComplete,
		Action: func(ctx context.Context, m *Match, t Trigger) error {
			if m.InSuddenDeath() {
				if m.CurrentRound().SolvedBy() == "" {
					return errors.New(errors.ErrInvalidGameState, "sudden death round was not decided")
				}
			} else if !m.IsLastBaseRound() {
				return errors.Newf(errors.ErrInvalidGameState, "round %d of %d", m.CurrentRoundIndex+1, len(m.Rounds))
			}
			m.WinnerID = m.Leader()
			if m.WinnerID != "" {
				now := t.Now
				m.CompletedAt = &now
			}
			return nil
		},
	})

	// 对局结束（平分） -> 加赛
	e.sm.AddTransition(StateTransition{
		From:  StateGameComplete,
		Event: EventTie,
		To:    StateTieBreaker,
		Action: func(ctx context.Context, m *Match, t Trigger) error {
			if m.WinnerID != "" || m.Leader() != "" {
				return errors.New(errors.ErrInvalidGameState, "scores are not tied")
			}
			return nil
		},
	})
}

func (e *Engine) openBaseRound(m *Match, index int, now time.Time) error {
	pending := m.Rounds[index]
	r, err := e.generator.Generate(pending.Kind, pending.Ordinal)
	if err != nil {
		return err
	}
	if err := r.Start(now, m.controllerFor(r.Ordinal)); err != nil {
		return err
	}
	m.Rounds[index] = r
	m.CurrentRoundIndex = index
	return nil
}

func (e *Engine) openSuddenDeath(m *Match, now time.Time) error {
	ordinal := len(m.Rounds) + len(m.SuddenDeath) + 1
	r, err := e.generator.GenerateSuddenDeath(ordinal)
	if err != nil {
		return err
	}
	if err := r.Start(now, m.controllerFor(ordinal)); err != nil {
		return err
	}
	m.SuddenDeath = append(m.SuddenDeath, r)
	return nil
}

// NewMatch 创建对局，回合内容在开始时才生成
func (e *Engine) NewMatch(id string, mode Mode, host *Player, now time.Time) *Match {
	rounds := make([]*round.Round, len(e.layout))
	for i, kind := range e.layout {
		rounds[i] = &round.Round{
			Ordinal:     i + 1,
			Kind:        kind,
			Status:      round.StatusPending,
			TimeLimit:   e.timeLimit,
			Submissions: make(map[string]*round.Submission),
		}
	}
	if host.Rating == 0 {
		host.Rating = DefaultRating
	}
	host.JoinedAt = now
	return &Match{
		ID:                id,
		Mode:              mode,
		Rated:             mode == ModeMulti,
		State:             StateWaitingForPlayers,
		HostID:            host.ID,
		Players:           []*Player{host},
		Rounds:            rounds,
		CurrentRoundIndex: -1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Start 房主开始对局
func (e *Engine) Start(ctx context.Context, m *Match, hostID string, now time.Time) error {
	return e.sm.Fire(ctx, m, EventStart, Trigger{Now: now, PlayerID: hostID})
}

// BeginRound 开始下一回合
func (e *Engine) BeginRound(ctx context.Context, m *Match, now time.Time) (*round.Round, error) {
	if err := e.sm.Fire(ctx, m, EventBeginRound, Trigger{Now: now}); err != nil {
		if errors.Is(err, errors.ErrInvalidGameState) && m.State == StateGameComplete {
			return nil, errors.New(errors.ErrSequenceExhausted, "game is complete")
		}
		return nil, err
	}
	return m.CurrentRound(), nil
}

// Submit 提交答案；非法答案记为0分并附原因，不返回错误
func (e *Engine) Submit(ctx context.Context, m *Match, playerID, answer, expression string, now time.Time) (*SubmitResult, error) {
	if m.State != StateRoundInProgress {
		return nil, errors.Newf(errors.ErrRoundNotOpen, "session is %s", m.State)
	}
	p, ok := m.Player(playerID)
	if !ok {
		return nil, errors.New(errors.ErrPlayerNotFound).WithField("player_id")
	}
	r := m.CurrentRound()
	if r == nil || !r.IsOpen() {
		return nil, errors.New(errors.ErrRoundNotOpen)
	}
	if r.HasSubmitted(playerID) {
		return nil, errors.New(errors.ErrAlreadySubmitted).WithField("player_id")
	}
	if r.Kind == round.KindConundrum {
		if holder := r.BuzzHolder(); holder != "" && holder != playerID {
			return nil, errors.New(errors.ErrInvalidGameState, "opponent holds the buzzer")
		}
	}

	sub := e.scorer.Score(r, playerID, answer, expression, now)
	if err := r.Record(sub); err != nil {
		return nil, err
	}
	p.Score += sub.Score
	m.UpdatedAt = now

	complete := r.AllSubmitted(m.PlayerIDs())
	if r.Kind == round.KindConundrum && sub.Valid {
		complete = true
	}
	if complete {
		if err := e.CompleteRound(ctx, m, now, false); err != nil {
			return nil, err
		}
	}

	return &SubmitResult{
		Submission:    sub,
		RoundComplete: complete,
		Round:         r.Clone(),
		State:         m.State,
	}, nil
}

// BuzzIn 谜题回合抢答，返回是否获得作答权
func (e *Engine) BuzzIn(m *Match, playerID string, now time.Time) (bool, error) {
	if m.State != StateRoundInProgress {
		return false, errors.Newf(errors.ErrRoundNotOpen, "session is %s", m.State)
	}
	if _, ok := m.Player(playerID); !ok {
		return false, errors.New(errors.ErrPlayerNotFound).WithField("player_id")
	}
	r := m.CurrentRound()
	if r == nil || !r.IsOpen() {
		return false, errors.New(errors.ErrRoundNotOpen)
	}
	if r.Kind != round.KindConundrum {
		return false, errors.Newf(errors.ErrWrongRoundType, "cannot buzz in a %s round", r.Kind)
	}
	if r.HasSubmitted(playerID) {
		return false, errors.New(errors.ErrAlreadySubmitted).WithField("player_id")
	}

	switch holder := r.BuzzHolder(); holder {
	case playerID:
		return true, nil
	case "":
		r.Buzzes = append(r.Buzzes, round.Buzz{PlayerID: playerID, At: now})
		m.UpdatedAt = now
		return true, nil
	default:
		return false, nil
	}
}

// CompleteRound 结束当前回合，未提交的玩家记0分
func (e *Engine) CompleteRound(ctx context.Context, m *Match, now time.Time, timedOut bool) error {
	return e.sm.Fire(ctx, m, EventCompleteRound, Trigger{Now: now, TimedOut: timedOut})
}

// Advance 回合结束后决定走向：下一回合、加赛或结束
func (e *Engine) Advance(ctx context.Context, m *Match, now time.Time) (Outcome, error) {
	if m.State != StateRoundComplete {
		return "", errors.Newf(errors.ErrInvalidGameState, "session is %s", m.State)
	}

	if m.InSuddenDeath() {
		if m.CurrentRound().SolvedBy() == "" {
			return OutcomeSuddenDeath, nil
		}
		if err := e.sm.Fire(ctx, m, EventFinish, Trigger{Now: now}); err != nil {
			return "", err
		}
		return OutcomeGameComplete, nil
	}

	if !m.IsLastBaseRound() {
		return OutcomeNextRound, nil
	}

	if err := e.sm.Fire(ctx, m, EventFinish, Trigger{Now: now}); err != nil {
		return "", err
	}
	if m.WinnerID != "" {
		return OutcomeGameComplete, nil
	}
	if err := e.sm.Fire(ctx, m, EventTie, Trigger{Now: now}); err != nil {
		return "", err
	}
	return OutcomeSuddenDeath, nil
}
