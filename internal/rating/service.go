package rating

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/models"
	"github.com/wfunc/countdown-game/internal/repository"
	"go.uber.org/zap"
)

// Update 单个玩家的等级分变化
type Update struct {
	PlayerID string `json:"player_id"`
	Before   int    `json:"before"`
	After    int    `json:"after"`
	Delta    int    `json:"delta"`
	K        int    `json:"k"`
}

// Result 一局的等级分结算
type Result struct {
	Winner Update `json:"winner"`
	Loser  Update `json:"loser"`
	IsDraw bool   `json:"is_draw"`
}

// Outcome 已结束的计分对局
type Outcome struct {
	SessionID         string
	WinnerID          string
	WinnerName        string
	LoserID           string
	LoserName         string
	IsDraw            bool
	WinnerScore       int
	LoserScore        int
	SuddenDeathRounds int
	PlayedAt          time.Time
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	Rating      int    `json:"rating"`
	PeakRating  int    `json:"peak_rating"`
	GamesPlayed int    `json:"games_played"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Draws       int    `json:"draws"`
}

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// Service 等级分服务
type Service struct {
	repos  *repository.Manager
	cfg    Config
	logger *zap.Logger
	locks  *playerLocks
	now    func() time.Time
}

// NewService 创建等级分服务
func NewService(repos *repository.Manager, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repos:  repos,
		cfg:    cfg,
		logger: logger,
		locks:  newPlayerLocks(),
		now:    time.Now,
	}
}

// Config 当前规则
func (s *Service) Config() Config {
	return s.cfg
}

// GetRating 玩家当前等级分，未登记的玩家返回默认值
func (s *Service) GetRating(ctx context.Context, playerID string) (int, error) {
	r, err := s.repos.Rating().FindByPlayerID(ctx, playerID)
	if err != nil {
		if errors.Is(err, errors.ErrPlayerNotFound) {
			return s.cfg.DefaultRating, nil
		}
		return 0, err
	}
	return r.Rating, nil
}

// GetPlayer 玩家完整等级分记录
func (s *Service) GetPlayer(ctx context.Context, playerID string) (*models.PlayerRating, error) {
	return s.repos.Rating().FindByPlayerID(ctx, playerID)
}

// UpdateRatings 按胜负更新双方等级分
func (s *Service) UpdateRatings(ctx context.Context, winnerID, loserID string, isDraw bool) (*Result, error) {
	return s.apply(ctx, Outcome{WinnerID: winnerID, LoserID: loserID, IsDraw: isDraw}, false)
}

// RecordMatch 更新等级分并写入对局记录，同一会话只结算一次
func (s *Service) RecordMatch(ctx context.Context, o Outcome) (*Result, error) {
	if o.SessionID == "" {
		return nil, errors.New(errors.ErrInvalidParam, "session id is required").WithField("session_id")
	}
	return s.apply(ctx, o, true)
}

func (s *Service) apply(ctx context.Context, o Outcome, record bool) (*Result, error) {
	if o.WinnerID == "" || o.LoserID == "" {
		return nil, errors.New(errors.ErrInvalidParam, "both players are required")
	}
	if o.WinnerID == o.LoserID {
		return nil, errors.New(errors.ErrInvalidParam, "a player cannot be rated against themselves")
	}
	if o.PlayedAt.IsZero() {
		o.PlayedAt = s.now()
	}

	unlock := s.locks.lock(o.WinnerID, o.LoserID)
	defer unlock()

	var result *Result
	err := s.repos.WithTransaction(ctx, func(tx *repository.Manager) error {
		if record {
			_, err := tx.MatchRecord().FindBySessionID(ctx, o.SessionID)
			if err == nil {
				return errors.Newf(errors.ErrAlreadyExists, "对局已结算: %s", o.SessionID)
			}
			if !errors.IsNotFound(err) {
				return err
			}
		}

		winner, err := tx.Rating().GetOrCreate(ctx, o.WinnerID, o.WinnerName, s.cfg.DefaultRating)
		if err != nil {
			return err
		}
		loser, err := tx.Rating().GetOrCreate(ctx, o.LoserID, o.LoserName, s.cfg.DefaultRating)
		if err != nil {
			return err
		}

		result = s.settle(winner, loser, o.IsDraw, o.PlayedAt)

		if err := tx.Rating().Update(ctx, winner); err != nil {
			return err
		}
		if err := tx.Rating().Update(ctx, loser); err != nil {
			return err
		}
		if !record {
			return nil
		}
		return tx.MatchRecord().Create(ctx, &models.MatchRecord{
			SessionID:          o.SessionID,
			WinnerID:           o.WinnerID,
			LoserID:            o.LoserID,
			IsDraw:             o.IsDraw,
			WinnerScore:        o.WinnerScore,
			LoserScore:         o.LoserScore,
			WinnerRatingBefore: result.Winner.Before,
			WinnerRatingAfter:  result.Winner.After,
			LoserRatingBefore:  result.Loser.Before,
			LoserRatingAfter:   result.Loser.After,
			SuddenDeathRounds:  o.SuddenDeathRounds,
			PlayedAt:           o.PlayedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("等级分已更新",
		zap.String("session_id", o.SessionID),
		zap.String("winner_id", o.WinnerID),
		zap.Int("winner_delta", result.Winner.Delta),
		zap.String("loser_id", o.LoserID),
		zap.Int("loser_delta", result.Loser.Delta),
		zap.Bool("draw", o.IsDraw))
	return result, nil
}

// settle 计算并写入双方新的等级分和战绩
func (s *Service) settle(winner, loser *models.PlayerRating, isDraw bool, at time.Time) *Result {
	wk := s.cfg.KFactor(winner.Rating, winner.GamesPlayed)
	lk := s.cfg.KFactor(loser.Rating, loser.GamesPlayed)
	we := ExpectedScore(winner.Rating, loser.Rating)
	le := ExpectedScore(loser.Rating, winner.Rating)

	wa, la := 1.0, 0.0
	if isDraw {
		wa, la = 0.5, 0.5
	}

	res := &Result{
		Winner: Update{PlayerID: winner.PlayerID, Before: winner.Rating, K: wk},
		Loser:  Update{PlayerID: loser.PlayerID, Before: loser.Rating, K: lk},
		IsDraw: isDraw,
	}
	res.Winner.After = s.cfg.next(winner.Rating, wk, wa, we)
	res.Loser.After = s.cfg.next(loser.Rating, lk, la, le)
	res.Winner.Delta = res.Winner.After - res.Winner.Before
	res.Loser.Delta = res.Loser.After - res.Loser.Before

	played := at
	for _, p := range []struct {
		rec   *models.PlayerRating
		after int
	}{{winner, res.Winner.After}, {loser, res.Loser.After}} {
		p.rec.Rating = p.after
		if p.after > p.rec.PeakRating {
			p.rec.PeakRating = p.after
		}
		p.rec.GamesPlayed++
		p.rec.LastPlayedAt = &played
	}
	switch {
	case isDraw:
		winner.Draws++
		loser.Draws++
	default:
		winner.Wins++
		loser.Losses++
	}
	return res
}

// GetLeaderboard 排行榜
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	top, err := s.repos.Rating().Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(top))
	for i, r := range top {
		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    r.PlayerID,
			Name:        r.Name,
			Rating:      r.Rating,
			PeakRating:  r.PeakRating,
			GamesPlayed: r.GamesPlayed,
			Wins:        r.Wins,
			Losses:      r.Losses,
			Draws:       r.Draws,
		})
	}
	return entries, nil
}

// History 玩家对局历史
func (s *Service) History(ctx context.Context, playerID string, page, pageSize int) ([]*models.MatchRecord, *repository.Pagination, error) {
	p := repository.NewPagination(page, pageSize)
	records, err := s.repos.MatchRecord().ListByPlayer(ctx, playerID, p)
	if err != nil {
		return nil, nil, err
	}
	return records, p, nil
}

// playerLocks 按玩家加锁，多个玩家按ID排序加锁
type playerLocks struct {
	mu    sync.Mutex
	locks map[string]*playerLock
}

type playerLock struct {
	mu   sync.Mutex
	refs int
}

func newPlayerLocks() *playerLocks {
	return &playerLocks{locks: make(map[string]*playerLock)}
}

func (l *playerLocks) lock(ids ...string) func() {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	uniq := sorted[:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			uniq = append(uniq, id)
		}
	}

	held := make([]*playerLock, 0, len(uniq))
	for _, id := range uniq {
		l.mu.Lock()
		pl, ok := l.locks[id]
		if !ok {
			pl = &playerLock{}
			l.locks[id] = pl
		}
		pl.refs++
		l.mu.Unlock()

		pl.mu.Lock()
		held = append(held, pl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		l.mu.Lock()
		for _, id := range uniq {
			pl := l.locks[id]
			pl.refs--
			if pl.refs == 0 {
				delete(l.locks, id)
			}
		}
		l.mu.Unlock()
	}
}
