package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/countdown-game/internal/errors"
	"go.uber.org/zap"
)

// DefaultMode 默认匹配模式
const DefaultMode = "multi"

// Config 匹配配置
type Config struct {
	InitialTolerance int
	ToleranceStep    int
	MaxTolerance     int
	PollInterval     time.Duration
	StaleAfter       time.Duration // 超过该时长的请求不再参与匹配
	InviteTTL        time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		InitialTolerance: 200,
		ToleranceStep:    100,
		MaxTolerance:     500,
		PollInterval:     5 * time.Second,
		StaleAfter:       2 * time.Minute,
		InviteTTL:        15 * time.Minute,
	}
}

// Tolerance 第 pass 轮的等级分容差
func (c Config) Tolerance(pass int) int {
	t := c.InitialTolerance + pass*c.ToleranceStep
	if t > c.MaxTolerance {
		t = c.MaxTolerance
	}
	return t
}

// Request 匹配请求
type Request struct {
	PlayerID   string    `json:"player_id"`
	Name       string    `json:"name"`
	Rating     int       `json:"rating"`
	Mode       string    `json:"mode"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Pairing 匹配结果
type Pairing struct {
	ID        string    `json:"id"`
	Requester Request   `json:"requester"`
	Opponent  Request   `json:"opponent"`
	RatingGap int       `json:"rating_gap"`
	Tolerance int       `json:"tolerance"`
	PairedAt  time.Time `json:"paired_at"`
	SessionID string    `json:"session_id,omitempty"`
}

// EnqueueResult 入队结果：匹配成功时 Pairing 非空，否则给出排队位置
type EnqueueResult struct {
	Pairing   *Pairing `json:"pairing,omitempty"`
	Position  int      `json:"position,omitempty"`
	QueueSize int      `json:"queue_size"`
}

// PairingHandler 匹配成功后创建对局，返回会话ID
type PairingHandler func(ctx context.Context, p *Pairing) (string, error)

type entry struct {
	req  Request
	pass int
	// searching 由 Search 轮询放宽容差，后台放宽时跳过
	searching bool

	done    chan struct{}
	pairing *Pairing
	err     error
}

func (e *entry) finish(p *Pairing, err error) {
	e.pairing, e.err = p, err
	close(e.done)
}

// Queue 匹配队列
//
// 队列使用自己的锁，持锁期间不调用任何外部回调。
type Queue struct {
	mu      sync.Mutex
	waiting []*entry
	index   map[string]*entry
	invites map[string]*Invite

	cfg     Config
	joiner  SessionJoiner
	handler PairingHandler
	logger  *zap.Logger
	now     func() time.Time
}

// Option 可选配置
type Option func(*Queue)

// WithJoiner 设置邀请码入座的会话接口
func WithJoiner(j SessionJoiner) Option {
	return func(q *Queue) { q.joiner = j }
}

// WithPairingHandler 设置匹配成功回调
func WithPairingHandler(h PairingHandler) Option {
	return func(q *Queue) { q.handler = h }
}

// WithClock 设置时间来源（测试用）
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// NewQueue 创建匹配队列
func NewQueue(cfg Config, logger *zap.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	q := &Queue{
		index:   make(map[string]*entry),
		invites: make(map[string]*Invite),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Config 当前配置
func (q *Queue) Config() Config {
	return q.cfg
}

// Enqueue 入队并立即尝试匹配
func (q *Queue) Enqueue(ctx context.Context, req Request) (*EnqueueResult, error) {
	if req.PlayerID == "" {
		return nil, errors.New(errors.ErrInvalidParam, "player id is required").WithField("player_id")
	}
	if req.Mode == "" {
		req.Mode = DefaultMode
	}
	if req.Rating < 0 {
		return nil, errors.New(errors.ErrInvalidParam, "rating must not be negative").WithField("rating")
	}

	q.mu.Lock()
	if _, ok := q.index[req.PlayerID]; ok {
		q.mu.Unlock()
		return nil, errors.New(errors.ErrAlreadyQueued).WithField("player_id")
	}
	req.EnqueuedAt = q.now()
	e := &entry{req: req, done: make(chan struct{})}
	q.waiting = append(q.waiting, e)
	q.index[req.PlayerID] = e

	found := q.matchLocked(e)
	size := len(q.waiting)
	position := q.positionLocked(req.PlayerID)
	q.mu.Unlock()

	if found != nil {
		q.dispatch(ctx, found)
		return &EnqueueResult{Pairing: found.pairing, QueueSize: size}, nil
	}

	q.logger.Debug("进入匹配队列",
		zap.String("player_id", req.PlayerID),
		zap.Int("rating", req.Rating),
		zap.Int("position", position))
	return &EnqueueResult{Position: position, QueueSize: size}, nil
}

// TryMatch 放宽一轮容差后再次尝试匹配
func (q *Queue) TryMatch(ctx context.Context, playerID string) (*Pairing, error) {
	q.mu.Lock()
	e, ok := q.index[playerID]
	if !ok {
		q.mu.Unlock()
		return nil, errors.New(errors.ErrRequestNotFound).WithField("player_id")
	}
	e.pass++
	found := q.matchLocked(e)
	q.mu.Unlock()

	if found == nil {
		return nil, nil
	}
	q.dispatch(ctx, found)
	return found.pairing, nil
}

// Widen 为所有非 Search 的排队请求放宽一轮容差并重新匹配，返回成功的对数
//
// 按入队先后处理，先入队的请求优先挑选对手。
func (q *Queue) Widen(ctx context.Context) int {
	q.mu.Lock()
	pending := append([]*entry(nil), q.waiting...)
	var found []*match
	for _, e := range pending {
		if e.searching || q.expired(e) {
			continue
		}
		if _, ok := q.index[e.req.PlayerID]; !ok {
			continue
		}
		e.pass++
		if m := q.matchLocked(e); m != nil {
			found = append(found, m)
		}
	}
	q.mu.Unlock()

	for _, m := range found {
		q.dispatch(ctx, m)
	}
	return len(found)
}

// match 已从队列移出、等待创建对局的一对请求
type match struct {
	pairing *Pairing
	entries [2]*entry
}

// matchLocked 为请求寻找等级分最接近的同模式对手，成功时移出双方
func (q *Queue) matchLocked(e *entry) *match {
	now := q.now()
	tolerance := q.cfg.Tolerance(e.pass)

	var best *entry
	bestGap := 0
	for _, c := range q.waiting {
		if c == e || c.req.Mode != e.req.Mode {
			continue
		}
		if q.cfg.StaleAfter > 0 && now.Sub(c.req.EnqueuedAt) > q.cfg.StaleAfter {
			continue
		}
		gap := abs(c.req.Rating - e.req.Rating)
		if gap > tolerance {
			continue
		}
		if best == nil || gap < bestGap {
			best, bestGap = c, gap
		}
	}
	if best == nil {
		return nil
	}

	q.removeLocked(e.req.PlayerID)
	q.removeLocked(best.req.PlayerID)

	p := &Pairing{
		ID:        uuid.NewString(),
		Requester: e.req,
		Opponent:  best.req,
		RatingGap: bestGap,
		Tolerance: tolerance,
		PairedAt:  now,
	}
	return &match{pairing: p, entries: [2]*entry{e, best}}
}

// dispatch 锁外调用匹配回调创建对局，之后唤醒双方的等待者
func (q *Queue) dispatch(ctx context.Context, m *match) {
	p := m.pairing
	defer func() {
		for _, e := range m.entries {
			e.finish(p, nil)
		}
	}()

	q.logger.Info("匹配成功",
		zap.String("pairing_id", p.ID),
		zap.String("requester", p.Requester.PlayerID),
		zap.String("opponent", p.Opponent.PlayerID),
		zap.Int("rating_gap", p.RatingGap),
		zap.Int("tolerance", p.Tolerance))

	if q.handler == nil {
		return
	}
	sessionID, err := q.handler(ctx, p)
	if err != nil {
		q.logger.Error("匹配后创建对局失败",
			zap.String("pairing_id", p.ID),
			zap.Error(err))
		return
	}
	p.SessionID = sessionID
}

// Search 持续匹配直到成功、取消或超时
//
// 每个轮询间隔放宽一次容差，达到上限后保持上限继续轮询，
// 请求超过 StaleAfter 仍未匹配则出队并返回超时。
func (q *Queue) Search(ctx context.Context, req Request) (*Pairing, error) {
	res, err := q.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Pairing != nil {
		return res.Pairing, nil
	}

	q.mu.Lock()
	e := q.index[req.PlayerID]
	if e != nil {
		e.searching = true
	}
	q.mu.Unlock()
	if e == nil {
		return nil, errors.New(errors.ErrRequestNotFound).WithField("player_id")
	}

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.Cancel(req.PlayerID)
			<-e.done
			if e.pairing != nil {
				return e.pairing, nil
			}
			return nil, errors.Wrap(ctx.Err(), errors.ErrMatchmakingCanceled)
		case <-e.done:
			return e.pairing, e.err
		case <-ticker.C:
			if q.expired(e) {
				q.expire(req.PlayerID)
				continue
			}
			if _, err := q.TryMatch(ctx, req.PlayerID); err != nil && !errors.IsNotFound(err) {
				return nil, err
			}
		}
	}
}

func (q *Queue) expired(e *entry) bool {
	return q.cfg.StaleAfter > 0 && q.now().Sub(e.req.EnqueuedAt) > q.cfg.StaleAfter
}

func (q *Queue) expire(playerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e := q.removeLocked(playerID); e != nil {
		e.finish(nil, errors.New(errors.ErrMatchmakingTimeout).WithField("player_id"))
	}
}

// Cancel 撤回匹配请求
func (q *Queue) Cancel(playerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.removeLocked(playerID)
	if e == nil {
		return errors.New(errors.ErrRequestNotFound).WithField("player_id")
	}
	e.finish(nil, errors.New(errors.ErrMatchmakingCanceled).WithField("player_id"))
	q.logger.Debug("取消匹配", zap.String("player_id", playerID))
	return nil
}

// Position 排队位置，从1开始
func (q *Queue) Position(playerID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p := q.positionLocked(playerID); p > 0 {
		return p, nil
	}
	return 0, errors.New(errors.ErrRequestNotFound).WithField("player_id")
}

// Size 排队人数
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

func (q *Queue) positionLocked(playerID string) int {
	for i, e := range q.waiting {
		if e.req.PlayerID == playerID {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) removeLocked(playerID string) *entry {
	e, ok := q.index[playerID]
	if !ok {
		return nil
	}
	delete(q.index, playerID)
	for i, w := range q.waiting {
		if w == e {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	return e
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
