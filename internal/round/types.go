package round

import (
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
)

// Kind 回合类型
type Kind string

const (
	KindLetters   Kind = "letters"
	KindNumbers   Kind = "numbers"
	KindConundrum Kind = "conundrum"
)

// Status 回合状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// DefaultTimeLimit 每回合限时
const DefaultTimeLimit = 30 * time.Second

// LettersContent 字母回合内容
type LettersContent struct {
	Letters    string `json:"letters"`
	Vowels     int    `json:"vowels"`
	Consonants int    `json:"consonants"`
}

// NumbersContent 数字回合内容
type NumbersContent struct {
	Numbers []int `json:"numbers"`
	Target  int   `json:"target"`
	Large   int   `json:"large"` // 大数个数
}

// ConundrumContent 谜题回合内容
type ConundrumContent struct {
	Scrambled string `json:"scrambled"`
	Solution  string `json:"solution"`
}

// Submission 玩家提交
type Submission struct {
	PlayerID    string           `json:"player_id"`
	Answer      string           `json:"answer"`
	Expression  string           `json:"expression,omitempty"`
	Result      *int             `json:"result,omitempty"` // 数字回合算式结果
	SubmittedAt time.Time        `json:"submitted_at"`
	Valid       bool             `json:"valid"`
	Score       int              `json:"score"`
	Reason      string           `json:"reason,omitempty"`
	ReasonCode  errors.ErrorCode `json:"reason_code,omitempty"`
	TimedOut    bool             `json:"timed_out,omitempty"`
}

// Buzz 抢答记录
type Buzz struct {
	PlayerID string    `json:"player_id"`
	At       time.Time `json:"at"`
}

// Summary 回合结束后的参考答案
type Summary struct {
	BestWords []string `json:"best_words,omitempty"`
	Solution  string   `json:"solution,omitempty"`
	Closest   *int     `json:"closest,omitempty"` // 目标不可达时最接近的值
	Conundrum string   `json:"conundrum,omitempty"`
}

// Round 单个回合
//
// 按 Kind 只有一个内容字段非空。
type Round struct {
	Ordinal     int                    `json:"ordinal"`
	SuddenDeath bool                   `json:"sudden_death"`
	Kind        Kind                   `json:"kind"`
	Letters     *LettersContent        `json:"letters,omitempty"`
	Numbers     *NumbersContent        `json:"numbers,omitempty"`
	Conundrum   *ConundrumContent      `json:"conundrum,omitempty"`
	Submissions map[string]*Submission `json:"submissions"`
	Buzzes      []Buzz                 `json:"buzzes,omitempty"`
	Status      Status                 `json:"status"`
	Controller  string                 `json:"controller,omitempty"`
	TimeLimit   time.Duration          `json:"time_limit"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Summary     *Summary               `json:"summary,omitempty"`
}

// IsOpen 回合是否接受提交
func (r *Round) IsOpen() bool {
	return r.Status == StatusInProgress
}

// Start 开始回合
func (r *Round) Start(now time.Time, controller string) error {
	if r.Status != StatusPending {
		return errors.Newf(errors.ErrInvalidGameState, "round %d is %s", r.Ordinal, r.Status)
	}
	r.Status = StatusInProgress
	r.Controller = controller
	r.StartedAt = &now
	if r.Submissions == nil {
		r.Submissions = make(map[string]*Submission)
	}
	return nil
}

// Complete 结束回合，重复调用无效果
func (r *Round) Complete(now time.Time) bool {
	if r.Status != StatusInProgress {
		return false
	}
	r.Status = StatusComplete
	r.CompletedAt = &now
	return true
}

// Deadline 回合截止时间
func (r *Round) Deadline() time.Time {
	if r.StartedAt == nil {
		return time.Time{}
	}
	return r.StartedAt.Add(r.TimeLimit)
}

// HasSubmitted 玩家是否已提交
func (r *Round) HasSubmitted(playerID string) bool {
	_, ok := r.Submissions[playerID]
	return ok
}

// Record 记录提交
func (r *Round) Record(sub *Submission) error {
	if !r.IsOpen() {
		return errors.Newf(errors.ErrRoundNotOpen, "round %d is %s", r.Ordinal, r.Status)
	}
	if r.HasSubmitted(sub.PlayerID) {
		return errors.New(errors.ErrAlreadySubmitted).WithField("player_id")
	}
	r.Submissions[sub.PlayerID] = sub
	return nil
}

// AllSubmitted 给定玩家是否全部已提交
func (r *Round) AllSubmitted(playerIDs []string) bool {
	for _, id := range playerIDs {
		if !r.HasSubmitted(id) {
			return false
		}
	}
	return len(playerIDs) > 0
}

// SolvedBy 谜题回合答对的玩家
func (r *Round) SolvedBy() string {
	for id, sub := range r.Submissions {
		if sub.Valid && sub.Score > 0 {
			return id
		}
	}
	return ""
}

// BuzzHolder 当前持有抢答权的玩家（已抢答但尚未作答）
func (r *Round) BuzzHolder() string {
	for _, b := range r.Buzzes {
		if !r.HasSubmitted(b.PlayerID) {
			return b.PlayerID
		}
	}
	return ""
}

// ScoreOf 玩家在本回合的得分
func (r *Round) ScoreOf(playerID string) int {
	if sub, ok := r.Submissions[playerID]; ok {
		return sub.Score
	}
	return 0
}

// Clone 深拷贝
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	if r.Letters != nil {
		l := *r.Letters
		c.Letters = &l
	}
	if r.Numbers != nil {
		n := *r.Numbers
		n.Numbers = append([]int(nil), r.Numbers.Numbers...)
		c.Numbers = &n
	}
	if r.Conundrum != nil {
		cd := *r.Conundrum
		c.Conundrum = &cd
	}
	c.Submissions = make(map[string]*Submission, len(r.Submissions))
	for id, sub := range r.Submissions {
		s := *sub
		if sub.Result != nil {
			v := *sub.Result
			s.Result = &v
		}
		c.Submissions[id] = &s
	}
	c.Buzzes = append([]Buzz(nil), r.Buzzes...)
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.Summary != nil {
		s := *r.Summary
		s.BestWords = append([]string(nil), r.Summary.BestWords...)
		if r.Summary.Closest != nil {
			v := *r.Summary.Closest
			s.Closest = &v
		}
		c.Summary = &s
	}
	return &c
}
