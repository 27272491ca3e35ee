package game

import (
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/round"
)

// Match 一局比赛的完整状态
//
// Match 不做并发控制，所有读写都在协调器的会话锁内完成。
type Match struct {
	ID                string         `json:"id"`
	Mode              Mode           `json:"mode"`
	Rated             bool           `json:"rated"`
	State             GameState      `json:"state"`
	HostID            string         `json:"host_id"`
	Players           []*Player      `json:"players"`
	Rounds            []*round.Round `json:"rounds"`
	SuddenDeath       []*round.Round `json:"sudden_death,omitempty"`
	CurrentRoundIndex int            `json:"current_round_index"` // 开始前为 -1
	InviteCode        string         `json:"invite_code,omitempty"`
	WinnerID          string         `json:"winner_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Player 按ID查找玩家
func (m *Match) Player(playerID string) (*Player, bool) {
	for _, p := range m.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

// Opponent 返回对手
func (m *Match) Opponent(playerID string) (*Player, bool) {
	for _, p := range m.Players {
		if p.ID != playerID {
			return p, true
		}
	}
	return nil, false
}

// PlayerIDs 已入座玩家ID
func (m *Match) PlayerIDs() []string {
	ids := make([]string, len(m.Players))
	for i, p := range m.Players {
		ids[i] = p.ID
	}
	return ids
}

// AIPlayer 电脑玩家，没有时返回nil
func (m *Match) AIPlayer() *Player {
	for _, p := range m.Players {
		if p.IsAI {
			return p
		}
	}
	return nil
}

// HasAI 是否有电脑对手
func (m *Match) HasAI() bool {
	return m.AIPlayer() != nil
}

// IsFull 是否已满员
func (m *Match) IsFull() bool {
	return len(m.Players) >= MaxPlayers
}

// IsComplete 是否已结束
func (m *Match) IsComplete() bool {
	return m.State == StateGameComplete
}

// InSuddenDeath 是否处于加赛阶段
func (m *Match) InSuddenDeath() bool {
	return len(m.SuddenDeath) > 0
}

// CurrentRound 当前回合：加赛阶段为最后一个加赛回合
func (m *Match) CurrentRound() *round.Round {
	if n := len(m.SuddenDeath); n > 0 {
		return m.SuddenDeath[n-1]
	}
	if m.CurrentRoundIndex < 0 || m.CurrentRoundIndex >= len(m.Rounds) {
		return nil
	}
	return m.Rounds[m.CurrentRoundIndex]
}

// IsLastBaseRound 当前是否为常规最后一回合
func (m *Match) IsLastBaseRound() bool {
	return !m.InSuddenDeath() && m.CurrentRoundIndex == len(m.Rounds)-1
}

// Leader 分数领先者，平分时返回空
func (m *Match) Leader() string {
	if len(m.Players) != MaxPlayers {
		return ""
	}
	a, b := m.Players[0], m.Players[1]
	switch {
	case a.Score > b.Score:
		return a.ID
	case b.Score > a.Score:
		return b.ID
	default:
		return ""
	}
}

// controllerFor 按回合序号轮流分配控制者
func (m *Match) controllerFor(ordinal int) string {
	if len(m.Players) == 0 {
		return ""
	}
	return m.Players[(ordinal-1)%len(m.Players)].ID
}

// Join 入座
func (m *Match) Join(p *Player) error {
	if m.State != StateWaitingForPlayers {
		return errors.Newf(errors.ErrGameAlreadyStarted, "session %s is %s", m.ID, m.State)
	}
	if _, ok := m.Player(p.ID); ok {
		return errors.New(errors.ErrAlreadyJoined).WithField("player_id")
	}
	if m.IsFull() {
		return errors.New(errors.ErrGameFull)
	}
	if p.Rating == 0 {
		p.Rating = DefaultRating
	}
	m.Players = append(m.Players, p)
	return nil
}

// Clone 深拷贝
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Players = make([]*Player, len(m.Players))
	for i, p := range m.Players {
		cp := *p
		c.Players[i] = &cp
	}
	c.Rounds = cloneRounds(m.Rounds)
	c.SuddenDeath = cloneRounds(m.SuddenDeath)
	if m.StartedAt != nil {
		t := *m.StartedAt
		c.StartedAt = &t
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneRounds(rounds []*round.Round) []*round.Round {
	if rounds == nil {
		return nil
	}
	out := make([]*round.Round, len(rounds))
	for i, r := range rounds {
		out[i] = r.Clone()
	}
	return out
}

// PublicView 对外展示的副本：隐藏进行中谜题的答案
func (m *Match) PublicView() *Match {
	c := m.Clone()
	for _, r := range append(append([]*round.Round(nil), c.Rounds...), c.SuddenDeath...) {
		if r.Conundrum != nil && r.Status != round.StatusComplete {
			r.Conundrum.Solution = ""
		}
	}
	return c
}
