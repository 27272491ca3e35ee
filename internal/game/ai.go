package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/round"
	"github.com/wfunc/countdown-game/internal/solver"
)

// WordFinder 电脑对手查词能力
type WordFinder interface {
	FindBestWords(availableLetters string, maxResults int) []string
}

type aiProfile struct {
	maxWordLength int
	searchDepth   int
	solveChance   float64
	delayFraction float64 // 作答时间占回合时长的比例
}

var aiProfiles = map[Difficulty]aiProfile{
	DifficultyEasy:   {maxWordLength: 5, searchDepth: 3, solveChance: 0.25, delayFraction: 0.75},
	DifficultyMedium: {maxWordLength: 7, searchDepth: 4, solveChance: 0.55, delayFraction: 0.5},
	DifficultyHard:   {maxWordLength: 9, searchDepth: 6, solveChance: 0.9, delayFraction: 0.3},
}

// ParseDifficulty 解析难度，空串为中等
func ParseDifficulty(s string) (Difficulty, error) {
	if s == "" {
		return DifficultyMedium, nil
	}
	d := Difficulty(s)
	if _, ok := aiProfiles[d]; !ok {
		return "", errors.Newf(errors.ErrInvalidParam, "unknown difficulty %q", s).WithField("difficulty")
	}
	return d, nil
}

// AIOpponent 电脑对手策略
type AIOpponent struct {
	words WordFinder
	mu    sync.Mutex
	rng   *rand.Rand
}

// NewAIOpponent 创建电脑对手，seed 为0时使用当前时间
func NewAIOpponent(words WordFinder, seed int64) *AIOpponent {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &AIOpponent{words: words, rng: rand.New(rand.NewSource(seed))}
}

func profileFor(d Difficulty) aiProfile {
	if p, ok := aiProfiles[d]; ok {
		return p
	}
	return aiProfiles[DifficultyMedium]
}

// Delay 作答延迟，带±10%抖动且不超过回合时长
func (a *AIOpponent) Delay(d Difficulty, limit time.Duration) time.Duration {
	p := profileFor(d)
	a.mu.Lock()
	jitter := 0.9 + a.rng.Float64()*0.2
	a.mu.Unlock()

	delay := time.Duration(float64(limit) * p.delayFraction * jitter)
	if delay >= limit {
		delay = limit - limit/10
	}
	return delay
}

// Answer 根据回合内容给出答案，ok 为 false 时放弃作答
func (a *AIOpponent) Answer(d Difficulty, r *round.Round) (answer, expression string, ok bool) {
	p := profileFor(d)

	switch r.Kind {
	case round.KindLetters:
		if r.Letters == nil || a.words == nil {
			return "", "", false
		}
		for _, w := range a.words.FindBestWords(r.Letters.Letters, 50) {
			if len(w) <= p.maxWordLength {
				return w, "", true
			}
		}
		return "", "", false

	case round.KindNumbers:
		if r.Numbers == nil {
			return "", "", false
		}
		best, found := solver.FindClosest(r.Numbers.Numbers, r.Numbers.Target, p.searchDepth)
		if !found {
			return "", "", false
		}
		return "", best.Expression, true

	case round.KindConundrum:
		if r.Conundrum == nil {
			return "", "", false
		}
		a.mu.Lock()
		roll := a.rng.Float64()
		a.mu.Unlock()
		if roll >= p.solveChance {
			return "", "", false
		}
		return r.Conundrum.Solution, "", true
	}
	return "", "", false
}
