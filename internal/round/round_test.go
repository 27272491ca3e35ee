package round

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/lexicon"
)

func newTestScorer() *Scorer {
	lex := lexicon.NewService(lexicon.WordList{
		"listen", "silent", "tin", "ten", "net", "countdown", "count", "town",
	}, zap.NewNop())
	return NewScorer(lex, DefaultScoringRules())
}

func isVowel(c rune) bool {
	return strings.ContainsRune("AEIOU", c)
}

func TestGenerateLetters(t *testing.T) {
	g := NewGenerator(42, nil, 0)
	for i := 0; i < 500; i++ {
		content := g.Letters()
		require.Len(t, content.Letters, LetterCount)

		vowels := 0
		for _, c := range content.Letters {
			require.True(t, c >= 'A' && c <= 'Z')
			if isVowel(c) {
				vowels++
			}
		}
		assert.Equal(t, content.Vowels, vowels)
		assert.GreaterOrEqual(t, vowels, MinVowels)
		assert.LessOrEqual(t, vowels, MaxVowels)
		assert.Equal(t, LetterCount, content.Vowels+content.Consonants)
	}
}

func TestGenerateNumbers(t *testing.T) {
	g := NewGenerator(7, nil, 0)
	for i := 0; i < 500; i++ {
		content := g.Numbers()
		require.Len(t, content.Numbers, NumberCount)
		assert.GreaterOrEqual(t, content.Target, MinTarget)
		assert.LessOrEqual(t, content.Target, MaxTarget)

		large := 0
		counts := map[int]int{}
		for _, n := range content.Numbers {
			counts[n]++
			switch n {
			case 25, 50, 75, 100:
				large++
				assert.Equal(t, 1, counts[n], "大数只能出现一次")
			default:
				assert.True(t, n >= 1 && n <= 10)
				assert.LessOrEqual(t, counts[n], 2, "小数最多出现两次")
			}
		}
		assert.Equal(t, content.Large, large)
		assert.LessOrEqual(t, large, MaxLarge)
	}
}

func TestGenerateConundrum(t *testing.T) {
	g := NewGenerator(1, []string{"countdown"}, 0)
	for i := 0; i < 200; i++ {
		c, err := g.Conundrum()
		require.NoError(t, err)
		assert.Equal(t, "COUNTDOWN", c.Solution)
		assert.NotEqual(t, "COUNTDOWN", c.Scrambled)
		assert.True(t, lexicon.CanForm(c.Scrambled, "COUNTDOWN"))
	}

	_, err := NewGenerator(1, nil, 0).Conundrum()
	assert.Error(t, err)
}

func TestScrambleNeverEqual(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		s, err := Scramble(rng, "COUNTDOWN")
		require.NoError(t, err)
		assert.NotEqual(t, "COUNTDOWN", s)
	}
	_, err := Scramble(rng, "AAA")
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	g := NewGenerator(5, []string{"COUNTDOWN"}, 20*time.Second)

	r, err := g.Generate(KindLetters, 1)
	require.NoError(t, err)
	assert.NotNil(t, r.Letters)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 20*time.Second, r.TimeLimit)

	r, err = g.GenerateSuddenDeath(16)
	require.NoError(t, err)
	assert.True(t, r.SuddenDeath)
	assert.Equal(t, KindConundrum, r.Kind)

	_, err = g.Generate(Kind("bogus"), 1)
	assert.Error(t, err)
}

func TestParseLayout(t *testing.T) {
	kinds, err := ParseLayout(StandardLayout)
	require.NoError(t, err)
	require.Len(t, kinds, 15)

	count := map[Kind]int{}
	for _, k := range kinds {
		count[k]++
	}
	assert.Equal(t, 10, count[KindLetters])
	assert.Equal(t, 4, count[KindNumbers])
	assert.Equal(t, 1, count[KindConundrum])
	assert.Equal(t, KindConundrum, kinds[14])

	_, err = ParseLayout("")
	assert.Error(t, err)
	_, err = ParseLayout("LLQ")
	assert.Error(t, err)
}

func lettersRound(letters string) *Round {
	return &Round{Kind: KindLetters, Letters: &LettersContent{Letters: letters}}
}

func TestScoreLetters(t *testing.T) {
	s := newTestScorer()
	now := time.Now()

	tests := []struct {
		name    string
		letters string
		answer  string
		valid   bool
		score   int
		code    errors.ErrorCode
	}{
		{"六字母单词", "LISTENXYZ", "listen", true, 6, 0},
		{"九字母奖励", "NWODTNUOC", "countdown", true, 18, 0},
		{"无法组成", "LISTXYZQR", "listen", false, 0, errors.ErrWordNotFormable},
		{"字母重复不足", "LISTENXYZ", "linens", false, 0, errors.ErrWordNotFormable},
		{"可组成但不在词典", "LISTENXYZ", "lens", false, 0, errors.ErrWordNotInLexicon},
		{"空答案", "LISTENXYZ", "  ", false, 0, errors.ErrEmptyAnswer},
		{"非字母", "LISTENXYZ", "l1sten", false, 0, errors.ErrWordNotFormable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := s.Score(lettersRound(tt.letters), "p1", tt.answer, "", now)
			assert.Equal(t, tt.valid, sub.Valid)
			assert.Equal(t, tt.score, sub.Score)
			assert.Equal(t, tt.code, sub.ReasonCode)
			if !tt.valid {
				assert.NotEmpty(t, sub.Reason)
			}
		})
	}
}

func TestLettersScoreProperty(t *testing.T) {
	s := newTestScorer()
	for n := 3; n < 9; n++ {
		assert.Equal(t, n, s.LettersScore(n))
	}
	assert.Equal(t, 18, s.LettersScore(9))
}

func TestNumbersScoreMonotonic(t *testing.T) {
	s := newTestScorer()
	target := 500

	for d := 0; d <= 30; d++ {
		var want int
		switch {
		case d == 0:
			want = 10
		case d <= 5:
			want = 7
		case d <= 10:
			want = 5
		default:
			want = 0
		}
		assert.Equal(t, want, s.NumbersScore(target+d, target), "d=%d", d)
		assert.Equal(t, want, s.NumbersScore(target-d, target), "d=-%d", d)
		if d > 0 {
			assert.LessOrEqual(t, s.NumbersScore(target+d, target), s.NumbersScore(target+d-1, target))
		}
	}
}

func TestScoreNumbers(t *testing.T) {
	s := newTestScorer()
	r := &Round{Kind: KindNumbers, Numbers: &NumbersContent{Numbers: []int{25, 50, 75, 100, 3, 6}, Target: 952}}
	now := time.Now()

	sub := s.Score(r, "p1", "", "((100 + 6) * 3 * 75 - 50) / 25", now)
	require.True(t, sub.Valid)
	assert.Equal(t, 10, sub.Score)
	require.NotNil(t, sub.Result)
	assert.Equal(t, 952, *sub.Result)

	// 答案字段也可作为算式
	sub = s.Score(r, "p1", "100 * 6 + 75 * 3 + 50 + 25", "", now)
	require.True(t, sub.Valid)
	assert.Equal(t, 900, *sub.Result)
	assert.Equal(t, 0, sub.Score)

	sub = s.Score(r, "p1", "", "100 + 100", now)
	assert.False(t, sub.Valid)
	assert.Equal(t, errors.ErrInvalidExpression, sub.ReasonCode)
	assert.Contains(t, sub.Reason, "number_unavailable")

	sub = s.Score(r, "p1", "", "", now)
	assert.False(t, sub.Valid)
	assert.Equal(t, errors.ErrEmptyAnswer, sub.ReasonCode)
}

func TestScoreConundrum(t *testing.T) {
	s := newTestScorer()
	r := &Round{Kind: KindConundrum, Conundrum: &ConundrumContent{Scrambled: "NWODTNUOC", Solution: "COUNTDOWN"}}
	now := time.Now()

	sub := s.Score(r, "p1", "countdown", "", now)
	assert.True(t, sub.Valid)
	assert.Equal(t, 10, sub.Score)

	sub = s.Score(r, "p2", "downcount", "", now)
	assert.False(t, sub.Valid)
	assert.Equal(t, 0, sub.Score)
	assert.Equal(t, errors.ErrIncorrectAnswer, sub.ReasonCode)
}

func TestRoundLifecycle(t *testing.T) {
	r := lettersRound("LISTENXYZ")
	r.Ordinal = 1
	now := time.Now()

	err := r.Record(&Submission{PlayerID: "p1"})
	assert.True(t, errors.Is(err, errors.ErrRoundNotOpen))

	require.NoError(t, r.Start(now, "p1"))
	assert.True(t, r.IsOpen())
	assert.Error(t, r.Start(now, "p1"))

	require.NoError(t, r.Record(&Submission{PlayerID: "p1", Score: 6}))
	err = r.Record(&Submission{PlayerID: "p1"})
	assert.True(t, errors.Is(err, errors.ErrAlreadySubmitted))
	assert.False(t, r.AllSubmitted([]string{"p1", "p2"}))
	require.NoError(t, r.Record(&Submission{PlayerID: "p2"}))
	assert.True(t, r.AllSubmitted([]string{"p1", "p2"}))

	assert.True(t, r.Complete(now))
	assert.False(t, r.Complete(now))
	assert.False(t, r.IsOpen())
	assert.Equal(t, 6, r.ScoreOf("p1"))
	assert.Equal(t, 0, r.ScoreOf("p3"))

	clone := r.Clone()
	clone.Submissions["p1"].Score = 99
	assert.Equal(t, 6, r.ScoreOf("p1"))
}

func TestSummarize(t *testing.T) {
	s := newTestScorer()

	summary := s.Summarize(lettersRound("LISTENXYZ"), 2)
	assert.Equal(t, []string{"LISTEN", "SILENT"}, summary.BestWords)

	r := &Round{Kind: KindNumbers, Numbers: &NumbersContent{Numbers: []int{25, 50, 75, 100, 3, 6}, Target: 952}}
	summary = s.Summarize(r, 3)
	assert.NotEmpty(t, summary.Solution)
	assert.Nil(t, summary.Closest)

	r = &Round{Kind: KindNumbers, Numbers: &NumbersContent{Numbers: []int{1, 1, 1, 1, 1, 1}, Target: 999}}
	summary = s.Summarize(r, 3)
	require.NotNil(t, summary.Closest)
	assert.Less(t, *summary.Closest, 999)
}
