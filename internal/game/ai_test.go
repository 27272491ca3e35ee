package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/countdown-game/internal/round"
	"github.com/wfunc/countdown-game/internal/solver"
)

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty("")
	require.NoError(t, err)
	assert.Equal(t, DifficultyMedium, d)

	d, err = ParseDifficulty("hard")
	require.NoError(t, err)
	assert.Equal(t, DifficultyHard, d)

	_, err = ParseDifficulty("impossible")
	assert.Error(t, err)
}

func TestAIOpponent_Delay(t *testing.T) {
	ai := NewAIOpponent(testLexicon, 1)
	limit := 30 * time.Second
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		for i := 0; i < 20; i++ {
			delay := ai.Delay(d, limit)
			assert.Greater(t, delay, time.Duration(0))
			assert.Less(t, delay, limit)
		}
	}
	// 难度越高作答越快
	assert.Less(t, ai.Delay(DifficultyHard, limit), ai.Delay(DifficultyEasy, limit))
}

func TestAIOpponent_Answer(t *testing.T) {
	ai := NewAIOpponent(testLexicon, 1)

	t.Run("字母回合受难度限制", func(t *testing.T) {
		r := &round.Round{Kind: round.KindLetters, Letters: &round.LettersContent{Letters: "LISTENABC"}}
		word, _, ok := ai.Answer(DifficultyEasy, r)
		require.True(t, ok)
		assert.LessOrEqual(t, len(word), 5)
		assert.True(t, testLexicon.IsValidWord(word))

		word, _, ok = ai.Answer(DifficultyHard, r)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(word), 6)
	})

	t.Run("数字回合给出可验证的算式", func(t *testing.T) {
		nums := []int{100, 7, 1, 2, 3, 4}
		r := &round.Round{Kind: round.KindNumbers, Numbers: &round.NumbersContent{Numbers: nums, Target: 107}}
		_, expr, ok := ai.Answer(DifficultyHard, r)
		require.True(t, ok)
		v, err := solver.Evaluate(expr, nums)
		require.NoError(t, err)
		assert.Equal(t, 107, v)
	})

	t.Run("缺少内容时放弃", func(t *testing.T) {
		_, _, ok := ai.Answer(DifficultyHard, &round.Round{Kind: round.KindConundrum})
		assert.False(t, ok)
	})
}
