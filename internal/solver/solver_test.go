package solver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	pool := []int{1, 2, 3, 4, 5, 6}

	tests := []struct {
		name string
		expr string
		want int
	}{
		{"乘法优先", "2 + 3 * 4", 14},
		{"括号", "(2 + 3) * 4", 20},
		{"同级左结合减法", "6 - 2 - 1", 3},
		{"同级左结合除法", "6 / 3 * 2", 4},
		{"嵌套括号", "((6 + 4) * (5 - 3)) / 2", 10},
		{"单个数字", "6", 6},
		{"乘号别名", "2 x 3 × 4", 24},
		{"除号别名", "6 ÷ 3", 2},
		{"无空格", "1+2*3", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr, pool)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateRejects(t *testing.T) {
	pool := []int{1, 2, 3, 4, 5, 6}

	tests := []struct {
		name   string
		expr   string
		reason Reason
	}{
		{"重复使用超过次数", "1 + 1 + 1", ReasonNumberUnavailable},
		{"不在池中的数字", "7 + 1", ReasonNumberUnavailable},
		{"非整除", "5 / 2", ReasonNonIntegerDivision},
		{"负数结果", "1 - 6", ReasonNegativeResult},
		{"负数中间结果", "(2 - 3) + 6", ReasonNegativeResult},
		{"数字不足先于除零", "6 / (3 - 3)", ReasonNumberUnavailable},
		{"缺少右括号", "(1 + 2", ReasonSyntax},
		{"多余右括号", "1 + 2)", ReasonSyntax},
		{"非法字符", "1 + a", ReasonSyntax},
		{"空表达式", "   ", ReasonSyntax},
		{"运算符结尾", "1 +", ReasonSyntax},
		{"一元负号", "-1 + 2", ReasonSyntax},
		{"连续数字", "1 2", ReasonSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.expr, pool)
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.reason, ve.Reason)
		})
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	_, err := Evaluate("5 / (3 - 3)", []int{5, 3, 3})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ReasonDivisionByZero, ve.Reason)
}

func TestEvaluateMultiplicity(t *testing.T) {
	_, err := Evaluate("10 + 10", []int{10, 10, 1, 2, 3, 4})
	assert.NoError(t, err)

	_, err = Evaluate("10 + 10 + 10", []int{10, 10, 1, 2, 3, 4})
	assert.Error(t, err)
}

func TestFindSolutionsRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		numbers []int
		target  int
	}{
		{"两数", []int{100, 7, 1, 2, 3, 4}, 107},
		{"三数", []int{50, 8, 2, 1, 3, 9}, 400},
		{"经典952", []int{25, 50, 75, 100, 3, 6}, 952},
		{"小数字", []int{1, 2, 3, 4, 5, 6}, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solutions := FindSolutions(tt.numbers, tt.target, 5)
			require.NotEmpty(t, solutions)
			assert.LessOrEqual(t, len(solutions), 5)
			for _, expr := range solutions {
				got, err := Evaluate(expr, tt.numbers)
				require.NoError(t, err, expr)
				assert.Equal(t, tt.target, got, expr)
			}
		})
	}
}

func TestFindSolutionsSimplestFirst(t *testing.T) {
	solutions := FindSolutions([]int{100, 7, 1, 2, 3, 4}, 107, 1)
	require.Len(t, solutions, 1)
	assert.Equal(t, "100 + 7", solutions[0])
}

func TestFindSolutionsDepthLimit(t *testing.T) {
	// 952 需要全部6个数字，三数内不可达
	assert.Empty(t, FindSolutionsDepth([]int{25, 50, 75, 100, 3, 6}, 952, 5, 3))
	assert.Empty(t, FindSolutions([]int{1, 1}, 999, 5))
	assert.Empty(t, FindSolutions(nil, 100, 5))
	assert.Empty(t, FindSolutions([]int{1, 2}, 3, 0))
}

func TestFindClosest(t *testing.T) {
	best, ok := FindClosest([]int{25, 50, 75, 100, 3, 6}, 952, 0)
	require.True(t, ok)
	assert.Equal(t, 0, best.Distance)
	assert.Equal(t, 952, best.Value)

	got, err := Evaluate(best.Expression, []int{25, 50, 75, 100, 3, 6})
	require.NoError(t, err)
	assert.Equal(t, 952, got)

	// 1和1最多得到2
	best, ok = FindClosest([]int{1, 1}, 100, 0)
	require.True(t, ok)
	assert.Equal(t, 2, best.Value)
	assert.Equal(t, 98, best.Distance)

	_, ok = FindClosest(nil, 100, 0)
	assert.False(t, ok)
}

func TestStripOuter(t *testing.T) {
	assert.Equal(t, "1 + 2", stripOuter("(1 + 2)"))
	assert.Equal(t, "(1 + 2) * (3 + 4)", stripOuter("(1 + 2) * (3 + 4)"))
	assert.Equal(t, "(1 + 2) * 3", stripOuter("((1 + 2) * 3)"))
}
