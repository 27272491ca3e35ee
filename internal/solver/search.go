package solver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MinDepth 默认至少搜索的数字个数（两数、三数组合）
const MinDepth = 3

// Closest 最接近目标的结果
type Closest struct {
	Value      int    `json:"value"`
	Expression string `json:"expression"`
	Distance   int    `json:"distance"`
}

type item struct {
	value int
	expr  string
	used  int
}

type search struct {
	target     int
	maxUse     int
	maxResults int
	closest    bool

	visited map[string]struct{}
	seen    map[string]struct{}
	results []string
	best    Closest
	hasBest bool
}

// FindSolutions 搜索可由给定数字得到目标值的表达式
//
// 按使用数字个数逐层加深：先两数组合、三数组合，再扩展到全部数字。
// 返回的每个表达式都能被 Evaluate 还原为 target。
func FindSolutions(numbers []int, target, maxResults int) []string {
	depth := len(numbers)
	if depth < MinDepth {
		depth = MinDepth
	}
	return FindSolutionsDepth(numbers, target, maxResults, depth)
}

// FindSolutionsDepth 限定最多使用 depth 个数字的搜索
func FindSolutionsDepth(numbers []int, target, maxResults, depth int) []string {
	if maxResults <= 0 || len(numbers) == 0 || target < 0 {
		return []string{}
	}
	if depth > len(numbers) {
		depth = len(numbers)
	}

	seen := make(map[string]struct{})
	var results []string
	for d := 1; d <= depth && len(results) < maxResults; d++ {
		s := &search{
			target:     target,
			maxUse:     d,
			maxResults: maxResults,
			visited:    make(map[string]struct{}),
			seen:       seen,
			results:    results,
		}
		s.run(initialItems(numbers))
		results = s.results
	}
	if results == nil {
		return []string{}
	}
	return results
}

// FindClosest 找出最接近目标的可达结果（目标可达时距离为0）
func FindClosest(numbers []int, target, depth int) (Closest, bool) {
	if len(numbers) == 0 {
		return Closest{}, false
	}
	if depth <= 0 || depth > len(numbers) {
		depth = len(numbers)
	}
	s := &search{
		target:  target,
		maxUse:  depth,
		closest: true,
		visited: make(map[string]struct{}),
		seen:    make(map[string]struct{}),
	}
	s.run(initialItems(numbers))
	return s.best, s.hasBest
}

func initialItems(numbers []int) []item {
	items := make([]item, len(numbers))
	for i, n := range numbers {
		items[i] = item{value: n, expr: strconv.Itoa(n), used: 1}
	}
	return items
}

func (s *search) done() bool {
	if s.closest {
		return s.hasBest && s.best.Distance == 0
	}
	return len(s.results) >= s.maxResults
}

func (s *search) consider(it item) {
	if it.used > s.maxUse {
		return
	}
	dist := it.value - s.target
	if dist < 0 {
		dist = -dist
	}
	if s.closest {
		if !s.hasBest || dist < s.best.Distance {
			s.best = Closest{Value: it.value, Expression: stripOuter(it.expr), Distance: dist}
			s.hasBest = true
		}
		return
	}
	if dist != 0 {
		return
	}
	expr := stripOuter(it.expr)
	if _, ok := s.seen[expr]; ok {
		return
	}
	s.seen[expr] = struct{}{}
	s.results = append(s.results, expr)
}

func (s *search) run(items []item) {
	if s.done() {
		return
	}
	key := stateKey(items)
	if _, ok := s.visited[key]; ok {
		return
	}
	s.visited[key] = struct{}{}

	for _, it := range items {
		s.consider(it)
		if s.done() {
			return
		}
	}

	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			if a.used+b.used > s.maxUse {
				continue
			}
			rest := make([]item, 0, len(items)-1)
			for k := range items {
				if k != i && k != j {
					rest = append(rest, items[k])
				}
			}
			for _, combined := range combine(a, b) {
				s.run(append(rest, combined))
				if s.done() {
					return
				}
			}
		}
	}
}

// combine 两数合并的所有有意义结果，剪掉 ×1、÷1、结果为0 和非整除
func combine(a, b item) []item {
	if a.value < b.value {
		a, b = b, a
	}
	used := a.used + b.used
	out := make([]item, 0, 4)

	out = append(out, item{value: a.value + b.value, expr: join(a, "+", b), used: used})
	if a.value != 1 && b.value != 1 {
		out = append(out, item{value: a.value * b.value, expr: join(a, "*", b), used: used})
	}
	if diff := a.value - b.value; diff > 0 && diff != b.value {
		out = append(out, item{value: diff, expr: join(a, "-", b), used: used})
	}
	if b.value > 1 && a.value%b.value == 0 {
		if q := a.value / b.value; q != b.value {
			out = append(out, item{value: q, expr: join(a, "/", b), used: used})
		}
	}
	return out
}

func join(a item, op string, b item) string {
	return fmt.Sprintf("(%s %s %s)", a.expr, op, b.expr)
}

func stateKey(items []item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = strconv.Itoa(it.value) + ":" + strconv.Itoa(it.used)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// stripOuter 去掉包裹整个表达式的最外层括号
func stripOuter(expr string) string {
	for len(expr) >= 2 && expr[0] == '(' && expr[len(expr)-1] == ')' && matchesOuter(expr) {
		expr = expr[1 : len(expr)-1]
	}
	return expr
}

func matchesOuter(expr string) bool {
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return false
			}
		}
	}
	return depth == 0
}
