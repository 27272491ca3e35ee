package round

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
)

const (
	LetterCount = 9
	NumberCount = 6
	MinVowels   = 3
	MaxVowels   = 5
	MaxLarge    = 2
	MinTarget   = 100
	MaxTarget   = 999
)

// StandardLayout 标准15回合编排：10个字母回合、4个数字回合、最后一个谜题回合
const StandardLayout = "LLNLLNLLNLLLNLC"

// 字母权重
var (
	vowelWeights = map[byte]int{
		'A': 15, 'E': 21, 'I': 13, 'O': 13, 'U': 5,
	}
	consonantWeights = map[byte]int{
		'B': 2, 'C': 3, 'D': 6, 'F': 2, 'G': 3, 'H': 2, 'J': 1, 'K': 1,
		'L': 5, 'M': 4, 'N': 8, 'P': 4, 'Q': 1, 'R': 9, 'S': 9, 'T': 9,
		'V': 1, 'W': 1, 'X': 1, 'Y': 1, 'Z': 1,
	}
	largeNumbers = []int{25, 50, 75, 100}
)

// Generator 回合内容生成器，可并发使用
type Generator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	conundrums []string
	timeLimit  time.Duration

	vowelDeck     []byte
	consonantDeck []byte
}

// NewGenerator 创建生成器，seed 为0时使用当前时间
func NewGenerator(seed int64, conundrums []string, timeLimit time.Duration) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	pool := make([]string, 0, len(conundrums))
	for _, w := range conundrums {
		w = strings.ToUpper(strings.TrimSpace(w))
		if len(w) == LetterCount {
			pool = append(pool, w)
		}
	}
	return &Generator{
		rng:           rand.New(rand.NewSource(seed)),
		conundrums:    pool,
		timeLimit:     timeLimit,
		vowelDeck:     buildDeck(vowelWeights),
		consonantDeck: buildDeck(consonantWeights),
	}
}

func buildDeck(weights map[byte]int) []byte {
	var deck []byte
	for c := byte('A'); c <= 'Z'; c++ {
		for i := 0; i < weights[c]; i++ {
			deck = append(deck, c)
		}
	}
	return deck
}

// Generate 生成指定类型的回合
func (g *Generator) Generate(kind Kind, ordinal int) (*Round, error) {
	r := &Round{
		Ordinal:     ordinal,
		Kind:        kind,
		Status:      StatusPending,
		TimeLimit:   g.timeLimit,
		Submissions: make(map[string]*Submission),
	}
	switch kind {
	case KindLetters:
		r.Letters = g.Letters()
	case KindNumbers:
		r.Numbers = g.Numbers()
	case KindConundrum:
		c, err := g.Conundrum()
		if err != nil {
			return nil, err
		}
		r.Conundrum = c
	default:
		return nil, errors.Newf(errors.ErrWrongRoundType, "unknown round kind %q", kind)
	}
	return r, nil
}

// GenerateSuddenDeath 生成决胜谜题回合
func (g *Generator) GenerateSuddenDeath(ordinal int) (*Round, error) {
	r, err := g.Generate(KindConundrum, ordinal)
	if err != nil {
		return nil, err
	}
	r.SuddenDeath = true
	return r, nil
}

// Letters 抽取9个字母，元音3到5个，其余为辅音，打乱顺序
func (g *Generator) Letters() *LettersContent {
	g.mu.Lock()
	defer g.mu.Unlock()

	vowels := MinVowels + g.rng.Intn(MaxVowels-MinVowels+1)
	letters := make([]byte, 0, LetterCount)
	letters = append(letters, g.draw(g.vowelDeck, vowels)...)
	letters = append(letters, g.draw(g.consonantDeck, LetterCount-vowels)...)
	g.rng.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })

	return &LettersContent{
		Letters:    string(letters),
		Vowels:     vowels,
		Consonants: LetterCount - vowels,
	}
}

// draw 从牌堆不放回抽取n张
func (g *Generator) draw(deck []byte, n int) []byte {
	idx := g.rng.Perm(len(deck))[:n]
	out := make([]byte, n)
	for i, k := range idx {
		out[i] = deck[k]
	}
	return out
}

// Numbers 抽取6个数字：0到2个大数，其余来自1-10各两张的小数池；目标100到999
func (g *Generator) Numbers() *NumbersContent {
	g.mu.Lock()
	defer g.mu.Unlock()

	large := g.rng.Intn(MaxLarge + 1)
	numbers := make([]int, 0, NumberCount)
	for _, i := range g.rng.Perm(len(largeNumbers))[:large] {
		numbers = append(numbers, largeNumbers[i])
	}

	small := make([]int, 0, 20)
	for n := 1; n <= 10; n++ {
		small = append(small, n, n)
	}
	for _, i := range g.rng.Perm(len(small))[:NumberCount-large] {
		numbers = append(numbers, small[i])
	}

	return &NumbersContent{
		Numbers: numbers,
		Target:  MinTarget + g.rng.Intn(MaxTarget-MinTarget+1),
		Large:   large,
	}
}

// Conundrum 从谜题池选一个九字母单词并打乱，打乱结果与原词不同
func (g *Generator) Conundrum() (*ConundrumContent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.conundrums) == 0 {
		return nil, errors.New(errors.ErrInvalidGameState, "conundrum pool is empty")
	}
	word := g.conundrums[g.rng.Intn(len(g.conundrums))]
	scrambled, err := g.scramble(word)
	if err != nil {
		return nil, err
	}
	return &ConundrumContent{Scrambled: scrambled, Solution: word}, nil
}

func (g *Generator) scramble(word string) (string, error) {
	return Scramble(g.rng, word)
}

// Scramble 打乱单词字母，保证结果与原词不同
func Scramble(rng *rand.Rand, word string) (string, error) {
	b := []byte(word)
	for attempt := 0; attempt < 10; attempt++ {
		rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
		if string(b) != word {
			return string(b), nil
		}
	}
	// 多次打乱仍相同时交换第一对不同的字母
	for i := 1; i < len(b); i++ {
		if b[i] != b[0] {
			b[0], b[i] = b[i], b[0]
			return string(b), nil
		}
	}
	return "", fmt.Errorf("cannot scramble %q", word)
}

// ParseLayout 解析回合编排字符串：L=字母 N=数字 C=谜题
func ParseLayout(layout string) ([]Kind, error) {
	layout = strings.ToUpper(strings.TrimSpace(layout))
	if layout == "" {
		return nil, errors.New(errors.ErrInvalidParam, "empty round layout")
	}
	kinds := make([]Kind, 0, len(layout))
	for i, c := range layout {
		switch c {
		case 'L':
			kinds = append(kinds, KindLetters)
		case 'N':
			kinds = append(kinds, KindNumbers)
		case 'C':
			kinds = append(kinds, KindConundrum)
		default:
			return nil, errors.Newf(errors.ErrInvalidParam, "unknown round kind %q at %d", c, i)
		}
	}
	return kinds, nil
}
