package round

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/lexicon"
	"github.com/wfunc/countdown-game/internal/solver"
)

// Lexicon 计分需要的词库能力
type Lexicon interface {
	IsValidWord(word string) bool
	CanFormFromLetters(word, availableLetters string) bool
	FindBestWords(availableLetters string, maxResults int) []string
}

// ScoringRules 计分规则
type ScoringRules struct {
	NineLetterBonus  int
	NumbersExact     int
	NumbersNear      int
	NumbersNearRange int
	NumbersFar       int
	NumbersFarRange  int
	Conundrum        int
}

// DefaultScoringRules 默认计分规则
func DefaultScoringRules() ScoringRules {
	return ScoringRules{
		NineLetterBonus:  18,
		NumbersExact:     10,
		NumbersNear:      7,
		NumbersNearRange: 5,
		NumbersFar:       5,
		NumbersFarRange:  10,
		Conundrum:        10,
	}
}

// Scorer 按回合类型校验并计分
type Scorer struct {
	lex   Lexicon
	rules ScoringRules
}

// NewScorer 创建计分器
func NewScorer(lex Lexicon, rules ScoringRules) *Scorer {
	return &Scorer{lex: lex, rules: rules}
}

// Rules 当前计分规则
func (s *Scorer) Rules() ScoringRules {
	return s.rules
}

// Score 对一次提交校验并计分，不修改回合
func (s *Scorer) Score(r *Round, playerID, answer, expression string, now time.Time) *Submission {
	sub := &Submission{
		PlayerID:    playerID,
		Answer:      strings.TrimSpace(answer),
		Expression:  strings.TrimSpace(expression),
		SubmittedAt: now,
	}

	switch r.Kind {
	case KindLetters:
		s.scoreLetters(r.Letters, sub)
	case KindNumbers:
		s.scoreNumbers(r.Numbers, sub)
	case KindConundrum:
		s.scoreConundrum(r.Conundrum, sub)
	default:
		reject(sub, errors.ErrWrongRoundType, fmt.Sprintf("unknown round kind %q", r.Kind))
	}
	return sub
}

func reject(sub *Submission, code errors.ErrorCode, reason string) {
	sub.Valid = false
	sub.Score = 0
	sub.ReasonCode = code
	sub.Reason = reason
}

func (s *Scorer) scoreLetters(content *LettersContent, sub *Submission) {
	word := lexicon.Normalize(sub.Answer)
	switch {
	case sub.Answer == "":
		reject(sub, errors.ErrEmptyAnswer, "no word submitted")
	case word == "" || !s.lex.CanFormFromLetters(word, content.Letters):
		reject(sub, errors.ErrWordNotFormable, fmt.Sprintf("%q cannot be formed from %s", sub.Answer, content.Letters))
	case !s.lex.IsValidWord(word):
		reject(sub, errors.ErrWordNotInLexicon, fmt.Sprintf("%q is not in the dictionary", sub.Answer))
	default:
		sub.Answer = word
		sub.Valid = true
		sub.Score = s.LettersScore(len(word))
	}
}

// LettersScore 有效单词得分：字母数，九字母为奖励分
func (s *Scorer) LettersScore(length int) int {
	if length == LetterCount {
		return s.rules.NineLetterBonus
	}
	return length
}

func (s *Scorer) scoreNumbers(content *NumbersContent, sub *Submission) {
	expr := sub.Expression
	if expr == "" {
		expr = sub.Answer
		sub.Expression = expr
	}
	if expr == "" {
		reject(sub, errors.ErrEmptyAnswer, "no expression submitted")
		return
	}

	value, err := solver.Evaluate(expr, content.Numbers)
	if err != nil {
		reason := err.Error()
		var ve *solver.ValidationError
		if stderrors.As(err, &ve) {
			reason = fmt.Sprintf("%s: %s", ve.Reason, ve.Message)
		}
		reject(sub, errors.ErrInvalidExpression, reason)
		return
	}

	sub.Result = &value
	sub.Valid = true
	sub.Score = s.NumbersScore(value, content.Target)
}

// NumbersScore 按与目标的距离计分
func (s *Scorer) NumbersScore(value, target int) int {
	d := value - target
	if d < 0 {
		d = -d
	}
	switch {
	case d == 0:
		return s.rules.NumbersExact
	case d <= s.rules.NumbersNearRange:
		return s.rules.NumbersNear
	case d <= s.rules.NumbersFarRange:
		return s.rules.NumbersFar
	default:
		return 0
	}
}

func (s *Scorer) scoreConundrum(content *ConundrumContent, sub *Submission) {
	if sub.Answer == "" {
		reject(sub, errors.ErrEmptyAnswer, "no answer submitted")
		return
	}
	if lexicon.Normalize(sub.Answer) != content.Solution {
		reject(sub, errors.ErrIncorrectAnswer, fmt.Sprintf("%q is not the conundrum", sub.Answer))
		return
	}
	sub.Answer = content.Solution
	sub.Valid = true
	sub.Score = s.rules.Conundrum
}

// Summarize 生成回合参考答案
func (s *Scorer) Summarize(r *Round, maxWords int) *Summary {
	summary := &Summary{}
	switch r.Kind {
	case KindLetters:
		summary.BestWords = s.lex.FindBestWords(r.Letters.Letters, maxWords)
	case KindNumbers:
		if found := solver.FindSolutions(r.Numbers.Numbers, r.Numbers.Target, 1); len(found) > 0 {
			summary.Solution = found[0]
		} else if best, ok := solver.FindClosest(r.Numbers.Numbers, r.Numbers.Target, 0); ok {
			summary.Solution = best.Expression
			summary.Closest = &best.Value
		}
	case KindConundrum:
		summary.Conundrum = r.Conundrum.Solution
	}
	return summary
}
