package lexicon

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinWordLength 有效单词的最小长度
const MinWordLength = 3

// Service 词库服务：单词校验、字母组合判断和变位词查找
//
// 构建后只读，可被多个goroutine并发使用。
type Service struct {
	words  map[string]struct{}
	byKey  map[string][]string // 排序后的字母 -> 该组字母的所有单词
	ranked []string            // 按长度降序、字典序升序
	logger *zap.Logger
}

// NewService 根据词表提供者构建词库服务
func NewService(provider Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		words:  make(map[string]struct{}),
		byKey:  make(map[string][]string),
		logger: logger,
	}

	skipped := 0
	if provider != nil {
		for _, raw := range provider.Words() {
			word := Normalize(raw)
			if len(word) < MinWordLength {
				skipped++
				continue
			}
			if _, exists := s.words[word]; exists {
				continue
			}
			s.words[word] = struct{}{}
			key := sortLetters(word)
			s.byKey[key] = append(s.byKey[key], word)
			s.ranked = append(s.ranked, word)
		}
	}

	sort.Slice(s.ranked, func(i, j int) bool {
		return rankLess(s.ranked[i], s.ranked[j])
	})
	for key := range s.byKey {
		sort.Strings(s.byKey[key])
	}

	logger.Info("词库加载完成",
		zap.Int("words", len(s.words)),
		zap.Int("skipped", skipped))

	return s
}

// Size 词库单词数量
func (s *Service) Size() int {
	return len(s.words)
}

// IsValidWord 判断单词是否在词库中（不区分大小写，至少3个字母）
func (s *Service) IsValidWord(word string) bool {
	w := Normalize(word)
	if len(w) < MinWordLength {
		return false
	}
	_, ok := s.words[w]
	return ok
}

// CanFormFromLetters 判断单词能否由给定字母组成（多重集包含，每个字母最多使用其出现次数）
func (s *Service) CanFormFromLetters(word, availableLetters string) bool {
	return CanForm(word, availableLetters)
}

// FindBestWords 找出可由给定字母组成的最长单词，按长度降序、字典序升序排列
func (s *Service) FindBestWords(availableLetters string, maxResults int) []string {
	letters := Normalize(availableLetters)
	if letters == "" || maxResults <= 0 {
		return []string{}
	}

	pool := countLetters(letters)
	results := make([]string, 0, maxResults)
	for _, word := range s.ranked {
		if len(word) > len(letters) {
			continue
		}
		if contains(pool, countLetters(word)) {
			results = append(results, word)
			if len(results) >= maxResults {
				break
			}
		}
	}
	return results
}

// FindAnagrams 找出与给定字母完全同构（字母多重集相同）的所有单词
func (s *Service) FindAnagrams(letters string) []string {
	normalized := Normalize(letters)
	if normalized == "" {
		return []string{}
	}
	found := s.byKey[sortLetters(normalized)]
	out := make([]string, len(found))
	copy(out, found)
	return out
}

// WordsOfLength 返回指定长度的所有单词（字典序）
func (s *Service) WordsOfLength(n int) []string {
	var out []string
	for _, word := range s.ranked {
		if len(word) == n {
			out = append(out, word)
		}
	}
	sort.Strings(out)
	return out
}

// ConundrumPool 谜题词池：精选词表中属于词库的九字母单词，精选为空时退回词库全部九字母单词
func (s *Service) ConundrumPool(curated []string) []string {
	var pool []string
	seen := make(map[string]struct{})
	for _, raw := range curated {
		word := Normalize(raw)
		if len(word) != 9 || !s.IsValidWord(word) {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		pool = append(pool, word)
	}
	if len(pool) == 0 {
		pool = s.WordsOfLength(9)
	}
	return pool
}

// Normalize 转为大写并校验只含A-Z，不合法时返回空串
func Normalize(word string) string {
	upper := cases.Upper(language.English).String(strings.TrimSpace(word))
	for i := 0; i < len(upper); i++ {
		if upper[i] < 'A' || upper[i] > 'Z' {
			return ""
		}
	}
	return upper
}

// CanForm 多重集包含判断
func CanForm(word, availableLetters string) bool {
	w := Normalize(word)
	letters := Normalize(availableLetters)
	if w == "" || letters == "" || len(w) > len(letters) {
		return false
	}
	return contains(countLetters(letters), countLetters(w))
}

func countLetters(word string) [26]int {
	var counts [26]int
	for i := 0; i < len(word); i++ {
		counts[word[i]-'A']++
	}
	return counts
}

func contains(pool, need [26]int) bool {
	for i := range need {
		if need[i] > pool[i] {
			return false
		}
	}
	return true
}

func sortLetters(word string) string {
	b := []byte(word)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}

func rankLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}
