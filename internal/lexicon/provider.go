package lexicon

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed default_words.txt
var embeddedWords string

//go:embed default_conundrums.txt
var embeddedConundrums string

// Provider 词表提供者，词库内容由外部维护
type Provider interface {
	Words() []string
}

// WordList 内存词表
type WordList []string

// Words 实现Provider接口
func (w WordList) Words() []string {
	return w
}

// DefaultProvider 返回内置词表
func DefaultProvider() Provider {
	return WordList(parseLines(strings.NewReader(embeddedWords)))
}

// DefaultConundrums 返回内置九字母谜题词
func DefaultConundrums() []string {
	return parseLines(strings.NewReader(embeddedConundrums))
}

// LoadFile 从文件加载词表（每行一个单词，# 开头为注释）
func LoadFile(path string) (Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开词表文件失败: %w", err)
	}
	defer f.Close()

	words := parseLines(f)
	if len(words) == 0 {
		return nil, fmt.Errorf("词表文件为空: %s", path)
	}
	return WordList(words), nil
}

// LoadLines 从文件加载原始行（谜题词表使用）
func LoadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()
	return parseLines(f), nil
}

func parseLines(r io.Reader) []string {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
