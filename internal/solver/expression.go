package solver

import (
	"fmt"
	"strconv"
	"unicode"
)

// Reason 表达式校验失败原因
type Reason string

const (
	ReasonSyntax             Reason = "syntax"
	ReasonNumberUnavailable  Reason = "number_unavailable"
	ReasonNonIntegerDivision Reason = "non_integer_division"
	ReasonNegativeResult     Reason = "negative_result"
	ReasonDivisionByZero     Reason = "division_by_zero"
)

// ValidationError 表达式校验错误
type ValidationError struct {
	Reason   Reason
	Message  string
	Position int // 出错的字符位置，-1 表示整体
}

func (e *ValidationError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("%s at %d: %s", e.Reason, e.Position, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func invalid(reason Reason, pos int, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...), Position: pos}
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind  tokenKind
	op    byte
	value int
	pos   int
}

func tokenize(expr string) ([]token, error) {
	runes := []rune(expr)
	tokens := make([]token, 0, len(runes))

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r >= '0' && r <= '9':
			start := i
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
			n, err := strconv.Atoi(string(runes[start:i]))
			if err != nil {
				return nil, invalid(ReasonSyntax, start, "number too large")
			}
			tokens = append(tokens, token{kind: tokNumber, value: n, pos: start})
		case r == '+' || r == '-' || r == '*' || r == '/':
			tokens = append(tokens, token{kind: tokOp, op: byte(r), pos: i})
			i++
		case r == 'x' || r == 'X' || r == '×':
			tokens = append(tokens, token{kind: tokOp, op: '*', pos: i})
			i++
		case r == '÷':
			tokens = append(tokens, token{kind: tokOp, op: '/', pos: i})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i})
			i++
		default:
			return nil, invalid(ReasonSyntax, i, "invalid token %q", r)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(runes)})
	return tokens, nil
}

// parser 递归下降：expression -> term -> factor
type parser struct {
	tokens []token
	pos    int
	pool   map[int]int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expression() (int, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.op != '+' && t.op != '-') {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if t.op == '+' {
			left += right
			continue
		}
		if left-right < 0 {
			return 0, invalid(ReasonNegativeResult, t.pos, "%d - %d is negative", left, right)
		}
		left -= right
	}
}

func (p *parser) term() (int, error) {
	left, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.op != '*' && t.op != '/') {
			return left, nil
		}
		p.next()
		right, err := p.factor()
		if err != nil {
			return 0, err
		}
		if t.op == '*' {
			left *= right
			continue
		}
		if right == 0 {
			return 0, invalid(ReasonDivisionByZero, t.pos, "division by zero")
		}
		if left%right != 0 {
			return 0, invalid(ReasonNonIntegerDivision, t.pos, "%d / %d is not a whole number", left, right)
		}
		left /= right
	}
}

func (p *parser) factor() (int, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		if p.pool[t.value] == 0 {
			return 0, invalid(ReasonNumberUnavailable, t.pos, "number %d is not available", t.value)
		}
		p.pool[t.value]--
		return t.value, nil
	case tokLParen:
		v, err := p.expression()
		if err != nil {
			return 0, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return 0, invalid(ReasonSyntax, closing.pos, "missing closing parenthesis")
		}
		return v, nil
	case tokEOF:
		return 0, invalid(ReasonSyntax, t.pos, "unexpected end of expression")
	default:
		return 0, invalid(ReasonSyntax, t.pos, "unexpected token")
	}
}

// Evaluate 计算表达式，每个数字只能按其在可用数字中的出现次数使用
//
// 支持 + - * / 和括号，乘除优先于加减，同级左结合。
// 中间结果必须为非负整数。失败时返回 *ValidationError。
func Evaluate(expr string, availableNumbers []int) (int, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 1 {
		return 0, invalid(ReasonSyntax, -1, "empty expression")
	}

	pool := make(map[int]int, len(availableNumbers))
	for _, n := range availableNumbers {
		pool[n]++
	}

	p := &parser{tokens: tokens, pool: pool}
	v, err := p.expression()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		if t.kind == tokRParen {
			return 0, invalid(ReasonSyntax, t.pos, "unbalanced parenthesis")
		}
		return 0, invalid(ReasonSyntax, t.pos, "unexpected trailing input")
	}
	return v, nil
}

// Validate 只校验不关心结果
func Validate(expr string, availableNumbers []int) error {
	_, err := Evaluate(expr, availableNumbers)
	return err
}
