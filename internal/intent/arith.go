package intent

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidExpression = errors.New("invalid arithmetic expression")
	ErrDivisionByZero    = errors.New("division by zero")
)

const maxExprDepth = 64

var spokenOperators = strings.NewReplacer(
	" divided by ", " / ",
	" multiplied by ", " * ",
	" times ", " * ",
	" plus ", " + ",
	" minus ", " - ",
)

// ExtractArithmetic returns the first run of arithmetic characters in s that
// contains a digit, with spoken operators rewritten to symbols.
func ExtractArithmetic(s string) string {
	s = spokenOperators.Replace(" " + s + " ")
	start := -1
	hasDigit := false
	for i := 0; i <= len(s); i++ {
		if i < len(s) && isArithChar(s[i]) {
			if start < 0 {
				start = i
				hasDigit = false
			}
			if s[i] >= '0' && s[i] <= '9' {
				hasDigit = true
			}
			continue
		}
		if start >= 0 && hasDigit {
			return strings.TrimSpace(s[start:i])
		}
		start = -1
	}
	return ""
}

func isArithChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case strings.IndexByte("+-*/(). \t", c) >= 0:
		return true
	default:
		return false
	}
}

// EvalArithmetic evaluates + - * / and parentheses over decimal numbers,
// with unary signs. Nothing else is accepted.
func EvalArithmetic(expr string) (float64, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}
	p := &parser{toks: toks}
	v, err := p.expr(0)
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, p.toks[p.pos].text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result out of range", ErrInvalidExpression)
	}
	return v, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func tokenize(s string) ([]token, error) {
	var out []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			out = append(out, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			out = append(out, token{kind: tokRParen, text: ")"})
			i++
		case strings.IndexByte("+-*/", c) >= 0:
			out = append(out, token{kind: tokOp, text: string(c)})
			i++
		case (c >= '0' && c <= '9') || c == '.':
			j := i
			dots := 0
			for j < len(s) && ((s[j] >= '0' && s[j] <= '9') || s[j] == '.') {
				if s[j] == '.' {
					dots++
				}
				j++
			}
			if dots > 1 {
				return nil, fmt.Errorf("%w: malformed number %q", ErrInvalidExpression, s[i:j])
			}
			n, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed number %q", ErrInvalidExpression, s[i:j])
			}
			out = append(out, token{kind: tokNumber, text: s[i:j], num: n})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected character %q", ErrInvalidExpression, c)
		}
	}
	return out, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peekOp(ops string) (string, bool) {
	if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokOp {
		return "", false
	}
	op := p.toks[p.pos].text
	return op, strings.Contains(ops, op)
}

func (p *parser) expr(depth int) (float64, error) {
	if depth > maxExprDepth {
		return 0, fmt.Errorf("%w: nested too deeply", ErrInvalidExpression)
	}
	left, err := p.term(depth)
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.term(depth)
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term(depth int) (float64, error) {
	left, err := p.unary(depth)
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("*/")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.unary(depth)
		if err != nil {
			return 0, err
		}
		if op == "*" {
			left *= right
			continue
		}
		if right == 0 {
			return 0, ErrDivisionByZero
		}
		left /= right
	}
}

func (p *parser) unary(depth int) (float64, error) {
	if depth > maxExprDepth {
		return 0, fmt.Errorf("%w: nested too deeply", ErrInvalidExpression)
	}
	if op, ok := p.peekOp("+-"); ok {
		p.pos++
		v, err := p.unary(depth + 1)
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.primary(depth)
}

func (p *parser) primary(depth int) (float64, error) {
	if p.pos >= len(p.toks) {
		return 0, fmt.Errorf("%w: unexpected end", ErrInvalidExpression)
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokNumber:
		p.pos++
		return tok.num, nil
	case tokLParen:
		p.pos++
		v, err := p.expr(depth + 1)
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokRParen {
			return 0, fmt.Errorf("%w: missing )", ErrInvalidExpression)
		}
		p.pos++
		return v, nil
	default:
		return 0, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, tok.text)
	}
}
