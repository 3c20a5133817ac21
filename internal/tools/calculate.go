package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrDivideByZero is returned by Evaluate for a zero divisor.
var ErrDivideByZero = errors.New("division by zero")

// CalculateTool returns the arithmetic tool.
func CalculateTool() *Tool {
	return &Tool{
		Name:        "calculate",
		Description: "Evaluate an arithmetic expression.",
		Apology:     "I could not calculate that expression.",
		Handler: func(_ context.Context, expr string) (string, error) {
			v, err := Evaluate(expr)
			if err != nil {
				return "", err
			}
			return "The result is " + formatNumber(v), nil
		},
	}
}

// Evaluate computes an expression of numbers, + - * / and parentheses
// with the usual precedence. × and ÷ are accepted as operators.
func Evaluate(expr string) (float64, error) {
	p := &exprParser{src: strings.NewReplacer("×", "*", "÷", "/").Replace(expr)}
	p.skipSpace()
	if p.done() {
		return 0, errors.New("empty expression")
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if !p.done() {
		return 0, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("result out of range")
	}
	return v, nil
}

// formatNumber rounds away binary noise such as 0.30000000000000004.
func formatNumber(v float64) string {
	v = math.Round(v*1e10) / 1e10
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) done() bool { return p.pos >= len(p.src) }

func (p *exprParser) skipSpace() {
	for !p.done() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

// accept consumes op if it is the next non-space byte.
func (p *exprParser) accept(op byte) bool {
	p.skipSpace()
	if !p.done() && p.src[p.pos] == op {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept('+'):
			r, err := p.term()
			if err != nil {
				return 0, err
			}
			v += r
		case p.accept('-'):
			r, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept('*'):
			r, err := p.unary()
			if err != nil {
				return 0, err
			}
			v *= r
		case p.accept('/'):
			r, err := p.unary()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, ErrDivideByZero
			}
			v /= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) unary() (float64, error) {
	if p.accept('-') {
		v, err := p.unary()
		return -v, err
	}
	if p.accept('+') {
		return p.unary()
	}
	return p.primary()
}

func (p *exprParser) primary() (float64, error) {
	if p.accept('(') {
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if !p.accept(')') {
			return 0, errors.New("missing closing parenthesis")
		}
		return v, nil
	}

	p.skipSpace()
	start := p.pos
	for !p.done() && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		if p.done() {
			return 0, errors.New("unexpected end of expression")
		}
		return 0, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", p.src[start:p.pos])
	}
	return v, nil
}
