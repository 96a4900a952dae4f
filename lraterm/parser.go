package lraterm

import (
	"fmt"
	"strconv"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/core"
)

// Constraint is a parsed "expr sense bound" fixture line.
type Constraint struct {
	Expr  atom.Expr
	Sense atom.Sense
	Bound float64
}

// Parser implements recursive-descent parsing over a Lexer's tokens,
// the same shape as classical.Parser adapted from boolean connectives
// to signed-term addition.
type Parser struct {
	tokens  []Token
	current int
}

// ParseExpr parses a bare linear term, e.g. "2*x - y + 3". A bare
// numeric term with no variable is recorded with Var "".
func ParseExpr(input string) (atom.Expr, error) {
	lexer := NewLexer(input)
	tokens := lexer.Lex()
	if err := checkLexErrors(tokens); err != nil {
		return nil, err
	}

	p := &Parser{tokens: tokens}
	expr, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if !p.isAtEnd() {
		return nil, core.NewParseError("lraterm.ParseExpr", fmt.Sprintf("unexpected token %q at position %d", p.peek().Value, p.peek().Position))
	}
	return atom.Merge(expr).Normalize(), nil
}

// ParseConstraint parses "expr sense bound", e.g. "2*x - y <= 10".
func ParseConstraint(input string) (Constraint, error) {
	lexer := NewLexer(input)
	tokens := lexer.Lex()
	if err := checkLexErrors(tokens); err != nil {
		return Constraint{}, err
	}

	p := &Parser{tokens: tokens}
	expr, err := p.parseSum()
	if err != nil {
		return Constraint{}, err
	}

	sense, err := p.parseSense()
	if err != nil {
		return Constraint{}, err
	}

	boundExpr, err := p.parseSum()
	if err != nil {
		return Constraint{}, err
	}
	if !p.isAtEnd() {
		return Constraint{}, core.NewParseError("lraterm.ParseConstraint", fmt.Sprintf("unexpected token %q at position %d", p.peek().Value, p.peek().Position))
	}

	bound, residual := splitConstant(boundExpr)
	if len(residual) > 0 {
		return Constraint{}, core.NewParseError("lraterm.ParseConstraint", "bound side must not reference variables")
	}

	return Constraint{Expr: expr.Normalize(), Sense: sense, Bound: bound}, nil
}

func checkLexErrors(tokens []Token) error {
	for _, tok := range tokens {
		if tok.Type == TokenError {
			return core.NewParseError("lraterm", fmt.Sprintf("invalid character %q at position %d", tok.Value, tok.Position))
		}
	}
	return nil
}

// splitConstant separates the constant term (Var == "") from the
// variable terms of expr, used to read the right-hand side of a
// constraint where only a numeric literal is permitted.
func splitConstant(expr atom.Expr) (float64, atom.Expr) {
	var constant float64
	residual := make(atom.Expr, 0, len(expr))
	for _, term := range expr {
		if term.Var == "" {
			constant += term.Coeff
			continue
		}
		residual = append(residual, term)
	}
	return constant, residual
}

// parseSum parses a left-associative chain of +/- signed terms.
func (p *Parser) parseSum() (atom.Expr, error) {
	var expr atom.Expr

	sign := 1.0
	if p.match(TokenMinus) {
		sign = -1.0
	} else {
		p.match(TokenPlus)
	}

	term, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	expr = append(expr, atom.Term{Coeff: sign * term.Coeff, Var: term.Var})

	for p.check(TokenPlus) || p.check(TokenMinus) {
		sign = 1.0
		if p.match(TokenMinus) {
			sign = -1.0
		} else {
			p.match(TokenPlus)
		}
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		expr = append(expr, atom.Term{Coeff: sign * term.Coeff, Var: term.Var})
	}

	return expr, nil
}

// parseTerm parses one "coeff*var", "var", or "coeff" factor.
func (p *Parser) parseTerm() (atom.Term, error) {
	if p.match(TokenNumber) {
		coeff, err := strconv.ParseFloat(p.previous().Value, 64)
		if err != nil {
			return atom.Term{}, core.NewParseError("lraterm.parseTerm", fmt.Sprintf("invalid number %q", p.previous().Value))
		}
		if p.match(TokenStar) {
			if !p.match(TokenVariable) {
				return atom.Term{}, core.NewParseError("lraterm.parseTerm", fmt.Sprintf("expected variable after '*' at position %d", p.peek().Position))
			}
			return atom.Term{Coeff: coeff, Var: p.previous().Value}, nil
		}
		return atom.Term{Coeff: coeff, Var: ""}, nil
	}

	if p.match(TokenVariable) {
		return atom.Term{Coeff: 1, Var: p.previous().Value}, nil
	}

	return atom.Term{}, core.NewParseError("lraterm.parseTerm", fmt.Sprintf("expected term at position %d", p.peek().Position))
}

func (p *Parser) parseSense() (atom.Sense, error) {
	switch {
	case p.match(TokenLE), p.match(TokenLT):
		return atom.LE, nil
	case p.match(TokenGE), p.match(TokenGT):
		return atom.GE, nil
	case p.match(TokenEQ):
		return atom.EQ, nil
	default:
		return 0, core.NewParseError("lraterm.parseSense", fmt.Sprintf("expected comparison operator at position %d", p.peek().Position))
	}
}

func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) check(t TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() Token {
	return p.tokens[p.current-1]
}
