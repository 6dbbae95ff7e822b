package expression

import (
	"fmt"
	"strconv"
)

type node interface {
	eval(env *environment) (any, error)
}

type literalNode struct{ value any }

type variableNode struct{ path string }

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op          string
	left, right node
}

type parser struct {
	lex     lexer
	current token
}

// parse compiles the expression into an AST. The grammar, loosest binding
// first: || , && , == != , < <= > >= matches , + - , * / % , unary ! - ,
// then literals, variables and parenthesized groups.
func parse(input string) (node, error) {
	p := &parser{lex: lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.current.text, p.current.pos)
	}
	return n, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *parser) parseBinary(next func() (node, error), ops ...string) (node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.current.kind == tokenOperator && contains(ops, p.current.text) {
		op := p.current.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseOr() (node, error) {
	return p.parseBinary(p.parseAnd, "||")
}

func (p *parser) parseAnd() (node, error) {
	return p.parseBinary(p.parseEquality, "&&")
}

func (p *parser) parseEquality() (node, error) {
	return p.parseBinary(p.parseComparison, "==", "!=")
}

func (p *parser) parseComparison() (node, error) {
	return p.parseBinary(p.parseAdditive, "<", "<=", ">", ">=", "matches")
}

func (p *parser) parseAdditive() (node, error) {
	return p.parseBinary(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (node, error) {
	return p.parseBinary(p.parseUnary, "*", "/", "%")
}

func (p *parser) parseUnary() (node, error) {
	if p.current.kind == tokenOperator && (p.current.text == "!" || p.current.text == "-") {
		op := p.current.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.current
	switch tok.kind {
	case tokenNumber:
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q at position %d", tok.text, tok.pos)
		}
		return &literalNode{value: value}, p.advance()
	case tokenString:
		return &literalNode{value: tok.text}, p.advance()
	case tokenIdent:
		switch tok.text {
		case "true":
			return &literalNode{value: true}, p.advance()
		case "false":
			return &literalNode{value: false}, p.advance()
		case "null", "nil":
			return &literalNode{value: nil}, p.advance()
		}
		return &variableNode{path: tok.text}, p.advance()
	case tokenLeftParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.kind != tokenRightParen {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", p.current.pos)
		}
		return inner, p.advance()
	case tokenEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", tok.text, tok.pos)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
