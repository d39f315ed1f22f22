package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a token the grammar did not expect
type ParseError struct {
	Token Token
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("formula parse error at %d: %s (got %s)", e.Pos, e.Msg, e.Token)
}

// Parser is a recursive-descent parser over a token slice.
//
// Grammar, lowest precedence first:
//
//	comparison     := additive (("=" | "≠" | ">" | "<" | ">=" | "<=") additive)*
//	additive       := multiplicative (("+" | "-") multiplicative)*
//	multiplicative := unary (("*" | "/") unary)*
//	unary          := "-" unary | primary
//	primary        := NUMBER | STRING | FIELD_REF | TRUE | FALSE
//	                | IDENT "(" [comparison ("," comparison)*] ")"
//	                | "(" comparison ")"
type Parser struct {
	tokens []Token
	pos    int
}

// Parse builds an AST from tokens. The whole token stream must be consumed.
func Parse(tokens []Token) (Node, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		tokens = append(tokens, Token{Type: EOF})
	}
	p := &Parser{tokens: tokens}

	if p.current().Type == EOF {
		return nil, p.errorf("empty formula")
	}

	root, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != EOF {
		if tok.Type == RPAREN {
			return nil, p.errorf("unmatched closing parenthesis")
		}
		return nil, p.errorf("unexpected trailing token")
	}
	return root, nil
}

func (p *Parser) current() Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) errorf(format string, args ...interface{}) *ParseError {
	tok := p.current()
	return &ParseError{Token: tok, Pos: tok.Pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) matchOp(ops ...string) (Token, bool) {
	tok := p.current()
	if tok.Type != OP {
		return tok, false
	}
	for _, op := range ops {
		if tok.Text == op {
			p.advance()
			return tok, true
		}
	}
	return tok, false
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.matchOp(OpEq, OpNotEq, OpGt, OpLt, OpGte, OpLte)
		if !ok {
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: tok.Text, Left: left, Right: right, Pos: tok.Pos}
	}
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.matchOp(OpAdd, OpSub)
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: tok.Text, Left: left, Right: right, Pos: tok.Pos}
	}
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.matchOp(OpMul, OpDiv)
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: tok.Text, Left: left, Right: right, Pos: tok.Pos}
	}
}

func (p *Parser) parseUnary() (Node, error) {
	if tok, ok := p.matchOp(OpSub); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: tok.Text, Operand: operand, Pos: tok.Pos}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()

	switch tok.Type {
	case NUMBER:
		p.advance()
		n, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, &ParseError{Token: tok, Pos: tok.Pos, Msg: "invalid number"}
		}
		return &Literal{Value: n, Pos: tok.Pos}, nil

	case STRING:
		p.advance()
		return &Literal{Value: tok.Text, Pos: tok.Pos}, nil

	case FIELD_REF:
		p.advance()
		return &FieldRef{Name: tok.Text, Pos: tok.Pos}, nil

	case IDENT:
		p.advance()
		if p.current().Type == LPAREN {
			return p.parseCall(tok)
		}
		switch strings.ToUpper(tok.Text) {
		case "TRUE":
			return &Literal{Value: true, Pos: tok.Pos}, nil
		case "FALSE":
			return &Literal{Value: false, Pos: tok.Pos}, nil
		}
		return nil, &ParseError{Token: tok, Pos: tok.Pos, Msg: "unknown identifier; field references must be wrapped in {}"}

	case LPAREN:
		p.advance()
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.current().Type != RPAREN {
			return nil, p.errorf("unmatched opening parenthesis at %d", tok.Pos)
		}
		p.advance()
		return inner, nil

	case EOF:
		return nil, p.errorf("unexpected end of formula")
	}

	return nil, p.errorf("unexpected token")
}

func (p *Parser) parseCall(name Token) (Node, error) {
	open := p.advance()
	call := &FunctionCall{Name: strings.ToUpper(name.Text), Pos: name.Pos}

	if p.current().Type == RPAREN {
		p.advance()
		return call, nil
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		switch p.current().Type {
		case COMMA:
			p.advance()
		case RPAREN:
			p.advance()
			return call, nil
		case EOF:
			return nil, p.errorf("unmatched opening parenthesis at %d", open.Pos)
		default:
			return nil, p.errorf("expected ',' or ')' in call to %s", call.Name)
		}
	}
}

// Compile strips an optional leading "=" and tokenizes and parses the formula
func Compile(src string) (Node, error) {
	src = strings.TrimSpace(src)
	src = strings.TrimPrefix(src, "=")
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}
