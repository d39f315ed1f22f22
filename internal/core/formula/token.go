package formula

import "fmt"

// TokenType represents the kind of a formula token
type TokenType int

const (
	EOF TokenType = iota
	NUMBER
	STRING
	IDENT
	FIELD_REF
	OP
	LPAREN
	RPAREN
	COMMA
)

var tokenNames = [...]string{
	EOF:       "EOF",
	NUMBER:    "NUMBER",
	STRING:    "STRING",
	IDENT:     "IDENT",
	FIELD_REF: "FIELD_REF",
	OP:        "OP",
	LPAREN:    "LPAREN",
	RPAREN:    "RPAREN",
	COMMA:     "COMMA",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) && int(t) >= 0 {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Operators recognised by the tokenizer. "≠" is the canonical not-equal;
// "!=" and "<>" are normalised to it.
const (
	OpEq    = "="
	OpNotEq = "≠"
	OpGt    = ">"
	OpLt    = "<"
	OpGte   = ">="
	OpLte   = "<="
	OpAdd   = "+"
	OpSub   = "-"
	OpMul   = "*"
	OpDiv   = "/"
)

// Token is a single lexeme of a formula.
// For STRING and FIELD_REF tokens Text holds the unquoted / unbraced payload.
type Token struct {
	Type TokenType
	Text string
	Pos  int // 0-based byte offset into the formula
}

func (t Token) String() string {
	if t.Type == EOF {
		return "end of formula"
	}
	return fmt.Sprintf("%s %q", t.Type, t.Text)
}
