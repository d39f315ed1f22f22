package formula

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LexError is returned when the tokenizer meets a character it cannot place
type LexError struct {
	Char rune
	Pos  int
	Msg  string
}

func (e *LexError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("formula syntax error at %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("formula syntax error at %d: unexpected character %q", e.Pos, e.Char)
}

type lexer struct {
	input  string
	pos    int
	tokens []Token
}

// Tokenize lexes a formula into tokens terminated by an EOF token.
// A leading "=" must already be stripped by the caller (see Compile).
func Tokenize(input string) ([]Token, error) {
	l := &lexer{input: input}
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			l.tokens = append(l.tokens, Token{Type: EOF, Pos: l.pos})
			return l.tokens, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) peek() (rune, int) {
	if l.pos >= len(l.input) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.input[l.pos:])
}

func (l *lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, w := l.peek()
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += w
	}
}

func (l *lexer) emit(tt TokenType, text string, start int) {
	l.tokens = append(l.tokens, Token{Type: tt, Text: text, Pos: start})
}

func (l *lexer) next() error {
	start := l.pos
	r, w := l.peek()

	switch {
	case isDigit(r) || (r == '.' && l.digitAt(l.pos+1)):
		l.lexNumber()
		return nil
	case r == '"' || r == '\'':
		return l.lexString(r)
	case r == '{':
		return l.lexFieldRef()
	case isIdentStart(r):
		l.lexIdent()
		return nil
	}

	switch r {
	case '(':
		l.pos += w
		l.emit(LPAREN, "(", start)
	case ')':
		l.pos += w
		l.emit(RPAREN, ")", start)
	case ',':
		l.pos += w
		l.emit(COMMA, ",", start)
	case '+', '-', '*', '/', '=':
		l.pos += w
		l.emit(OP, string(r), start)
	case '≠':
		l.pos += w
		l.emit(OP, OpNotEq, start)
	case '>':
		l.pos += w
		if l.accept('=') {
			l.emit(OP, OpGte, start)
		} else {
			l.emit(OP, OpGt, start)
		}
	case '<':
		l.pos += w
		switch {
		case l.accept('='):
			l.emit(OP, OpLte, start)
		case l.accept('>'):
			l.emit(OP, OpNotEq, start)
		default:
			l.emit(OP, OpLt, start)
		}
	case '!':
		l.pos += w
		if !l.accept('=') {
			return &LexError{Char: r, Pos: start}
		}
		l.emit(OP, OpNotEq, start)
	default:
		return &LexError{Char: r, Pos: start}
	}
	return nil
}

func (l *lexer) accept(want byte) bool {
	if l.pos < len(l.input) && l.input[l.pos] == want {
		l.pos++
		return true
	}
	return false
}

func (l *lexer) digitAt(i int) bool {
	return i < len(l.input) && l.input[i] >= '0' && l.input[i] <= '9'
}

func (l *lexer) lexNumber() {
	start := l.pos
	seenDot := false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '.' && !seenDot && l.digitAt(l.pos+1) {
			seenDot = true
			l.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		l.pos++
	}
	l.emit(NUMBER, l.input[start:l.pos], start)
}

// lexString reads a quoted literal. Quotes are escaped either with a
// backslash or by doubling them.
func (l *lexer) lexString(quote rune) error {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		r, w := l.peek()
		switch {
		case r == '\\' && l.pos+w < len(l.input):
			l.pos += w
			esc, ew := l.peek()
			l.pos += ew
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(esc)
			}
		case r == quote:
			l.pos += w
			if l.pos < len(l.input) && rune(l.input[l.pos]) == quote {
				sb.WriteRune(quote)
				l.pos++
				continue
			}
			l.emit(STRING, sb.String(), start)
			return nil
		default:
			sb.WriteRune(r)
			l.pos += w
		}
	}
	return &LexError{Char: quote, Pos: start, Msg: "unterminated string literal"}
}

func (l *lexer) lexFieldRef() error {
	start := l.pos
	end := strings.IndexByte(l.input[l.pos+1:], '}')
	if end < 0 {
		return &LexError{Char: '{', Pos: start, Msg: "unterminated field reference"}
	}
	name := strings.TrimSpace(l.input[l.pos+1 : l.pos+1+end])
	if name == "" {
		return &LexError{Char: '{', Pos: start, Msg: "empty field reference"}
	}
	l.pos += end + 2
	l.emit(FIELD_REF, name, start)
	return nil
}

func (l *lexer) lexIdent() {
	start := l.pos
	for l.pos < len(l.input) {
		r, w := l.peek()
		if !isIdentPart(r) {
			break
		}
		l.pos += w
	}
	l.emit(IDENT, l.input[start:l.pos], start)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return isIdentStart(r) || isDigit(r) || r == '.' }
