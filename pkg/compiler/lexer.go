package compiler

import (
	"fmt"
	"unicode"
)

// keywords maps source text to its keyword TokenType. Matching is
// case-sensitive.
var keywords = map[string]TokenType{
	"programa":     PROGRAMA,
	"var":          VAR,
	"inteiro":      INTEIRO,
	"booleano":     BOOLEANO,
	"procedimento": PROCEDIMENTO,
	"funcao":       FUNCAO,
	"inicio":       INICIO,
	"fim":          FIM,
	"se":           SE,
	"entao":        ENTAO,
	"senao":        SENAO,
	"enquanto":     ENQUANTO,
	"faca":         FACA,
	"leia":         LEIA,
	"escreva":      ESCREVA,
	"verdadeiro":   VERDADEIRO,
	"falso":        FALSO,
	"div":          DIV,
	"e":            E,
	"ou":           OU,
	"nao":          NAO,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipComment discards everything up to and including the closing '}'.
// The opening '{' must already have been consumed.
func (l *Lexer) skipComment() bool {
	for l.pos < len(l.src) {
		if l.advance() == '}' {
			return true
		}
	}
	return false
}

// scanIdent collects a full identifier or keyword token.
// The first letter must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !isDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

// isDigit accepts ASCII decimal digits only.
func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// scanNumber collects a decimal literal. The first digit must still be at
// l.peek().
func (l *Lexer) scanNumber() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	return Token{Type: NUMBER, Lexeme: string(l.src[start:l.pos]), Line: line}
}

// NextToken skips whitespace and comments and returns the next Token. Lexical
// errors come back as ILLEGAL tokens; scanning can continue after them.
func (l *Lexer) NextToken() Token {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Lexeme: "", Line: l.line}
		}
		if l.peek() != '{' {
			break
		}
		startLine := l.line
		l.advance()
		if !l.skipComment() {
			return Token{Type: ILLEGAL, Lexeme: "{", Line: startLine,
				Msg: fmt.Sprintf("unterminated comment (opened on line %d)", startLine)}
		}
	}

	ch := l.peek()
	line := l.line

	if unicode.IsLetter(ch) {
		return l.scanIdent()
	}
	if isDigit(ch) {
		return l.scanNumber()
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '.':
		return Token{Type: DOT, Lexeme: ".", Line: line}
	case ';':
		return Token{Type: SEMICOLON, Lexeme: ";", Line: line}
	case ',':
		return Token{Type: COMMA, Lexeme: ",", Line: line}
	case '(':
		return Token{Type: LPAREN, Lexeme: "(", Line: line}
	case ')':
		return Token{Type: RPAREN, Lexeme: ")", Line: line}
	case '+':
		return Token{Type: PLUS, Lexeme: "+", Line: line}
	case '-':
		return Token{Type: MINUS, Lexeme: "-", Line: line}
	case '*':
		return Token{Type: STAR, Lexeme: "*", Line: line}
	case '=':
		return Token{Type: EQUALS, Lexeme: "=", Line: line}
	case ':':
		if l.peek() == '=' {
			l.advance()
			return Token{Type: ASSIGN, Lexeme: ":=", Line: line}
		}
		return Token{Type: COLON, Lexeme: ":", Line: line}
	case '<':
		switch l.peek() {
		case '=':
			l.advance()
			return Token{Type: LESS_EQ, Lexeme: "<=", Line: line}
		case '>':
			l.advance()
			return Token{Type: NOT_EQ, Lexeme: "<>", Line: line}
		}
		return Token{Type: LESS, Lexeme: "<", Line: line}
	case '>':
		if l.peek() == '=' {
			l.advance()
			return Token{Type: GREATER_EQ, Lexeme: ">=", Line: line}
		}
		return Token{Type: GREATER, Lexeme: ">", Line: line}
	case '!':
		if l.peek() == '=' {
			l.advance()
			return Token{Type: NOT_EQ, Lexeme: "!=", Line: line}
		}
	}
	return Token{Type: ILLEGAL, Lexeme: string(ch), Line: line,
		Msg: fmt.Sprintf("unexpected character %q", ch)}
}

// Lex tokenizes src completely. The returned slice always ends with EOF.
func Lex(src string) []Token {
	l := NewLexer(src)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}
