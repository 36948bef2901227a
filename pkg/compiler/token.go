package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF     TokenType = iota // sentinel: end of input
	ILLEGAL                  // lexical error; Token.Msg says why

	// Literals
	IDENTIFIER
	NUMBER // non-negative decimal literal

	// Keywords
	PROGRAMA
	VAR
	INTEIRO
	BOOLEANO
	PROCEDIMENTO
	FUNCAO
	INICIO
	FIM
	SE
	ENTAO
	SENAO
	ENQUANTO
	FACA
	LEIA
	ESCREVA
	VERDADEIRO
	FALSO
	DIV
	E
	OU
	NAO

	// Punctuation
	DOT       // .
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :
	LPAREN    // (
	RPAREN    // )
	ASSIGN    // :=

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // *

	// Relational operators
	LESS       // <
	LESS_EQ    // <=
	GREATER    // >
	GREATER_EQ // >=
	EQUALS     // =
	NOT_EQ     // <> or !=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:          "EOF",
	ILLEGAL:      "ILLEGAL",
	IDENTIFIER:   "IDENTIFIER",
	NUMBER:       "NUMBER",
	PROGRAMA:     "PROGRAMA",
	VAR:          "VAR",
	INTEIRO:      "INTEIRO",
	BOOLEANO:     "BOOLEANO",
	PROCEDIMENTO: "PROCEDIMENTO",
	FUNCAO:       "FUNCAO",
	INICIO:       "INICIO",
	FIM:          "FIM",
	SE:           "SE",
	ENTAO:        "ENTAO",
	SENAO:        "SENAO",
	ENQUANTO:     "ENQUANTO",
	FACA:         "FACA",
	LEIA:         "LEIA",
	ESCREVA:      "ESCREVA",
	VERDADEIRO:   "VERDADEIRO",
	FALSO:        "FALSO",
	DIV:          "DIV",
	E:            "E",
	OU:           "OU",
	NAO:          "NAO",
	DOT:          "DOT",
	SEMICOLON:    "SEMICOLON",
	COMMA:        "COMMA",
	COLON:        "COLON",
	LPAREN:       "LPAREN",
	RPAREN:       "RPAREN",
	ASSIGN:       "ASSIGN",
	PLUS:         "PLUS",
	MINUS:        "MINUS",
	STAR:         "STAR",
	LESS:         "LESS",
	LESS_EQ:      "LESS_EQ",
	GREATER:      "GREATER",
	GREATER_EQ:   "GREATER_EQ",
	EQUALS:       "EQUALS",
	NOT_EQ:       "NOT_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// IsRelational reports whether tt compares two integers.
func (tt TokenType) IsRelational() bool {
	return tt >= LESS && tt <= NOT_EQ
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	Msg    string // error description for ILLEGAL tokens
}

func (t Token) String() string {
	if t.Type == ILLEGAL {
		return fmt.Sprintf("%-10s %-14q  line %d  (%s)", t.Type, t.Lexeme, t.Line, t.Msg)
	}
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
