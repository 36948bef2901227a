package compiler

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateSymbol     = errors.New("duplicate symbol")
	ErrUndeclaredSymbol    = errors.New("undeclared symbol")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrMalformedExpression = errors.New("malformed expression")
	ErrCompilationFailed   = errors.New("compilation failed")
)

type DiagnosticKind int

const (
	Lexical DiagnosticKind = iota
	Syntactic
	Semantic
)

func (k DiagnosticKind) String() string {
	switch k {
	case Lexical:
		return "lexical error"
	case Syntactic:
		return "syntax error"
	case Semantic:
		return "semantic error"
	}
	return fmt.Sprintf("DiagnosticKind(%d)", int(k))
}

// Diagnostic is a compile error at a source line. Err wraps one of the
// sentinel errors for semantic diagnostics.
type Diagnostic struct {
	Kind DiagnosticKind
	Line int
	Msg  string
	Err  error
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s on line %d: %s", d.Kind, d.Line, d.Msg)
}

func (d *Diagnostic) Unwrap() error { return d.Err }
