// Package compiler is a single-pass compiler for a small Pascal-style
// teaching language that targets the MVD stack machine.
//
// Pipeline: source → Lexer → Parser (symbol table, expression checker and
// emitter driven in the same pass) → bytecode text / asm instructions
package compiler
