package compiler

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"gomvd/pkg/asm"
	"gomvd/pkg/vm"
)

// Parser is a single-pass recursive-descent compiler: each grammar rule
// consumes tokens and emits code as it goes.
//
//	program    = "programa" IDENTIFIER ";" block "."
//	block      = [varSection] {subroutine} compound
//	varSection = "var" identList ":" type ";" {identList ":" type ";"}
//	subroutine = ("procedimento" IDENTIFIER | "funcao" IDENTIFIER ":" type) ";" block ";"
//	compound   = "inicio" [statement] {";" [statement]} "fim"
//	statement  = assignment | call | if | while | read | write | compound
//	expression = simpleExpr {relop simpleExpr}
//	simpleExpr = ["+"|"-"] term {("+"|"-"|"ou") term}
//	term       = factor {("*"|"div"|"e") factor}
//	factor     = IDENTIFIER | NUMBER | "verdadeiro" | "falso" | "(" expression ")"
//	           | "nao" factor | ("+"|"-") factor
//
// After the first diagnostic the parser keeps going to the end of input but
// reports nothing more and emits nothing.
type Parser struct {
	lex      *Lexer
	tok      Token
	consumed int

	syms *SymbolTable
	em   *Emitter

	// active holds the subroutines whose bodies are being parsed, innermost last.
	active []*Symbol

	diags      []*Diagnostic
	suppressed int
	scopes     []string

	log commonlog.Logger
}

func NewParser(src string) *Parser {
	p := &Parser{
		lex:  NewLexer(src),
		syms: NewSymbolTable(),
		em:   NewEmitter(),
		log:  commonlog.GetLogger("gomvd.compiler"),
	}
	p.advance()
	return p
}

// Failed reports whether any diagnostic was raised.
func (p *Parser) Failed() bool {
	return len(p.diags) > 0
}

// report records d if it is the first diagnostic. Later ones only count.
func (p *Parser) report(d *Diagnostic) {
	if p.Failed() {
		p.suppressed++
		p.log.Debugf("suppressed %v", d)
		return
	}
	p.diags = append(p.diags, d)
	p.em.Mute()
}

func (p *Parser) syntaxError(line int, format string, args ...any) {
	p.report(&Diagnostic{Kind: Syntactic, Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (p *Parser) semanticError(line int, err error) {
	p.report(&Diagnostic{Kind: Semantic, Line: line, Msg: err.Error(), Err: err})
}

// advance moves to the next token, reporting and skipping lexical errors.
func (p *Parser) advance() {
	p.consumed++
	for {
		p.tok = p.lex.NextToken()
		if p.tok.Type != ILLEGAL {
			return
		}
		p.report(&Diagnostic{Kind: Lexical, Line: p.tok.Line, Msg: p.tok.Msg})
	}
}

// expect consumes the current token if it has type tt and reports otherwise.
// A mismatched token is left in place.
func (p *Parser) expect(tt TokenType) bool {
	if p.tok.Type == tt {
		p.advance()
		return true
	}
	p.syntaxError(p.tok.Line, "expected %s, found %s", describe(tt), found(p.tok))
	return false
}

var punctuation = map[TokenType]string{
	DOT:        ".",
	SEMICOLON:  ";",
	COMMA:      ",",
	COLON:      ":",
	LPAREN:     "(",
	RPAREN:     ")",
	ASSIGN:     ":=",
	PLUS:       "+",
	MINUS:      "-",
	STAR:       "*",
	LESS:       "<",
	LESS_EQ:    "<=",
	GREATER:    ">",
	GREATER_EQ: ">=",
	EQUALS:     "=",
	NOT_EQ:     "<>",
}

func describe(tt TokenType) string {
	switch tt {
	case IDENTIFIER:
		return "identifier"
	case NUMBER:
		return "number"
	case EOF:
		return "end of input"
	}
	if s, ok := punctuation[tt]; ok {
		return "'" + s + "'"
	}
	for word, kw := range keywords {
		if kw == tt {
			return "'" + word + "'"
		}
	}
	return tt.String()
}

func found(tok Token) string {
	if tok.Type == EOF {
		return "end of input"
	}
	return "'" + tok.Lexeme + "'"
}

func (p *Parser) declare(tok Token, kind SymbolKind, typ ValueType) *Symbol {
	sym, err := p.syms.Declare(tok.Lexeme, kind, typ)
	if err != nil {
		p.semanticError(tok.Line, err)
		return nil
	}
	return sym
}

func (p *Parser) resolve(tok Token) *Symbol {
	sym, err := p.syms.Resolve(tok.Lexeme)
	if err != nil {
		p.semanticError(tok.Line, err)
		return nil
	}
	return sym
}

// dumpScope records the innermost scope for the listing before it closes.
func (p *Parser) dumpScope(owner string) {
	p.scopes = append(p.scopes, fmt.Sprintf("-- %s --\n%s", owner, p.syms))
}

// ParseProgram compiles a whole program.
func (p *Parser) ParseProgram() {
	p.expect(PROGRAMA)
	name := p.tok
	if p.expect(IDENTIFIER) {
		p.declare(name, SymProgram, TypeNone)
	}
	p.expect(SEMICOLON)

	p.em.Emit(vm.OpSTART)
	p.parseBlock(true)
	p.em.Emit(vm.OpHLT)

	p.expect(DOT)
	if p.tok.Type != EOF {
		p.syntaxError(p.tok.Line, "unexpected %s after end of program", found(p.tok))
	}
	p.dumpScope("programa " + name.Lexeme)
}

type allocation struct {
	base, n int
}

func (p *Parser) alloc(a allocation) {
	if a.n > 0 {
		p.em.Emit(vm.OpALLOC, asm.Num(a.base), asm.Num(a.n))
	}
}

// parseBlock compiles declarations and the statement part of a block. The
// skip jump around nested subroutines is always emitted for the program
// block and otherwise only when subroutines exist.
func (p *Parser) parseBlock(program bool) {
	var allocs []allocation
	if p.tok.Type == VAR {
		allocs = p.parseVarSection()
	}

	if program || p.tok.Type == PROCEDIMENTO || p.tok.Type == FUNCAO {
		skip := p.em.NewLabel()
		p.em.Emit(vm.OpJMP, asm.Ref(skip))
		slots := allocation{base: p.syms.NextAddress()}
		for p.tok.Type == PROCEDIMENTO || p.tok.Type == FUNCAO {
			p.parseSubroutine()
		}
		slots.n = p.syms.NextAddress() - slots.base
		p.em.Place(skip)
		// Function result slots of this block.
		p.alloc(slots)
		allocs = append(allocs, slots)
	}

	p.parseCompound()

	for i := len(allocs) - 1; i >= 0; i-- {
		if a := allocs[i]; a.n > 0 {
			p.em.Emit(vm.OpDALLOC, asm.Num(a.base), asm.Num(a.n))
		}
	}
}

func (p *Parser) parseVarSection() []allocation {
	p.advance() // var
	if p.tok.Type != IDENTIFIER {
		p.expect(IDENTIFIER)
	}

	var allocs []allocation
	for p.tok.Type == IDENTIFIER {
		var names []Token
		names = append(names, p.tok)
		p.advance()
		for p.tok.Type == COMMA {
			p.advance()
			if p.tok.Type == IDENTIFIER {
				names = append(names, p.tok)
			}
			p.expect(IDENTIFIER)
		}
		p.expect(COLON)
		typ := p.parseType()
		p.expect(SEMICOLON)

		a := allocation{base: p.syms.NextAddress()}
		for _, name := range names {
			p.declare(name, SymVariable, typ)
		}
		a.n = p.syms.NextAddress() - a.base
		p.alloc(a)
		allocs = append(allocs, a)
	}
	return allocs
}

func (p *Parser) parseType() ValueType {
	switch p.tok.Type {
	case INTEIRO:
		p.advance()
		return TypeInteger
	case BOOLEANO:
		p.advance()
		return TypeBoolean
	}
	p.syntaxError(p.tok.Line, "expected type 'inteiro' or 'booleano', found %s", found(p.tok))
	return TypeNone
}

func (p *Parser) parseSubroutine() {
	kind := SymProcedure
	if p.tok.Type == FUNCAO {
		kind = SymFunction
	}
	p.advance()

	name := p.tok
	named := p.expect(IDENTIFIER)
	typ := TypeNone
	if kind == SymFunction {
		p.expect(COLON)
		typ = p.parseType()
	}
	p.expect(SEMICOLON)

	// The entry label exists before the body so the body can call itself.
	label := p.em.NewLabel()
	var sym *Symbol
	if named {
		if sym = p.declare(name, kind, typ); sym != nil {
			sym.Label = label
		}
	}
	p.em.Place(label)

	p.syms.EnterScope()
	p.active = append(p.active, sym)
	p.parseBlock(false)
	p.active = p.active[:len(p.active)-1]
	p.dumpScope(kind.String() + " " + name.Lexeme)
	p.syms.ExitScope()

	p.em.Emit(vm.OpRETURN)
	p.expect(SEMICOLON)
}

func (p *Parser) parseCompound() {
	p.expect(INICIO)
	for p.tok.Type != FIM && p.tok.Type != EOF {
		before := p.consumed
		p.parseStatement()
		switch p.tok.Type {
		case SEMICOLON:
			p.advance()
		case FIM, EOF:
		default:
			p.syntaxError(p.tok.Line, "expected ';' or 'fim', found %s", found(p.tok))
		}
		if p.consumed == before {
			p.advance()
		}
	}
	p.expect(FIM)
}

func (p *Parser) parseStatement() {
	switch p.tok.Type {
	case IDENTIFIER:
		p.parseAssignOrCall()
	case SE:
		p.parseIf()
	case ENQUANTO:
		p.parseWhile()
	case LEIA:
		p.parseRead()
	case ESCREVA:
		p.parseWrite()
	case INICIO:
		p.parseCompound()
	case SEMICOLON, FIM:
		// empty statement
	default:
		p.syntaxError(p.tok.Line, "unexpected %s at start of statement", found(p.tok))
		p.advance()
	}
}

func (p *Parser) inBody(sym *Symbol) bool {
	for _, s := range p.active {
		if s == sym {
			return true
		}
	}
	return false
}

func (p *Parser) parseAssignOrCall() {
	name := p.tok
	p.advance()
	sym := p.resolve(name)

	if p.tok.Type == ASSIGN {
		p.advance()
		typ, ok := p.parseExpression()
		if sym == nil || !ok {
			return
		}
		switch {
		case sym.Kind == SymVariable:
		case sym.Kind == SymFunction && p.inBody(sym):
		case sym.Kind == SymFunction:
			p.semanticError(name.Line, fmt.Errorf("%w: result of funcao '%s' can only be set inside its body", ErrTypeMismatch, sym.Name))
			return
		default:
			p.semanticError(name.Line, fmt.Errorf("%w: cannot assign to %s '%s'", ErrTypeMismatch, sym.Kind, sym.Name))
			return
		}
		if typ != sym.Type {
			p.semanticError(name.Line, fmt.Errorf("%w: cannot assign %s to %s '%s'", ErrTypeMismatch, typ, sym.Type, sym.Name))
			return
		}
		p.em.Emit(vm.OpSTR, asm.Num(sym.Address))
		return
	}

	if sym == nil {
		return
	}
	if sym.Kind != SymProcedure {
		p.semanticError(name.Line, fmt.Errorf("%w: %s '%s' is not a procedure", ErrTypeMismatch, sym.Kind, sym.Name))
		return
	}
	p.em.Emit(vm.OpCALL, asm.Ref(sym.Label))
}

// parseCondition compiles an expression that must be boolean.
func (p *Parser) parseCondition(construct string) {
	line := p.tok.Line
	typ, ok := p.parseExpression()
	if ok && typ != TypeBoolean {
		p.semanticError(line, fmt.Errorf("%w: %s condition must be booleano, got %s", ErrTypeMismatch, construct, typ))
	}
}

func (p *Parser) parseIf() {
	p.advance() // se
	p.parseCondition("se")
	falseLabel := p.em.NewLabel()
	p.em.Emit(vm.OpJMPF, asm.Ref(falseLabel))
	p.expect(ENTAO)
	p.parseStatement()

	if p.tok.Type != SENAO {
		p.em.Place(falseLabel)
		return
	}
	p.advance() // senao
	endLabel := p.em.NewLabel()
	p.em.Emit(vm.OpJMP, asm.Ref(endLabel))
	p.em.Place(falseLabel)
	p.parseStatement()
	p.em.Place(endLabel)
}

func (p *Parser) parseWhile() {
	p.advance() // enquanto
	startLabel := p.em.NewLabel()
	p.em.Place(startLabel)
	p.parseCondition("enquanto")
	endLabel := p.em.NewLabel()
	p.em.Emit(vm.OpJMPF, asm.Ref(endLabel))
	p.expect(FACA)
	p.parseStatement()
	p.em.Emit(vm.OpJMP, asm.Ref(startLabel))
	p.em.Place(endLabel)
}

func (p *Parser) parseRead() {
	p.advance() // leia
	p.expect(LPAREN)
	name := p.tok
	if p.expect(IDENTIFIER) {
		if sym := p.resolve(name); sym != nil {
			if sym.Kind != SymVariable {
				p.semanticError(name.Line, fmt.Errorf("%w: leia needs a variable, '%s' is a %s", ErrTypeMismatch, sym.Name, sym.Kind))
			} else {
				p.em.Emit(vm.OpRD)
				if sym.Type == TypeBoolean {
					// Any nonzero input reads as verdadeiro.
					p.em.Emit(vm.OpLDC, asm.Num(0))
					p.em.Emit(vm.OpCDIF)
				}
				p.em.Emit(vm.OpSTR, asm.Num(sym.Address))
			}
		}
	}
	p.expect(RPAREN)
}

func (p *Parser) parseWrite() {
	p.advance() // escreva
	p.expect(LPAREN)
	if _, ok := p.parseExpression(); ok {
		p.em.Emit(vm.OpPRN)
	}
	p.expect(RPAREN)
}

// parseExpression collects the infix form of an expression while checking
// its syntax, then type-checks and emits it.
func (p *Parser) parseExpression() (ValueType, bool) {
	line := p.tok.Line
	var infix []Item
	if !p.collectExpression(&infix) {
		return TypeNone, false
	}
	postfix, typ, err := Check(infix)
	if err == nil {
		err = Emit(postfix, p.em)
	}
	if err != nil {
		p.semanticError(line, err)
		return TypeNone, false
	}
	return typ, true
}

func (p *Parser) push(infix *[]Item, sym *Symbol) {
	*infix = append(*infix, Item{Tok: p.tok, Sym: sym})
	p.advance()
}

func (p *Parser) collectExpression(infix *[]Item) bool {
	if !p.collectSimple(infix) {
		return false
	}
	for p.tok.Type.IsRelational() {
		p.push(infix, nil)
		if !p.collectSimple(infix) {
			return false
		}
	}
	return true
}

func (p *Parser) collectSimple(infix *[]Item) bool {
	if p.tok.Type == PLUS || p.tok.Type == MINUS {
		p.push(infix, nil)
	}
	if !p.collectTerm(infix) {
		return false
	}
	for p.tok.Type == PLUS || p.tok.Type == MINUS || p.tok.Type == OU {
		p.push(infix, nil)
		if !p.collectTerm(infix) {
			return false
		}
	}
	return true
}

func (p *Parser) collectTerm(infix *[]Item) bool {
	if !p.collectFactor(infix) {
		return false
	}
	for p.tok.Type == STAR || p.tok.Type == DIV || p.tok.Type == E {
		p.push(infix, nil)
		if !p.collectFactor(infix) {
			return false
		}
	}
	return true
}

func (p *Parser) collectFactor(infix *[]Item) bool {
	switch p.tok.Type {
	case IDENTIFIER:
		sym := p.resolve(p.tok)
		if sym == nil {
			return false
		}
		p.push(infix, sym)
		return true
	case NUMBER, VERDADEIRO, FALSO:
		p.push(infix, nil)
		return true
	case LPAREN:
		p.push(infix, nil)
		if !p.collectExpression(infix) {
			return false
		}
		if p.tok.Type != RPAREN {
			p.expect(RPAREN)
			return false
		}
		p.push(infix, nil)
		return true
	case NAO, PLUS, MINUS:
		p.push(infix, nil)
		return p.collectFactor(infix)
	}
	p.syntaxError(p.tok.Line, "expected expression, found %s", found(p.tok))
	return false
}

// Result is the outcome of a compilation. Code and Text are only usable
// when Diagnostics is empty.
type Result struct {
	Code        []asm.Instruction
	Text        string
	Diagnostics []*Diagnostic
	// Suppressed counts diagnostics dropped after the first one.
	Suppressed int
	// Scopes holds a dump of every scope as it closed, program scope last.
	Scopes []string
}

func (r *Result) Failed() bool {
	return len(r.Diagnostics) > 0
}

// Err returns nil for a successful compilation, otherwise an error wrapping
// ErrCompilationFailed and the first diagnostic.
func (r *Result) Err() error {
	if !r.Failed() {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCompilationFailed, r.Diagnostics[0])
}

func (p *Parser) Result() *Result {
	r := &Result{
		Diagnostics: p.diags,
		Suppressed:  p.suppressed,
		Scopes:      p.scopes,
	}
	if !r.Failed() {
		r.Code = p.em.Code()
		r.Text = p.em.String()
	}
	return r
}

// FirstDiagnostic unwraps err to the diagnostic that failed a compilation.
func FirstDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	ok := errors.As(err, &d)
	return d, ok
}
