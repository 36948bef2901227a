package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gomvd/pkg/vm"
)

type Assembler struct {
	code      []Instruction
	aliases   map[int][]string // extra labels sharing an instruction
	sourceMap map[int]int
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		aliases:   make(map[int][]string),
		sourceMap: make(map[int]int),
	}
}

// Assemble loads program text into a resolved program.
func Assemble(code string) (*vm.Program, error) {
	return NewAssembler().Assemble(code)
}

// Boot assembles code and loads it into a new VM.
func Boot(code string, opts ...vm.Option) (*vm.VM, error) {
	prog, err := Assemble(code)
	if err != nil {
		return nil, err
	}
	m := vm.New(opts...)
	m.Load(prog)
	return m, nil
}

func (a *Assembler) Assemble(code string) (*vm.Program, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, err
	}

	return a.pass2()
}

// Code returns the symbolic instructions read by the last Assemble.
func (a *Assembler) Code() []Instruction {
	return a.code
}

// SourceMap maps instruction indices to source lines.
func (a *Assembler) SourceMap() map[int]int {
	return a.sourceMap
}

// pass1 reads every line into a symbolic instruction. Labels on lines with
// no instruction attach to the next instruction.
func (a *Assembler) pass1(lines []string) error {
	a.code = nil
	a.aliases = make(map[int][]string)
	a.sourceMap = make(map[int]int)
	var pending []string

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		pending = append(pending, p.labels...)
		if p.mnemonic == "" {
			continue
		}

		op, ok := vm.LookupOp(p.mnemonic)
		if !ok {
			return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
		}
		if len(p.operands) != op.Arity() {
			return fmt.Errorf("%s expects %d operand(s) on line %d", op, op.Arity(), lineNo)
		}

		in := Instruction{Op: op, Line: lineNo}
		for _, tok := range p.operands {
			arg, err := parseOperand(op, tok, lineNo)
			if err != nil {
				return err
			}
			in.Args = append(in.Args, arg)
		}

		if len(pending) > 0 {
			in.Label = pending[0]
			if len(pending) > 1 {
				a.aliases[len(a.code)] = pending[1:]
			}
			pending = nil
		}
		a.sourceMap[len(a.code)] = lineNo
		a.code = append(a.code, in)
	}

	if len(pending) > 0 {
		return fmt.Errorf("label '%s' does not precede an instruction", pending[0])
	}
	return nil
}

func (a *Assembler) pass2() (*vm.Program, error) {
	return link(a.code, a.aliases)
}

func parseOperand(op vm.Op, tok string, lineNo int) (Operand, error) {
	if n, err := strconv.Atoi(tok); err == nil {
		return Num(n), nil
	}
	if op.IsJump() && isIdentifier(tok) {
		return Ref(tok), nil
	}
	return Operand{}, fmt.Errorf("invalid operand '%s' for %s on line %d", tok, op, lineNo)
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if beforeColon == "" {
			return p, fmt.Errorf("invalid label on line %d", lineNo)
		}

		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(line)

	// A bare label is any leading identifier that is not a mnemonic.
	if _, ok := vm.LookupOp(fields[0]); !ok && isIdentifier(fields[0]) {
		switch {
		case len(fields) == 1:
			p.labels = append(p.labels, fields[0])
			return p, nil
		case isMnemonic(fields[1]):
			p.labels = append(p.labels, fields[0])
			fields = fields[1:]
		}
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	return p, nil
}

func isMnemonic(s string) bool {
	_, ok := vm.LookupOp(s)
	return ok
}

func stripComments(line string) string {
	if semicolon := strings.Index(line, ";"); semicolon >= 0 {
		return line[:semicolon]
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
