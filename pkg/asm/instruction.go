package asm

import (
	"fmt"
	"strconv"
	"strings"

	"gomvd/pkg/vm"
)

// Operand is either a number or a reference to a label.
type Operand struct {
	Label string
	Value int
}

func Num(n int) Operand { return Operand{Value: n} }

func Ref(label string) Operand { return Operand{Label: label} }

func (o Operand) String() string {
	if o.Label != "" {
		return o.Label
	}
	return strconv.Itoa(o.Value)
}

// Instruction is a symbolic instruction as written in program text. Line is
// the source line it came from, or 0 when generated.
type Instruction struct {
	Label string
	Op    vm.Op
	Args  []Operand
	Line  int
}

func (in Instruction) String() string {
	var b strings.Builder
	switch {
	case in.Label != "":
		b.WriteString(in.Label)
		b.WriteString("  ")
	case in.Op != vm.OpSTART && in.Op != vm.OpHLT:
		b.WriteString("    ")
	}
	b.WriteString(in.Op.String())
	for _, a := range in.Args {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	return b.String()
}

// Format renders code in the bytecode text encoding, one instruction per line.
func Format(code []Instruction) string {
	var b strings.Builder
	for _, in := range code {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Link resolves label operands and produces a runnable program.
func Link(code []Instruction) (*vm.Program, error) {
	return link(code, nil)
}

func link(code []Instruction, aliases map[int][]string) (*vm.Program, error) {
	labels := make(map[string]int)
	prog := &vm.Program{Code: make([]vm.Instruction, 0, len(code))}

	for i, in := range code {
		if in.Label == "" {
			continue
		}
		for _, name := range append([]string{in.Label}, aliases[i]...) {
			key := normalizeLabel(name)
			if _, exists := labels[key]; exists {
				return nil, lineError(in.Line, "duplicate label '%s'", name)
			}
			labels[key] = i
			if prog.Labels == nil {
				prog.Labels = make(map[int][]string)
			}
			prog.Labels[i] = append(prog.Labels[i], name)
		}
	}

	for _, in := range code {
		if !in.Op.Valid() {
			return nil, lineError(in.Line, "unknown instruction %s", in.Op)
		}
		if len(in.Args) != in.Op.Arity() {
			return nil, lineError(in.Line, "%s expects %d operand(s)", in.Op, in.Op.Arity())
		}
		out := vm.Instruction{Op: in.Op}
		for k, a := range in.Args {
			val := a.Value
			if a.Label != "" {
				if !in.Op.IsJump() {
					return nil, lineError(in.Line, "%s expects a numeric operand, got '%s'", in.Op, a.Label)
				}
				addr, ok := labels[normalizeLabel(a.Label)]
				if !ok {
					return nil, lineError(in.Line, "undefined label '%s'", a.Label)
				}
				val = addr
			} else if in.Op.IsJump() && (val < 0 || val > len(code)) {
				return nil, lineError(in.Line, "jump target %d out of range", val)
			}
			if k == 0 {
				out.A = val
			} else {
				out.B = val
			}
		}
		if !out.WithinStaticLimit() {
			return nil, lineError(in.Line, "%s operand addresses beyond %d static cells", in.Op, vm.MaxStaticCells)
		}
		prog.Code = append(prog.Code, out)
	}
	return prog, nil
}

func lineError(line int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if line > 0 {
		return fmt.Errorf("%s on line %d", msg, line)
	}
	return fmt.Errorf("%s", msg)
}
