package vm

import (
	"fmt"
	"strings"
)

// Op identifies a VM instruction.
type Op uint8

const (
	OpSTART  Op = iota // reset the stack pointer
	OpHLT              // stop execution
	OpNULL             // no-op, label anchor
	OpLDC              // push constant
	OpLDV              // push M[a]
	OpSTR              // M[a] = pop
	OpALLOC            // back up M[m..m+n-1] onto the stack
	OpDALLOC           // restore M[m..m+n-1] from the stack
	OpADD
	OpSUB
	OpMULT
	OpDIVI
	OpAND
	OpOR
	OpINV  // arithmetic negation of the top
	OpNEG  // logical not of the top (1-x)
	OpCME  // <
	OpCMA  // >
	OpCEQ  // =
	OpCDIF // !=
	OpCMEQ // <=
	OpCMAQ // >=
	OpJMP
	OpJMPF
	OpCALL
	OpRETURN
	OpRD
	OpPRN

	numOps
)

type opInfo struct {
	name  string
	arity int
	jump  bool // operand 1 is an instruction index (label)
}

var ops = [numOps]opInfo{
	OpSTART:  {"START", 0, false},
	OpHLT:    {"HLT", 0, false},
	OpNULL:   {"NULL", 0, false},
	OpLDC:    {"LDC", 1, false},
	OpLDV:    {"LDV", 1, false},
	OpSTR:    {"STR", 1, false},
	OpALLOC:  {"ALLOC", 2, false},
	OpDALLOC: {"DALLOC", 2, false},
	OpADD:    {"ADD", 0, false},
	OpSUB:    {"SUB", 0, false},
	OpMULT:   {"MULT", 0, false},
	OpDIVI:   {"DIVI", 0, false},
	OpAND:    {"AND", 0, false},
	OpOR:     {"OR", 0, false},
	OpINV:    {"INV", 0, false},
	OpNEG:    {"NEG", 0, false},
	OpCME:    {"CME", 0, false},
	OpCMA:    {"CMA", 0, false},
	OpCEQ:    {"CEQ", 0, false},
	OpCDIF:   {"CDIF", 0, false},
	OpCMEQ:   {"CMEQ", 0, false},
	OpCMAQ:   {"CMAQ", 0, false},
	OpJMP:    {"JMP", 1, true},
	OpJMPF:   {"JMPF", 1, true},
	OpCALL:   {"CALL", 1, true},
	OpRETURN: {"RETURN", 0, false},
	OpRD:     {"RD", 0, false},
	OpPRN:    {"PRN", 0, false},
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, numOps)
	for i, info := range ops {
		m[info.name] = Op(i)
	}
	return m
}()

func (o Op) String() string {
	if o < numOps {
		return ops[o].name
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Arity is the number of operands the instruction takes.
func (o Op) Arity() int {
	if o < numOps {
		return ops[o].arity
	}
	return 0
}

// IsJump reports whether the first operand is a code position.
func (o Op) IsJump() bool {
	return o < numOps && ops[o].jump
}

// Valid reports whether o is a known instruction.
func (o Op) Valid() bool {
	return o < numOps
}

// LookupOp maps a mnemonic (any case) to its Op.
func LookupOp(mnemonic string) (Op, bool) {
	op, ok := opsByName[strings.ToUpper(mnemonic)]
	return op, ok
}

// Instruction is a resolved instruction: label operands have already been
// replaced by instruction indices.
type Instruction struct {
	Op Op  `cbor:"1,keyasint"`
	A  int `cbor:"2,keyasint,omitempty"`
	B  int `cbor:"3,keyasint,omitempty"`
}

func (in Instruction) String() string {
	switch in.Op.Arity() {
	case 1:
		return fmt.Sprintf("%s %d", in.Op, in.A)
	case 2:
		return fmt.Sprintf("%s %d %d", in.Op, in.A, in.B)
	}
	return in.Op.String()
}

// Program is a loaded, resolved instruction stream.
type Program struct {
	Code []Instruction `cbor:"1,keyasint"`
	// Labels lists the label names that pointed at each instruction index.
	Labels map[int][]string `cbor:"2,keyasint,omitempty"`
}

// MaxStaticCells bounds the static data a program may address.
const MaxStaticCells = 1 << 20

// WithinStaticLimit reports whether the address operands of in stay below
// MaxStaticCells. Negative operands pass; they fail when executed.
func (in Instruction) WithinStaticLimit() bool {
	_, ok := in.staticTop()
	return ok
}

// staticTop returns one past the highest static cell in touches.
func (in Instruction) staticTop() (int, bool) {
	switch in.Op {
	case OpLDV, OpSTR:
		if in.A >= MaxStaticCells {
			return 0, false
		}
		return in.A + 1, true
	case OpALLOC, OpDALLOC:
		if in.A < 0 || in.B < 0 {
			return 0, true
		}
		if in.A > MaxStaticCells || in.B > MaxStaticCells-in.A {
			return 0, false
		}
		return in.A + in.B, true
	}
	return 0, true
}

// StaticExtent returns one past the highest static address referenced by
// any LDV, STR, ALLOC or DALLOC operand. The data stack starts there.
// Operands beyond MaxStaticCells are not counted, so executing them fails
// with ErrInvalidAddress.
func (p *Program) StaticExtent() int {
	extent := 0
	for _, in := range p.Code {
		if top, ok := in.staticTop(); ok && top > extent {
			extent = top
		}
	}
	return extent
}

// LabelAt returns the comma-joined labels attached to instruction i.
func (p *Program) LabelAt(i int) string {
	return strings.Join(p.Labels[i], ",")
}
