// Package vm implements the MVD stack machine: a program of resolved
// instructions run over one integer memory holding static cells and the
// data stack.
package vm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
)

// Status is the outcome of a single Step.
type Status int

const (
	StatusRunning Status = iota
	StatusNeedInput
	StatusOutput
	StatusHalted
	StatusError
)

var statusNames = [...]string{
	StatusRunning:   "Running",
	StatusNeedInput: "NeedInput",
	StatusOutput:    "Output",
	StatusHalted:    "Halted",
	StatusError:     "Error",
}

func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Event is returned by Step. Value is set for StatusOutput, Err for StatusError.
type Event struct {
	Status Status
	Value  int
	Err    error
}

var (
	ErrDivisionByZero   = errors.New("division by zero")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrStackUnderflow   = errors.New("stack underflow")
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrBadJump          = errors.New("jump target out of range")
	ErrNotAwaitingInput = errors.New("vm is not awaiting input")
	ErrInvalidInput     = errors.New("input is not an integer")
	ErrNoProgram        = errors.New("no program loaded")
)

// RuntimeError is a fatal execution error at instruction PC.
type RuntimeError struct {
	PC    int
	Instr Instruction
	Top   []int // up to six cells from the top of the stack, oldest first
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at instruction %d (%s): %v; stack top %v", e.PC, e.Instr, e.Err, e.Top)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

const defaultMemorySize = 1024

// VM is the stack machine. Memory holds the static variables in
// Memory[0:data] and the data stack above them; S indexes the stack
// relative to data, with -1 meaning empty.
type VM struct {
	Program *Program

	Memory []int
	data   int
	S      int
	PC     int

	Halted        bool
	AwaitingInput bool
	resumePC      int

	Steps uint64
	fault error

	memorySize int
	trace      bool
	log        commonlog.Logger
}

// Option configures a VM.
type Option func(*VM)

// WithMemorySize sets the initial number of memory cells.
func WithMemorySize(n int) Option {
	return func(v *VM) {
		if n > 0 {
			v.memorySize = n
		}
	}
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(on bool) Option {
	return func(v *VM) { v.trace = on }
}

// WithLogger replaces the default "gomvd.vm" logger.
func WithLogger(l commonlog.Logger) Option {
	return func(v *VM) { v.log = l }
}

func New(opts ...Option) *VM {
	v := &VM{
		memorySize: defaultMemorySize,
		log:        commonlog.GetLogger("gomvd.vm"),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.Reset()
	return v
}

// Load installs p and resets the machine.
func (v *VM) Load(p *Program) {
	v.Program = p
	v.Reset()
}

// Reset clears memory, registers and flags. The program is kept.
func (v *VM) Reset() {
	v.data = 0
	if v.Program != nil {
		v.data = v.Program.StaticExtent()
	}
	size := v.memorySize
	if size < v.data {
		size = v.data
	}
	v.Memory = make([]int, size)
	v.S = -1
	v.PC = 0
	v.Halted = false
	v.AwaitingInput = false
	v.resumePC = 0
	v.Steps = 0
	v.fault = nil
}

// DataSize is the number of static cells below the stack.
func (v *VM) DataSize() int { return v.data }

// Stack returns a copy of the data stack, bottom first.
func (v *VM) Stack() []int {
	out := make([]int, v.S+1)
	copy(out, v.Memory[v.data:v.data+v.S+1])
	return out
}

// Err returns the fatal error that stopped the machine, if any.
func (v *VM) Err() error { return v.fault }

func (v *VM) ensure(idx int) {
	if idx < len(v.Memory) {
		return
	}
	extra := idx - len(v.Memory) + 1024
	v.Memory = append(v.Memory, make([]int, extra)...)
}

func (v *VM) push(val int) {
	v.S++
	idx := v.data + v.S
	v.ensure(idx)
	v.Memory[idx] = val
}

func (v *VM) pop() (int, error) {
	if v.S < 0 {
		return 0, ErrStackUnderflow
	}
	val := v.Memory[v.data+v.S]
	v.S--
	return val, nil
}

func (v *VM) pop2() (int, int, error) {
	if v.S < 1 {
		return 0, 0, ErrStackUnderflow
	}
	b, _ := v.pop()
	a, _ := v.pop()
	return a, b, nil
}

func (v *VM) load(addr int) (int, error) {
	if addr < 0 || addr >= v.data {
		return 0, fmt.Errorf("%w: M[%d]", ErrInvalidAddress, addr)
	}
	return v.Memory[addr], nil
}

func (v *VM) store(addr, val int) error {
	if addr < 0 || addr >= v.data {
		return fmt.Errorf("%w: M[%d]", ErrInvalidAddress, addr)
	}
	v.Memory[addr] = val
	return nil
}

func (v *VM) stackTop() []int {
	lo := v.S - 5
	if lo < 0 {
		lo = 0
	}
	out := []int{}
	for i := lo; i <= v.S; i++ {
		out = append(out, v.Memory[v.data+i])
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Step executes one instruction. While the machine awaits input, has halted
// or has faulted, Step reports that state without changing anything.
func (v *VM) Step() Event {
	if v.fault != nil {
		return Event{Status: StatusError, Err: v.fault}
	}
	if v.Halted {
		return Event{Status: StatusHalted}
	}
	if v.AwaitingInput {
		return Event{Status: StatusNeedInput}
	}
	if v.Program == nil {
		return v.fail(Instruction{}, ErrNoProgram)
	}
	if v.PC == len(v.Program.Code) {
		v.Halted = true
		return Event{Status: StatusHalted}
	}
	if v.PC < 0 || v.PC > len(v.Program.Code) {
		return v.fail(Instruction{}, fmt.Errorf("%w: %d", ErrBadJump, v.PC))
	}

	in := v.Program.Code[v.PC]
	if v.trace {
		v.log.Debugf("%04d %-14s s=%d top=%v", v.PC, in, v.S, v.stackTop())
	}
	next := v.PC + 1
	ev := Event{Status: StatusRunning}
	v.Steps++

	var err error
	switch in.Op {
	case OpSTART:
		v.S = -1

	case OpHLT:
		v.Halted = true
		ev.Status = StatusHalted

	case OpNULL:

	case OpLDC:
		v.push(in.A)

	case OpLDV:
		var val int
		if val, err = v.load(in.A); err == nil {
			v.push(val)
		}

	case OpSTR:
		var val int
		if val, err = v.pop(); err == nil {
			err = v.store(in.A, val)
		}

	case OpALLOC:
		err = v.alloc(in.A, in.B)

	case OpDALLOC:
		err = v.dalloc(in.A, in.B)

	case OpADD, OpSUB, OpMULT, OpDIVI, OpAND, OpOR,
		OpCME, OpCMA, OpCEQ, OpCDIF, OpCMEQ, OpCMAQ:
		var a, b int
		if a, b, err = v.pop2(); err == nil {
			var r int
			if r, err = binary(in.Op, a, b); err == nil {
				v.push(r)
			}
		}

	case OpINV:
		if v.S < 0 {
			err = ErrStackUnderflow
		} else {
			v.Memory[v.data+v.S] = -v.Memory[v.data+v.S]
		}

	case OpNEG:
		if v.S < 0 {
			err = ErrStackUnderflow
		} else {
			v.Memory[v.data+v.S] = 1 - v.Memory[v.data+v.S]
		}

	case OpJMP:
		next = in.A

	case OpJMPF:
		var cond int
		if cond, err = v.pop(); err == nil && cond == 0 {
			next = in.A
		}

	case OpCALL:
		v.push(next)
		next = in.A

	case OpRETURN:
		next, err = v.pop()

	case OpRD:
		v.AwaitingInput = true
		v.resumePC = next
		return Event{Status: StatusNeedInput}

	case OpPRN:
		var val int
		if val, err = v.pop(); err == nil {
			ev = Event{Status: StatusOutput, Value: val}
		}

	default:
		err = fmt.Errorf("%w: %d", ErrUnknownOpcode, uint8(in.Op))
	}

	if err != nil {
		return v.fail(in, err)
	}
	if next < 0 || next > len(v.Program.Code) {
		return v.fail(in, fmt.Errorf("%w: %d", ErrBadJump, next))
	}
	v.PC = next
	return ev
}

func binary(op Op, a, b int) (int, error) {
	switch op {
	case OpADD:
		return a + b, nil
	case OpSUB:
		return a - b, nil
	case OpMULT:
		return a * b, nil
	case OpDIVI:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil // Go truncates toward zero
	case OpAND:
		return boolInt(a == 1 && b == 1), nil
	case OpOR:
		return boolInt(a == 1 || b == 1), nil
	case OpCME:
		return boolInt(a < b), nil
	case OpCMA:
		return boolInt(a > b), nil
	case OpCEQ:
		return boolInt(a == b), nil
	case OpCDIF:
		return boolInt(a != b), nil
	case OpCMEQ:
		return boolInt(a <= b), nil
	case OpCMAQ:
		return boolInt(a >= b), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownOpcode, op)
}

// alloc pushes M[m..m+n-1] in ascending order without clearing them.
func (v *VM) alloc(m, n int) error {
	if m < 0 || n < 0 || m > v.data || n > v.data-m {
		return fmt.Errorf("%w: ALLOC %d %d", ErrInvalidAddress, m, n)
	}
	for k := 0; k < n; k++ {
		v.push(v.Memory[m+k])
	}
	return nil
}

// dalloc pops n values in descending address order back into M[m..m+n-1].
func (v *VM) dalloc(m, n int) error {
	if m < 0 || n < 0 || m > v.data || n > v.data-m {
		return fmt.Errorf("%w: DALLOC %d %d", ErrInvalidAddress, m, n)
	}
	if v.S+1 < n {
		return ErrStackUnderflow
	}
	for k := n - 1; k >= 0; k-- {
		v.Memory[m+k], _ = v.pop()
	}
	return nil
}

func (v *VM) fail(in Instruction, err error) Event {
	v.fault = &RuntimeError{PC: v.PC, Instr: in, Top: v.stackTop(), Err: err}
	v.log.Errorf("%v", v.fault)
	return Event{Status: StatusError, Err: v.fault}
}

// ProvideInput delivers a value requested by RD. It is only valid while the
// machine awaits input; a non-integer text leaves the machine waiting.
func (v *VM) ProvideInput(text string) error {
	if !v.AwaitingInput {
		return ErrNotAwaitingInput
	}
	val, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidInput, text)
	}
	v.push(val)
	v.AwaitingInput = false
	v.PC = v.resumePC
	return nil
}

// Run steps until something other than StatusRunning happens or budget
// steps have executed. A budget <= 0 means no limit.
func (v *VM) Run(budget int) Event {
	for n := 0; budget <= 0 || n < budget; n++ {
		ev := v.Step()
		if ev.Status != StatusRunning {
			return ev
		}
	}
	return Event{Status: StatusRunning}
}
