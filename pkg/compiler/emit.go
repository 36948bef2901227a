package compiler

import (
	"fmt"

	"gomvd/pkg/asm"
	"gomvd/pkg/vm"
)

// Emitter accumulates the instruction stream. Instructions are append-only.
// Once muted, further output is discarded.
type Emitter struct {
	code   []asm.Instruction
	labels int
	muted  bool
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// NewLabel returns a fresh label name. Labels are numbered from 1.
func (e *Emitter) NewLabel() string {
	e.labels++
	return fmt.Sprintf("L%d", e.labels)
}

func (e *Emitter) Emit(op vm.Op, args ...asm.Operand) {
	if e.muted {
		return
	}
	e.code = append(e.code, asm.Instruction{Op: op, Args: args})
}

// Place anchors label at the next instruction position with a NULL.
func (e *Emitter) Place(label string) {
	if e.muted {
		return
	}
	e.code = append(e.code, asm.Instruction{Label: label, Op: vm.OpNULL})
}

func (e *Emitter) Mute() { e.muted = true }

func (e *Emitter) Muted() bool { return e.muted }

func (e *Emitter) Code() []asm.Instruction { return e.code }

// String renders the stream in the bytecode text encoding.
func (e *Emitter) String() string { return asm.Format(e.code) }
