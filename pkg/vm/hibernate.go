package vm

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const snapshotVersion = 2

var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// snapshot is the CBOR form of a hibernated machine.
type snapshot struct {
	Version       int      `cbor:"1,keyasint"`
	ID            string   `cbor:"2,keyasint"`
	Program       *Program `cbor:"3,keyasint"`
	Memory        []int    `cbor:"4,keyasint"`
	Data          int      `cbor:"5,keyasint"`
	S             int      `cbor:"6,keyasint"`
	PC            int      `cbor:"7,keyasint"`
	Halted        bool     `cbor:"8,keyasint"`
	AwaitingInput bool     `cbor:"9,keyasint"`
	ResumePC      int      `cbor:"10,keyasint"`
	Steps         uint64   `cbor:"11,keyasint"`
	Fault         *fault   `cbor:"12,keyasint,omitempty"`
}

// fault is the stored form of a RuntimeError. Kind indexes faultKinds,
// 0 meaning the cause matched none of them.
type fault struct {
	PC     int         `cbor:"1,keyasint"`
	Instr  Instruction `cbor:"2,keyasint"`
	Top    []int       `cbor:"3,keyasint,omitempty"`
	Kind   int         `cbor:"4,keyasint"`
	Detail string      `cbor:"5,keyasint"`
}

var faultKinds = []error{
	nil,
	ErrDivisionByZero,
	ErrInvalidAddress,
	ErrStackUnderflow,
	ErrUnknownOpcode,
	ErrBadJump,
	ErrNoProgram,
}

// restoredCause keeps the original message of a restored fault while still
// matching its sentinel with errors.Is.
type restoredCause struct {
	msg  string
	kind error
}

func (e *restoredCause) Error() string { return e.msg }

func (e *restoredCause) Unwrap() error { return e.kind }

func encodeFault(err error) *fault {
	f := &fault{Detail: err.Error()}
	var rt *RuntimeError
	if errors.As(err, &rt) {
		f.PC, f.Instr, f.Top = rt.PC, rt.Instr, rt.Top
		f.Detail = rt.Err.Error()
	}
	for k, kind := range faultKinds[1:] {
		if errors.Is(err, kind) {
			f.Kind = k + 1
			break
		}
	}
	return f
}

func (f *fault) decode() error {
	cause := &restoredCause{msg: f.Detail}
	if f.Kind > 0 && f.Kind < len(faultKinds) {
		cause.kind = faultKinds[f.Kind]
	}
	return &RuntimeError{PC: f.PC, Instr: f.Instr, Top: f.Top, Err: cause}
}

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// HibernateToBytes serialises the complete machine state, program included.
// Only the used part of memory (static cells plus live stack) is stored.
func (v *VM) HibernateToBytes() ([]byte, error) {
	used := v.data + v.S + 1
	s := snapshot{
		Version:       snapshotVersion,
		ID:            uuid.NewString(),
		Program:       v.Program,
		Memory:        append([]int(nil), v.Memory[:used]...),
		Data:          v.data,
		S:             v.S,
		PC:            v.PC,
		Halted:        v.Halted,
		AwaitingInput: v.AwaitingInput,
		ResumePC:      v.resumePC,
		Steps:         v.Steps,
	}
	if v.fault != nil {
		s.Fault = encodeFault(v.fault)
	}
	data, err := snapshotEncMode.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	v.log.Debugf("hibernated snapshot %s (%d bytes)", s.ID, len(data))
	return data, nil
}

// RestoreFromBytes replaces the machine state with a snapshot produced by
// HibernateToBytes.
func (v *VM) RestoreFromBytes(data []byte) error {
	var s snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	if s.Data < 0 || s.S < -1 || s.Data > len(s.Memory) || s.S >= len(s.Memory)-s.Data {
		return fmt.Errorf("corrupt snapshot %s: data=%d s=%d memory=%d", s.ID, s.Data, s.S, len(s.Memory))
	}

	v.Program = s.Program
	size := v.memorySize
	if size < len(s.Memory) {
		size = len(s.Memory)
	}
	v.Memory = make([]int, size)
	copy(v.Memory, s.Memory)
	v.data = s.Data
	v.S = s.S
	v.PC = s.PC
	v.Halted = s.Halted
	v.AwaitingInput = s.AwaitingInput
	v.resumePC = s.ResumePC
	v.Steps = s.Steps
	v.fault = nil
	if s.Fault != nil {
		v.fault = s.Fault.decode()
	}
	v.log.Debugf("restored snapshot %s", s.ID)
	return nil
}

func (v *VM) HibernateToFile(path string) error {
	data, err := v.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (v *VM) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return v.RestoreFromBytes(data)
}
