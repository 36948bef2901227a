package asm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"gomvd/pkg/vm"
)

const imageVersion = 1

var ErrImageVersion = errors.New("unsupported program image version")

// image is the on-disk form of a resolved program (.mvdi).
type image struct {
	Magic   string      `cbor:"1,keyasint"`
	Version int         `cbor:"2,keyasint"`
	Program *vm.Program `cbor:"3,keyasint"`
}

const imageMagic = "MVD"

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("asm: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// EncodeImage serialises a resolved program, label names included.
func EncodeImage(p *vm.Program) ([]byte, error) {
	if p == nil {
		return nil, vm.ErrNoProgram
	}
	return imageEncMode.Marshal(image{Magic: imageMagic, Version: imageVersion, Program: p})
}

// DecodeImage reads a program written by EncodeImage and validates it.
func DecodeImage(data []byte) (*vm.Program, error) {
	var img image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("decode program image: %w", err)
	}
	if img.Magic != imageMagic {
		return nil, fmt.Errorf("decode program image: bad magic %q", img.Magic)
	}
	if img.Version != imageVersion {
		return nil, fmt.Errorf("%w: %d", ErrImageVersion, img.Version)
	}
	if img.Program == nil {
		return nil, vm.ErrNoProgram
	}
	for i, in := range img.Program.Code {
		if !in.Op.Valid() {
			return nil, fmt.Errorf("decode program image: unknown opcode %d at %d", uint8(in.Op), i)
		}
		if in.Op.IsJump() && (in.A < 0 || in.A > len(img.Program.Code)) {
			return nil, fmt.Errorf("decode program image: jump target %d out of range at %d", in.A, i)
		}
		if !in.WithinStaticLimit() {
			return nil, fmt.Errorf("decode program image: %s addresses beyond %d static cells at %d", in, vm.MaxStaticCells, i)
		}
	}
	return img.Program, nil
}

// Disassemble renders a resolved program back to text. Jump operands use
// the first label recorded for their target when one exists.
func Disassemble(p *vm.Program) string {
	code := make([]Instruction, len(p.Code))
	for i, in := range p.Code {
		sym := Instruction{Op: in.Op}
		if names := p.Labels[i]; len(names) > 0 {
			sym.Label = names[0]
		}
		switch in.Op.Arity() {
		case 1:
			sym.Args = []Operand{Num(in.A)}
			if names := p.Labels[in.A]; in.Op.IsJump() && len(names) > 0 {
				sym.Args[0] = Ref(names[0])
			}
		case 2:
			sym.Args = []Operand{Num(in.A), Num(in.B)}
		}
		code[i] = sym
	}
	return Format(code)
}
