package asm

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"gomvd/pkg/vm"
)

const loopText = `START
    ALLOC 0 1
    LDC 3
    STR 0
L1  NULL
    LDV 0
    JMPF L2
    LDV 0
    PRN
    LDV 0
    LDC 1
    SUB
    STR 0
    JMP L1
L2  NULL
    DALLOC 0 1
HLT
`

func TestImageRoundTrip(t *testing.T) {
	prog, err := Assemble(loopText)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	data, err := EncodeImage(prog)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}
	decoded, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if !reflect.DeepEqual(prog, decoded) {
		t.Errorf("program changed in round trip")
	}
}

func TestDecodeImageErrors(t *testing.T) {
	if _, err := DecodeImage([]byte{0xff}); err == nil {
		t.Errorf("expected error for garbage")
	}

	old, _ := cbor.Marshal(image{Magic: imageMagic, Version: 0, Program: &vm.Program{}})
	if _, err := DecodeImage(old); !errors.Is(err, ErrImageVersion) {
		t.Errorf("expected ErrImageVersion, got %v", err)
	}

	wrong, _ := cbor.Marshal(image{Magic: "ELF", Version: imageVersion, Program: &vm.Program{}})
	if _, err := DecodeImage(wrong); err == nil || !strings.Contains(err.Error(), "bad magic") {
		t.Errorf("expected bad magic error, got %v", err)
	}

	bad := &vm.Program{Code: []vm.Instruction{{Op: vm.OpJMP, A: 40}}}
	raw, _ := cbor.Marshal(image{Magic: imageMagic, Version: imageVersion, Program: bad})
	if _, err := DecodeImage(raw); err == nil {
		t.Errorf("expected jump range error")
	}

	huge := &vm.Program{Code: []vm.Instruction{{Op: vm.OpLDV, A: 2_000_000_000}}}
	raw, _ = cbor.Marshal(image{Magic: imageMagic, Version: imageVersion, Program: huge})
	if _, err := DecodeImage(raw); err == nil || !strings.Contains(err.Error(), "static cells") {
		t.Errorf("expected static limit error, got %v", err)
	}
}

func TestDisassemble(t *testing.T) {
	prog, err := Assemble(loopText)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if got := Disassemble(prog); got != loopText {
		t.Errorf("expected\n%s\ngot\n%s", loopText, got)
	}
}
