package vm

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func readProgram() *Program {
	return &Program{
		Code: []Instruction{
			ins(OpSTART),
			ins(OpLDC, 10), ins(OpSTR, 0),
			ins(OpRD), ins(OpLDV, 0), ins(OpADD), ins(OpPRN),
			ins(OpHLT),
		},
		Labels: map[int][]string{3: {"READ"}},
	}
}

func TestHibernateWhileAwaitingInput(t *testing.T) {
	v := New()
	v.Load(readProgram())
	if ev := v.Run(0); ev.Status != StatusNeedInput {
		t.Fatalf("expected NeedInput, got %v", ev.Status)
	}

	data, err := v.HibernateToBytes()
	if err != nil {
		t.Fatalf("HibernateToBytes: %v", err)
	}

	restored := New()
	if err := restored.RestoreFromBytes(data); err != nil {
		t.Fatalf("RestoreFromBytes: %v", err)
	}
	if !restored.AwaitingInput {
		t.Fatalf("restored machine should still await input")
	}
	if restored.PC != v.PC || restored.S != v.S || restored.DataSize() != v.DataSize() {
		t.Fatalf("registers differ: pc %d/%d s %d/%d", restored.PC, v.PC, restored.S, v.S)
	}
	if !reflect.DeepEqual(restored.Program, v.Program) {
		t.Fatalf("program differs after restore")
	}

	if err := restored.ProvideInput("5"); err != nil {
		t.Fatalf("ProvideInput: %v", err)
	}
	got := outputs(t, restored)
	if !reflect.DeepEqual(got, []int{15}) {
		t.Errorf("expected [15], got %v", got)
	}
}

func TestHibernateFile(t *testing.T) {
	v := New()
	v.Load(readProgram())
	v.Run(0)
	path := filepath.Join(t.TempDir(), "state.snap")
	if err := v.HibernateToFile(path); err != nil {
		t.Fatalf("HibernateToFile: %v", err)
	}
	restored := New()
	if err := restored.RestoreFromFile(path); err != nil {
		t.Fatalf("RestoreFromFile: %v", err)
	}
	if restored.Steps != v.Steps {
		t.Errorf("steps: expected %d, got %d", v.Steps, restored.Steps)
	}
}

func TestHibernateKeepsFault(t *testing.T) {
	tests := []struct {
		name string
		code []Instruction
		want error
	}{
		{"Underflow", []Instruction{ins(OpADD)}, ErrStackUnderflow},
		{"DivisionByZero", []Instruction{ins(OpLDC, 7), ins(OpLDC, 0), ins(OpDIVI)}, ErrDivisionByZero},
		{"InvalidAddress", []Instruction{ins(OpLDC, 1), ins(OpSTR, -3)}, ErrInvalidAddress},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New()
			v.Load(prog(tc.code...))
			orig := v.Run(0).Err
			data, err := v.HibernateToBytes()
			if err != nil {
				t.Fatalf("HibernateToBytes: %v", err)
			}
			restored := New()
			if err := restored.RestoreFromBytes(data); err != nil {
				t.Fatalf("RestoreFromBytes: %v", err)
			}

			ev := restored.Step()
			if ev.Status != StatusError {
				t.Fatalf("expected restored fault, got %v", ev.Status)
			}
			if !errors.Is(ev.Err, tc.want) {
				t.Errorf("expected restored fault to match %v, got %v", tc.want, ev.Err)
			}
			var rt *RuntimeError
			if !errors.As(ev.Err, &rt) {
				t.Fatalf("expected *RuntimeError, got %T", ev.Err)
			}
			if rt.PC != len(tc.code)-1 || rt.Instr != tc.code[len(tc.code)-1] {
				t.Errorf("expected fault at %d (%s), got %d (%s)", len(tc.code)-1, tc.code[len(tc.code)-1], rt.PC, rt.Instr)
			}
			if ev.Err.Error() != orig.Error() {
				t.Errorf("message changed across restore:\n%s\n%s", orig, ev.Err)
			}
		})
	}
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	restored := New()
	if err := restored.RestoreFromBytes([]byte("not cbor")); err == nil {
		t.Errorf("expected error for garbage input")
	}

	bad, err := cbor.Marshal(snapshot{Version: 99})
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.RestoreFromBytes(bad); !errors.Is(err, ErrSnapshotVersion) {
		t.Errorf("expected ErrSnapshotVersion, got %v", err)
	}

	for _, s := range []snapshot{
		{Version: snapshotVersion, Data: 4, S: 2},
		{Version: snapshotVersion, Data: 1, S: math.MaxInt, Memory: []int{0, 0}},
	} {
		corrupt, err := cbor.Marshal(s)
		if err != nil {
			t.Fatal(err)
		}
		if err := restored.RestoreFromBytes(corrupt); err == nil {
			t.Errorf("expected error for truncated memory, data=%d s=%d", s.Data, s.S)
		}
	}
}
