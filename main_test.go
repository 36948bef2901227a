package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gomvd/pkg/compiler"
)

func TestDefaultOutputPath(t *testing.T) {
	if got := defaultOutputPath("progs/fat.mvd", false); got != "progs/fat.obj" {
		t.Errorf("expected progs/fat.obj, got %s", got)
	}
	if got := defaultOutputPath("progs/fat.mvd", true); got != "progs/fat.mvdi" {
		t.Errorf("expected progs/fat.mvdi, got %s", got)
	}
}

func TestWriteProgramRoundTrip(t *testing.T) {
	prog, _, err := compiler.Build(`programa t; var a: inteiro; inicio leia(a); se a > 0 entao escreva(a) senao escreva(0) fim.`)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	dir := t.TempDir()

	for _, image := range []bool{false, true} {
		path := defaultOutputPath(filepath.Join(dir, "t.mvd"), image)
		if err := writeProgram(path, prog, image); err != nil {
			t.Fatalf("writeProgram(image=%t): %v", image, err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
		loaded, res, err := compiler.LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile(%s): %v", path, err)
		}
		if res != nil {
			t.Errorf("%s should not be compiled as source", path)
		}
		if !reflect.DeepEqual(loaded.Code, prog.Code) {
			t.Errorf("%s: code differs after a round trip", path)
		}
	}
}
