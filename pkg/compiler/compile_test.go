package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gomvd/pkg/asm"
	"gomvd/pkg/vm"
)

const sumSource = `programa soma;
var a, b: inteiro;
inicio
  leia(a);
  leia(b);
  escreva(a + b)
fim.
`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runSum(t *testing.T, prog *vm.Program) string {
	t.Helper()
	m := vm.New()
	m.Load(prog)
	var out strings.Builder
	if err := m.Interact(strings.NewReader("4\n5\n"), &out, ""); err != nil {
		t.Fatalf("Interact: %v", err)
	}
	return out.String()
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	res, err := Compile(sumSource)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	linked, err := asm.Link(res.Code)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	image, err := asm.EncodeImage(linked)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}

	files := map[string][]byte{
		"soma.mvd":  []byte(sumSource),
		"soma.obj":  []byte(res.Text),
		"soma.mvdi": image,
	}
	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			prog, r, err := LoadFile(writeFile(t, dir, name, data))
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if (r != nil) != strings.HasSuffix(name, ".mvd") {
				t.Errorf("Result should only be returned for source files, got %v", r)
			}
			if !reflect.DeepEqual(prog.Code, linked.Code) {
				t.Errorf("loaded code differs from the compiled program")
			}
			if got := runSum(t, prog); got != "9\n" {
				t.Errorf("expected output %q, got %q", "9\n", got)
			}
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := LoadFile(filepath.Join(dir, "missing.mvd")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}

	bad := writeFile(t, dir, "bad.mvd", []byte("programa x; inicio escreva(y) fim."))
	_, res, err := LoadFile(bad)
	if !errors.Is(err, ErrUndeclaredSymbol) {
		t.Errorf("expected ErrUndeclaredSymbol, got %v", err)
	}
	if res == nil || len(res.Diagnostics) != 1 {
		t.Errorf("expected the diagnostics to be returned, got %+v", res)
	}

	obj := writeFile(t, dir, "bad.obj", []byte("START\n    FOO\n"))
	if _, _, err := LoadFile(obj); err == nil || !strings.Contains(err.Error(), "bad.obj") {
		t.Errorf("expected an error naming the file, got %v", err)
	}

	img := writeFile(t, dir, "bad.mvdi", []byte("not an image"))
	if _, _, err := LoadFile(img); err == nil {
		t.Errorf("expected an error for a corrupt image")
	}
}

func TestCompileReader(t *testing.T) {
	res, err := CompileReader(strings.NewReader(sumSource))
	if err != nil {
		t.Fatalf("CompileReader: %v", err)
	}
	direct, _ := Compile(sumSource)
	if res.Text != direct.Text {
		t.Errorf("CompileReader and Compile disagree:\n%s\n%s", res.Text, direct.Text)
	}
}
