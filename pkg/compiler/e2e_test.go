package compiler

import (
	"reflect"
	"strconv"
	"testing"

	"gomvd/pkg/asm"
	"gomvd/pkg/vm"
)

// runCode compiles source, feeds it inputs in order and returns everything it
// printed. The program must halt.
func runCode(t *testing.T, source string, inputs ...int) []int {
	t.Helper()
	m := boot(t, source)
	var out []int
	for {
		ev := m.Run(1_000_000)
		switch ev.Status {
		case vm.StatusOutput:
			out = append(out, ev.Value)
		case vm.StatusNeedInput:
			if len(inputs) == 0 {
				t.Fatalf("program asked for more input than provided")
			}
			if err := m.ProvideInput(strconv.Itoa(inputs[0])); err != nil {
				t.Fatalf("ProvideInput: %v", err)
			}
			inputs = inputs[1:]
		case vm.StatusHalted:
			return out
		case vm.StatusError:
			t.Fatalf("runtime error: %v", ev.Err)
		case vm.StatusRunning:
			t.Fatalf("program did not halt within the step budget")
		}
	}
}

func boot(t *testing.T, source string) *vm.VM {
	t.Helper()
	prog, _, err := Build(source)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	m := vm.New()
	m.Load(prog)
	return m
}

func TestReadWrite_E2E(t *testing.T) {
	src := `programa T; var a,b:inteiro; inicio leia(a); leia(b); escreva(a); a:=a+b; escreva(a) fim.`
	got := runCode(t, src, 2, 3)
	if want := []int{2, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExpressions_E2E(t *testing.T) {
	tests := []struct {
		expr     string
		expected int
	}{
		{"6 * 7", 42},
		{"7 div 2", 3},
		{"-7 div 2", -3},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"-1 + -2", -3},
		{"- - 5", 5},
		{"+4", 4},
		{"3 + 4 > 2", 1},
		{"2 >= 3", 0},
		{"2 <= 2", 1},
		{"1 <> 2", 1},
		{"1 != 1", 0},
		{"4 = 4", 1},
		{"nao (1 > 2)", 1},
		{"verdadeiro e falso", 0},
		{"falso ou verdadeiro", 1},
		{"nao 1 < 2", 0},
		{"1 < 2 e 3 < 4", 1},
	}
	for _, tc := range tests {
		src := "programa T;\ninicio\n  escreva(" + tc.expr + ")\nfim."
		got := runCode(t, src)
		if len(got) != 1 || got[0] != tc.expected {
			t.Errorf("%s: expected %d, got %v", tc.expr, tc.expected, got)
		}
	}
}

func TestDoubleNegation_E2E(t *testing.T) {
	src := `programa T;
var x, y: inteiro;
inicio
  x := 10; y := 4;
  escreva(x - -y);
  escreva(x - - y * 2)
fim.`
	got := runCode(t, src)
	if want := []int{14, 18}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestWhile_E2E(t *testing.T) {
	src := `programa T;
var i, s: inteiro;
inicio
  i := 1; s := 0;
  enquanto i <= 10 faca
  inicio
    s := s + i;
    i := i + 1
  fim;
  escreva(s)
fim.`
	got := runCode(t, src)
	if !reflect.DeepEqual(got, []int{55}) {
		t.Errorf("expected [55], got %v", got)
	}
}

func TestNestedIf_E2E(t *testing.T) {
	src := `programa T;
var n: inteiro;
inicio
  leia(n);
  se n > 0 entao
    se n > 10 entao escreva(2) senao escreva(1)
  senao escreva(0)
fim.`
	for _, tc := range []struct{ in, out int }{{-5, 0}, {3, 1}, {50, 2}} {
		got := runCode(t, src, tc.in)
		if len(got) != 1 || got[0] != tc.out {
			t.Errorf("input %d: expected %d, got %v", tc.in, tc.out, got)
		}
	}
}

const factorialSource = `programa fatorial;
var n, r: inteiro;
funcao fat: inteiro;
var k: inteiro;
inicio
  se n <= 1 entao fat := 1
  senao
  inicio
    k := n;
    n := n - 1;
    fat := k * fat;
    n := k
  fim
fim;
inicio
  leia(n);
  r := fat;
  escreva(r);
  escreva(n)
fim.`

func TestRecursiveFactorial_E2E(t *testing.T) {
	m := boot(t, factorialSource)
	if ev := m.Run(0); ev.Status != vm.StatusNeedInput {
		t.Fatalf("expected NeedInput, got %v", ev.Status)
	}
	// k is the one recursive local; it lives at address 3.
	m.Memory[3] = 77
	if err := m.ProvideInput("5"); err != nil {
		t.Fatal(err)
	}
	var out []int
	for {
		ev := m.Run(0)
		if ev.Status == vm.StatusOutput {
			out = append(out, ev.Value)
			continue
		}
		if ev.Status != vm.StatusHalted {
			t.Fatalf("unexpected event %+v", ev)
		}
		break
	}
	if want := []int{120, 5}; !reflect.DeepEqual(out, want) {
		t.Errorf("expected %v, got %v", want, out)
	}
	if m.Memory[3] != 77 {
		t.Errorf("recursive local not restored after the outermost DALLOC: M[3]=%d", m.Memory[3])
	}
	if m.S != -1 {
		t.Errorf("stack not balanced at halt: s=%d", m.S)
	}
}

func TestFactorialTable_E2E(t *testing.T) {
	want := []int{1, 1, 2, 6, 24, 120, 720, 5040}
	for n, f := range want {
		got := runCode(t, factorialSource, n)
		if len(got) != 2 || got[0] != f {
			t.Errorf("fat(%d): expected %d, got %v", n, f, got)
		}
	}
}

func TestBooleanFunction_E2E(t *testing.T) {
	src := `programa T;
var n: inteiro;
funcao par: booleano;
inicio
  par := (n div 2) * 2 = n
fim;
inicio
  leia(n);
  se par entao escreva(1) senao escreva(0)
fim.`
	for _, tc := range []struct{ in, out int }{{4, 1}, {7, 0}, {0, 1}} {
		got := runCode(t, src, tc.in)
		if len(got) != 1 || got[0] != tc.out {
			t.Errorf("par(%d): expected %d, got %v", tc.in, tc.out, got)
		}
	}
}

func TestBooleanRead_E2E(t *testing.T) {
	src := `programa T;
var b: booleano;
inicio
  leia(b);
  escreva(b);
  escreva(b e verdadeiro);
  se b entao escreva(1) senao escreva(0)
fim.`
	for _, tc := range []struct {
		in   int
		want []int
	}{
		{5, []int{1, 1, 1}},
		{1, []int{1, 1, 1}},
		{0, []int{0, 0, 0}},
		{-2, []int{1, 1, 1}},
	} {
		if got := runCode(t, src, tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("leia(b) with %d: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestSiblingProceduresShareAddresses_E2E(t *testing.T) {
	src := `programa S;
var g: inteiro;
procedimento p;
var a: inteiro;
inicio a := 10; g := g + a fim;
procedimento q;
var b: inteiro;
inicio b := 7; p; g := g + b fim;
inicio g := 0; q; escreva(g) fim.`
	got := runCode(t, src)
	if !reflect.DeepEqual(got, []int{17}) {
		t.Errorf("expected [17], got %v", got)
	}
}

func TestFunctionSlotDoesNotClobberSibling_E2E(t *testing.T) {
	// f's result slot and q's local b get the same address.
	src := `programa C;
var g: inteiro;
procedimento p;
  funcao f: inteiro;
  inicio f := 99 fim;
inicio g := f fim;
procedimento q;
var b: inteiro;
inicio b := 7; p; escreva(b); escreva(g) fim;
inicio q fim.`
	got := runCode(t, src)
	if want := []int{7, 99}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestResultSetFromNestedProcedure_E2E(t *testing.T) {
	src := `programa R;
funcao f: inteiro;
  procedimento define;
  inicio f := 42 fim;
inicio define fim;
inicio escreva(f + 1) fim.`
	got := runCode(t, src)
	if want := []int{43}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMutualRecursionThroughNesting_E2E(t *testing.T) {
	// countdown prints n..1; the nested helper calls the enclosing procedure.
	src := `programa M;
var n: inteiro;
procedimento countdown;
  procedimento step;
  inicio
    n := n - 1;
    countdown
  fim;
inicio
  se n > 0 entao
  inicio
    escreva(n);
    step
  fim
fim;
inicio
  n := 3;
  countdown
fim.`
	got := runCode(t, src)
	if want := []int{3, 2, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNoVarsNoSubroutines_E2E(t *testing.T) {
	for _, src := range []string{
		"programa a; inicio fim.",
		"programa b; inicio escreva(1); fim.",
		"programa c; inicio se verdadeiro entao inicio fim fim.",
	} {
		res, err := Compile(src)
		if err != nil {
			t.Fatalf("%q: %v", src, err)
		}
		m, err := asm.Boot(res.Text)
		if err != nil {
			t.Fatalf("%q: load: %v", src, err)
		}
		for ev := m.Run(0); ev.Status != vm.StatusHalted; ev = m.Run(0) {
			if ev.Status != vm.StatusOutput {
				t.Fatalf("%q: unexpected event %+v", src, ev)
			}
		}
	}
}

func TestDivisionByZero_E2E(t *testing.T) {
	m := boot(t, "programa T;\nvar z: inteiro;\ninicio\n  z := 0;\n  escreva(1 div z)\nfim.")
	ev := m.Run(0)
	if ev.Status != vm.StatusError {
		t.Fatalf("expected runtime error, got %v", ev.Status)
	}
}

func TestTextAndLinkAgree_E2E(t *testing.T) {
	res, err := Compile(factorialSource)
	if err != nil {
		t.Fatal(err)
	}
	linked, err := asm.Link(res.Code)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := asm.Assemble(res.Text)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(linked.Code, loaded.Code) {
		t.Errorf("text and linked programs differ")
	}
}
