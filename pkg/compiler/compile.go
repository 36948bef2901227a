package compiler

import (
	"fmt"
	"io"
	"os"

	"gomvd/pkg/asm"
	"gomvd/pkg/utils"
	"gomvd/pkg/vm"
)

// Compile compiles a whole program. On failure the returned Result still
// carries the diagnostics and the error wraps ErrCompilationFailed.
func Compile(src string) (*Result, error) {
	p := NewParser(src)
	p.ParseProgram()
	res := p.Result()
	if err := res.Err(); err != nil {
		if res.Suppressed > 0 {
			p.log.Debugf("%d further diagnostic(s) suppressed", res.Suppressed)
		}
		return res, err
	}
	p.log.Debugf("compiled %d instructions", len(res.Code))
	return res, nil
}

func CompileReader(r io.Reader) (*Result, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return Compile(string(src))
}

// Build compiles src and resolves its labels into a runnable program.
func Build(src string) (*vm.Program, *Result, error) {
	res, err := Compile(src)
	if err != nil {
		return nil, res, err
	}
	prog, err := asm.Link(res.Code)
	if err != nil {
		return nil, res, fmt.Errorf("link: %w", err)
	}
	return prog, res, nil
}

// LoadFile reads a runnable program from path: .mvdi files are decoded as
// images, .obj files are assembled, anything else is compiled. The Result
// is nil unless path was compiled.
func LoadFile(path string) (*vm.Program, *Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case utils.IsImage(path):
		prog, err := asm.DecodeImage(data)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return prog, nil, nil
	case !utils.IsSource(path):
		prog, err := asm.Assemble(string(data))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		return prog, nil, nil
	}
	return Build(string(data))
}
