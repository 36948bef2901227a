package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gomvd/pkg/asm"
	"gomvd/pkg/compiler"
	"gomvd/pkg/config"
	"gomvd/pkg/utils"
	"gomvd/pkg/vm"
)

func main() {
	inPath := flag.String("in", "", "input source (.mvd) or bytecode (.obj) file path")
	outPath := flag.String("out", "", "output file path (default: input with .obj or .mvdi extension)")
	image := flag.Bool("image", false, "write a binary program image instead of bytecode text")
	runProgram := flag.Bool("run", false, "run the generated program on the virtual machine")
	runBinPath := flag.String("run-bin", "", "run an existing bytecode (.obj) or image (.mvdi) file")
	verbosity := flag.Int("v", -1, "log verbosity (default from config)")
	flag.Parse()

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	cfg.ConfigureLogging()

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}

	if *inPath == "" && *runBinPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to compile, -run to run the output, or -run-bin <file> to run an existing program")
		flag.Usage()
		os.Exit(2)
	}

	var built *vm.Program
	if *inPath != "" {
		prog, res, err := compiler.LoadFile(*inPath)
		if err != nil {
			if d, ok := compiler.FirstDiagnostic(err); ok {
				fmt.Fprintf(os.Stderr, "compilation failed: %v\n", d)
			} else {
				fmt.Fprintf(os.Stderr, "failed to load %q: %v\n", *inPath, err)
			}
			if res != nil && res.Suppressed > 0 {
				fmt.Fprintf(os.Stderr, "(%d more diagnostic(s) suppressed)\n", res.Suppressed)
			}
			os.Exit(1)
		}
		built = prog

		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath, *image)
		}
		if output == *inPath {
			fmt.Fprintf(os.Stderr, "not overwriting %q; pass -out or -image\n", output)
		} else {
			if err := writeProgram(output, prog, *image); err != nil {
				fmt.Fprintf(os.Stderr, "failed to write %q: %v\n", output, err)
				os.Exit(1)
			}
			fmt.Printf("compiled %d instructions -> %s\n", len(prog.Code), output)
		}
	}

	switch {
	case *runBinPath != "":
		prog, _, err := compiler.LoadFile(*runBinPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load %q: %v\n", *runBinPath, err)
			os.Exit(1)
		}
		built = prog
	case !*runProgram:
		return
	}

	if err := runProgramOn(built, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

func defaultOutputPath(inPath string, image bool) string {
	if image {
		return utils.ReplaceExt(inPath, ".mvdi")
	}
	return utils.ReplaceExt(inPath, ".obj")
}

func writeProgram(path string, prog *vm.Program, image bool) error {
	if image {
		data, err := asm.EncodeImage(prog)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
	return os.WriteFile(path, []byte(asm.Disassemble(prog)), 0o644)
}

func runProgramOn(prog *vm.Program, cfg *config.Config) error {
	machine := vm.New(cfg.VMOptions()...)
	machine.Load(prog)
	if err := machine.Interact(os.Stdin, os.Stdout, "? "); err != nil {
		return err
	}
	commonlog.GetLogger("gomvd").Infof("run complete: %d steps, %d static cells", machine.Steps, machine.DataSize())
	return nil
}
