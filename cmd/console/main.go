package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gomvd/pkg/compiler"
	"gomvd/pkg/config"
	"gomvd/pkg/utils"
	"gomvd/pkg/vm"
)

var errBudget = errors.New("step budget exhausted")

// drive runs v until it halts or fails, answering input requests from sc.
// budget <= 0 means unlimited.
func drive(v *vm.VM, sc *bufio.Scanner, out io.Writer, prompt string, budget int) error {
	for {
		left := 0
		if budget > 0 {
			left = budget - int(v.Steps)
			if left <= 0 {
				return fmt.Errorf("%w after %d steps", errBudget, v.Steps)
			}
		}

		ev := v.Run(left)
		switch ev.Status {
		case vm.StatusRunning:
			return fmt.Errorf("%w after %d steps", errBudget, v.Steps)
		case vm.StatusOutput:
			fmt.Fprintln(out, ev.Value)
		case vm.StatusNeedInput:
			fmt.Fprint(out, prompt)
			if !sc.Scan() {
				return vm.ErrInputExhausted
			}
			if err := v.ProvideInput(sc.Text()); err != nil {
				fmt.Fprintln(out, err)
			}
		case vm.StatusHalted:
			return nil
		case vm.StatusError:
			return ev.Err
		}
	}
}

func main() {
	showAsm := flag.Bool("show-asm", false, "print the generated bytecode before running")
	trace := flag.Bool("trace", false, "log every executed instruction")
	budget := flag.Int("budget", -1, "maximum number of instructions to execute (default from config, 0 for unlimited)")
	snapshot := flag.String("snapshot", "", "hibernate the machine to this file when input runs out")
	resume := flag.String("resume", "", "restore a hibernated machine from this file and continue it")
	flag.Parse()

	if flag.NArg() == 0 && *resume == "" {
		fmt.Fprintln(os.Stderr, "usage: console [flags] <program.mvd|program.obj|program.mvdi>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	baseDir := "."
	var fullPath string
	if flag.NArg() > 0 {
		var err error
		fullPath, baseDir, err = utils.GetPathInfo(flag.Arg(0))
		if err != nil {
			log.Fatalf("Failed to resolve %s: %v", flag.Arg(0), err)
		}
	}

	cfg, err := config.FindAndLoad(baseDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *trace {
		cfg.VM.Trace = true
	}
	if *budget >= 0 {
		cfg.VM.StepBudget = *budget
	}
	cfg.ConfigureLogging()
	logger := commonlog.GetLogger("gomvd.console")
	if cfg.Path != "" {
		logger.Infof("using config %s", cfg.Path)
	}

	machine := vm.New(cfg.VMOptions()...)
	if *resume != "" {
		if err := machine.RestoreFromFile(*resume); err != nil {
			log.Fatalf("Failed to restore %s: %v", *resume, err)
		}
		logger.Infof("restored %s at instruction %d", *resume, machine.PC)
	} else {
		prog, res, err := compiler.LoadFile(fullPath)
		if err != nil {
			if res != nil {
				for _, d := range res.Diagnostics {
					fmt.Fprintln(os.Stderr, d)
				}
				if res.Suppressed > 0 {
					fmt.Fprintf(os.Stderr, "(%d more diagnostic(s) suppressed)\n", res.Suppressed)
				}
				os.Exit(1)
			}
			log.Fatalf("Failed to load program: %v", err)
		}
		if *showAsm && res != nil {
			fmt.Print("Generated bytecode:\n", res.Text, "\n")
		}
		machine.Load(prog)
	}

	sc := bufio.NewScanner(os.Stdin)
	err = drive(machine, sc, os.Stdout, "? ", cfg.VM.StepBudget)
	switch {
	case err == nil:
	case errors.Is(err, vm.ErrInputExhausted) && *snapshot != "":
		if err := machine.HibernateToFile(*snapshot); err != nil {
			log.Fatalf("Failed to hibernate: %v", err)
		}
		fmt.Fprintf(os.Stderr, "\ninput exhausted, machine hibernated to %s\n", *snapshot)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
