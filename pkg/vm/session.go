package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var ErrInputExhausted = errors.New("program requested input but none is left")

// Interact drives the machine to completion, answering RD requests with
// lines read from in and writing PRN values to out, one per line. prompt is
// written before each read when non-empty. Lines that are not integers are
// reported on out and read again.
func (v *VM) Interact(in io.Reader, out io.Writer, prompt string) error {
	sc := bufio.NewScanner(in)
	for {
		ev := v.Run(0)
		switch ev.Status {
		case StatusOutput:
			fmt.Fprintln(out, ev.Value)
		case StatusNeedInput:
			if prompt != "" {
				fmt.Fprint(out, prompt)
			}
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return err
				}
				return ErrInputExhausted
			}
			if err := v.ProvideInput(sc.Text()); err != nil {
				fmt.Fprintln(out, err)
			}
		case StatusHalted:
			return nil
		case StatusError:
			return ev.Err
		}
	}
}
