package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"evm/asm"
)

func newAssembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "asm <source.s> [more.s ...]",
		Short: "Assemble one or more source files into flat eVM bytecode on stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := asm.New()
			for _, path := range args {
				if err := assembleFile(a, path); err != nil {
					return err
				}
			}
			if err := a.Validate(); err != nil {
				return err
			}
			buf, err := a.ToBuffer()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(buf)
			return err
		},
	}
}

func assembleFile(a *asm.Assembler, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("asm: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		// Parse errors are recorded on the record itself and surfaced
		// together by Validate; nothing to do with the error here.
		_ = a.ParseLine(path, lineNum, scanner.Text())
	}
	return scanner.Err()
}
