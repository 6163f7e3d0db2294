package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"evm/disasm"
)

func newDisassembleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <bytecode> [more ...]",
		Short: "Disassemble one or more bytecode files into assembly source on stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := disassembleFile(path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func disassembleFile(path string) error {
	program, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}
	insts, err := disasm.Decode(program)
	if err != nil {
		return fmt.Errorf("disasm: %s: %w", path, err)
	}
	_, err = os.Stdout.Write(disasm.ToFile(insts))
	return err
}
