// Command evm is the eVM toolchain: an assembler, a disassembler, and
// an interpreter front end built on the packages in asm, disasm, vm,
// opcode and bincode.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "evm",
		Short:         "Assemble, disassemble, and run eVM bytecode",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAssembleCmd())
	root.AddCommand(newDisassembleCmd())
	root.AddCommand(newRunCmd())
	return root
}
