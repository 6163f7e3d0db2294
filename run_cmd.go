package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"evm/internal/config"
	"evm/vm"
)

func newRunCmd() *cobra.Command {
	var stackCapacity uint16
	var maxOps int
	var logLevel int

	cmd := &cobra.Command{
		Use:   "run <bytecode>",
		Short: "Run a flat eVM bytecode file until it halts or yields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			if !cmd.Flags().Changed("stack") {
				stackCapacity = cfg.StackCapacity
			}
			if !cmd.Flags().Changed("max-ops") {
				maxOps = cfg.MaxOps
			}
			if !cmd.Flags().Changed("log-level") {
				logLevel = cfg.LogLevel
			}
			return runProgram(args[0], stackCapacity, maxOps, logLevel)
		},
	}

	cmd.Flags().Uint16Var(&stackCapacity, "stack", 0, "operand stack capacity (default from EVM_STACK_CAPACITY)")
	cmd.Flags().IntVar(&maxOps, "max-ops", 0, "instruction budget per run() call (default from EVM_MAX_OPS)")
	cmd.Flags().IntVar(&logLevel, "log-level", 0, "logr verbosity (default from EVM_LOG_LEVEL)")
	return cmd
}

func runProgram(path string, stackCapacity uint16, maxOps int, logLevel int) error {
	program, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	machine, err := vm.New(stackCapacity)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	machine.Log = newLogger(logLevel)
	machine.SetProgram(program)

	for {
		halted, err := machine.Run(maxOps)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if halted || machine.Yielded() {
			break
		}
	}

	fmt.Fprintf(os.Stdout, "halted=%v yielded=%v ip=%d depth=%d flags=0x%02X\n",
		machine.Halted(), machine.Yielded(), machine.IP(), machine.Depth(), machine.Flags())
	for d := uint16(0); d < machine.Depth(); d++ {
		v, err := machine.TopInt(d)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		fmt.Fprintf(os.Stdout, "stack[%d] = %d\n", machine.Depth()-1-d, v)
	}
	return nil
}
