package main

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// newLogger builds a logr.Logger backed by the standard library's log
// package, verbosity-gated by level (higher is more verbose), for
// wiring into a vm.VM's Log field.
func newLogger(level int) logr.Logger {
	stdr.SetVerbosity(level)
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags))
}
