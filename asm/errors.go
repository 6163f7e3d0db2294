package asm

import "fmt"

// ErrFlags accumulates the structural error kinds raised by
// Validate, one bit per kind from §7. A non-zero result fails
// validation; Validate's returned error reports every kind that
// fired, not just the first.
type ErrFlags uint32

const (
	ErrInstrBeforeSection ErrFlags = 1 << iota
	ErrDuplicateLabel
	ErrUnresolvedLabel
	ErrEmptyJumpTable
	ErrAddrOutsideTable
	ErrSectionOverlap
	ErrEmptySection
	ErrProgramStartsWithData
	ErrJumpOutOfRange
	ErrParseFailure
)

var errNames = map[ErrFlags]string{
	ErrInstrBeforeSection:    "instruction before .name",
	ErrDuplicateLabel:        "duplicate label",
	ErrUnresolvedLabel:       "unresolved label",
	ErrEmptyJumpTable:        "empty jump table",
	ErrAddrOutsideTable:      "jump-table entry outside a table header",
	ErrSectionOverlap:        "section overlap",
	ErrEmptySection:          "empty section",
	ErrProgramStartsWithData: "program starts with data",
	ErrJumpOutOfRange:        "jump too far",
	ErrParseFailure:          "parse failure",
}

// ValidationError is returned by Validate when one or more structural
// checks fail. Flags is the accumulated bitfield; Messages holds one
// human-readable line per individual failure, each already carrying
// file/line context where applicable.
type ValidationError struct {
	Flags    ErrFlags
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	return fmt.Sprintf("%d assembly errors (first: %s)", len(e.Messages), e.Messages[0])
}

// Has reports whether kind is among the accumulated failures.
func (e *ValidationError) Has(kind ErrFlags) bool {
	return e.Flags&kind != 0
}

type errAccumulator struct {
	flags    ErrFlags
	messages []string
}

func (a *errAccumulator) add(kind ErrFlags, format string, args ...any) {
	a.flags |= kind
	a.messages = append(a.messages, fmt.Sprintf(format, args...))
}

func (a *errAccumulator) err() error {
	if a.flags == 0 {
		return nil
	}
	return &ValidationError{Flags: a.flags, Messages: a.messages}
}
