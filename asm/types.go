// Package asm implements the eVM assembler: a front end that turns
// mnemonic source lines into an ordered list of partially-encoded
// instruction records, and a back end (Validate) that assigns those
// records to sections, resolves labels, picks final jump encodings,
// and emits a flat bytecode buffer.
package asm

import "evm/opcode"

// Flag records front-end and back-end bookkeeping state for a single
// Record, mirroring the instruction-record flag set from the data
// model: DIRECTIVE, LABEL, FINALIZED, UNRESOLVED, INVALID_ARG,
// MISSING_ARG.
type Flag uint16

const (
	FlagDirective Flag = 1 << iota
	FlagLabel
	FlagFinalized
	FlagUnresolved
	FlagInvalidArg
	FlagMissingArg
)

// Kind distinguishes the three statement shapes a source line can
// take.
type Kind int

const (
	KindLabel Kind = iota
	KindDirective
	KindInstruction
)

// Record is one parsed source line, tracked from parse through
// validation. It carries its own source location for error
// reporting, per §7: parse errors are reported with file/line/text
// and the record is kept (marked invalid) so validation can still
// give context.
type Record struct {
	File string
	Line int
	Text string

	Kind  Kind
	Flags Flag

	// KindLabel
	LabelName string

	// KindDirective
	Directive string
	DirArg    string

	// KindInstruction
	Mnemonic string
	Args     []string
	Op       opcode.Code

	// Target is the label name this record references (a jump, CALL,
	// LCALL or .addr operand). Empty if the record has no label
	// operand.
	Target string

	// Bin holds up to 6 bytes of partial machine encoding; Count is
	// how many of those bytes are populated and meaningful so far.
	// For jumps/calls/.addr only the opcode byte (if any) is stored
	// here; Validate writes their final bytes into the section's
	// Contents once the label target is known. For everything else
	// the front end fills it completely.
	Bin   [6]byte
	Count int

	// Size is the tentative (and, for non-relocating records, final)
	// encoded length in bytes, computed by the front end.
	Size int

	// Section and Offset are set during pass 1 of validation: the
	// section this record was assigned to, and its byte offset
	// relative to that section's base.
	Section *Section
	Offset  uint32

	// TargetSection/TargetOffset are set during label resolution
	// (pass 3) for records with FlagUnresolved.
	TargetSection *Section
	TargetOffset  uint32

	err error
}

// Section is a named, based, contiguous region of the output
// program. Labels are owned by the section they are defined in.
type Section struct {
	Name string
	Base uint32

	// Refs is every non-label record assigned to this section, in
	// parse order.
	Refs []*Record

	// Labels maps a label name defined in this section to its offset
	// relative to Base.
	Labels map[string]uint32

	// Length is the section's final byte length, computed during
	// pass 1; the encoding pass sizes Contents from it.
	Length uint32

	// Contents holds the section's encoded bytes once the encoding
	// pass has run.
	Contents []byte
}
