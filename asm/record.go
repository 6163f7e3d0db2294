package asm

import "fmt"

// invalid marks rec as carrying an out-of-range or malformed operand.
// The record is kept (not dropped) so Validate can still report it
// with file/line context, per the parse-error contract in §7.
func (r *Record) invalid(format string, args ...any) {
	r.Flags |= FlagInvalidArg
	r.err = fmt.Errorf(format, args...)
}

// missing marks rec as carrying too few operands.
func (r *Record) missing(format string, args ...any) {
	r.Flags |= FlagMissingArg
	r.err = fmt.Errorf(format, args...)
}

// Err returns the front-end parse error recorded against r, if any.
func (r *Record) Err() error { return r.err }

// Location formats the record's source position for diagnostics.
func (r *Record) Location() string {
	if r.File == "" {
		return fmt.Sprintf("line %d", r.Line)
	}
	return fmt.Sprintf("%s:%d", r.File, r.Line)
}
