package asm

import "fmt"

// Assembler turns parsed source lines into a validated, flat eVM
// bytecode buffer. Its lifecycle mirrors §3: construct with New,
// feed it every source line via ParseLine, then call Validate and
// ToBuffer.
type Assembler struct {
	records []*Record

	sections    []*Section
	byName      map[string]*Section
	labelCounts map[string]int
	programSz   uint32
	validated   bool
}

// New creates an empty Assembler.
func New() *Assembler {
	return &Assembler{byName: make(map[string]*Section)}
}

// ParseLine parses one line of source text and appends the resulting
// record. A non-nil error reports a front-end parse failure; the
// record is still kept (marked invalid) for later context, per the
// parse-error contract in §7. Blank lines and comment-only lines
// produce no record and no error.
func (a *Assembler) ParseLine(file string, lineNum int, text string) error {
	rec, err := parseLine(file, lineNum, text)
	if rec != nil {
		a.records = append(a.records, rec)
	}
	if err != nil {
		return fmt.Errorf("%s:%d: %s: %w", file, lineNum, rec.Text, err)
	}
	return nil
}

// Records returns every record parsed so far, in source order.
func (a *Assembler) Records() []*Record { return a.records }

// Sections returns the sections discovered during Validate, sorted
// by base address. Only meaningful after a successful Validate call.
func (a *Assembler) Sections() []*Section { return a.sections }
