package asm

import (
	"strings"

	"evm/bincode"
	"evm/opcode"
)

// stripComment removes a trailing `;` end-of-line comment.
func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

// parseLine turns one source line into a *Record, or nil if the line
// is blank or a comment-only no-op. A non-nil returned error means
// the record carries FlagInvalidArg or FlagMissingArg and the error
// should be surfaced with file/line context; the record is still
// returned so Validate can use it to preserve ordering and section
// bookkeeping.
func parseLine(file string, lineNum int, raw string) (*Record, error) {
	text := strings.TrimSpace(stripComment(raw))
	if text == "" {
		return nil, nil
	}

	rec := &Record{File: file, Line: lineNum, Text: strings.TrimSpace(raw)}

	switch {
	case strings.HasSuffix(text, ":"):
		rec.Kind = KindLabel
		rec.Flags |= FlagLabel
		rec.LabelName = strings.TrimSpace(strings.TrimSuffix(text, ":"))
		if rec.LabelName == "" {
			rec.invalid("empty label name")
		}
		return rec, rec.err

	case strings.HasPrefix(text, "."):
		rec.Kind = KindDirective
		rec.Flags |= FlagDirective
		fields := strings.Fields(text)
		rec.Directive = strings.ToLower(strings.TrimPrefix(fields[0], "."))
		if len(fields) > 1 {
			rec.DirArg = strings.Join(fields[1:], " ")
		}
		parseDirective(rec)
		return rec, rec.err

	default:
		fields := strings.Fields(text)
		rec.Kind = KindInstruction
		rec.Mnemonic = strings.ToUpper(fields[0])
		rec.Args = fields[1:]
		parseInstruction(rec)
		return rec, rec.err
	}
}

func parseDirective(rec *Record) {
	switch rec.Directive {
	case "name":
		if rec.DirArg == "" {
			rec.missing(".name requires a section name")
		}
	case "offset":
		v, err := parseInt(rec.DirArg)
		if err != nil || !fitsUnsigned(v, 24) {
			rec.invalid(".offset operand out of range 0..16777215: %s", rec.DirArg)
			return
		}
	case "db":
		v, err := parseInt(rec.DirArg)
		if err != nil || v < -128 || v > 255 {
			rec.invalid(".db operand out of byte range: %s", rec.DirArg)
			return
		}
		rec.Bin[0] = byte(v)
		rec.Count = 1
		rec.Size = 1
	case "dh":
		v, err := parseInt(rec.DirArg)
		if err != nil || v < -32768 || v > 65535 {
			rec.invalid(".dh operand out of 16-bit range: %s", rec.DirArg)
			return
		}
		rec.Bin[0] = byte(v)
		rec.Bin[1] = byte(v >> 8)
		rec.Count = 2
		rec.Size = 2
	case "dw":
		v, err := parseInt(rec.DirArg)
		if err != nil || v < -2147483648 || v > 4294967295 {
			rec.invalid(".dw operand out of 32-bit range: %s", rec.DirArg)
			return
		}
		rec.Bin[0] = byte(v)
		rec.Bin[1] = byte(v >> 8)
		rec.Bin[2] = byte(v >> 16)
		rec.Bin[3] = byte(v >> 24)
		rec.Count = 4
		rec.Size = 4
	case "df":
		f, err := parseFloat(rec.DirArg)
		if err != nil {
			rec.invalid(".df operand is not a float: %s", rec.DirArg)
			return
		}
		bits := uint32(bincode.Float32ToInt32(f))
		rec.Bin[0] = byte(bits)
		rec.Bin[1] = byte(bits >> 8)
		rec.Bin[2] = byte(bits >> 16)
		rec.Bin[3] = byte(bits >> 24)
		rec.Count = 4
		rec.Size = 4
	case "addr":
		if rec.DirArg == "" {
			rec.missing(".addr requires a label operand")
			return
		}
		rec.Target = rec.DirArg
		rec.Flags |= FlagUnresolved
		// Size is resolved during Validate's section-assignment pass,
		// which knows whether the preceding table header was JTBL or
		// LJTBL.
	default:
		rec.invalid("unknown directive .%s", rec.Directive)
	}
}

func parseInstruction(rec *Record) {
	if op, ok := opcode.Lookup(rec.Mnemonic); ok {
		serializeDirect(rec, op, rec.Args)
		return
	}
	if nice, ok := niceMnemonics[rec.Mnemonic]; ok {
		nice(rec, rec.Args)
		return
	}
	rec.invalid("unknown mnemonic %q", rec.Mnemonic)
}
