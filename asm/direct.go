package asm

import (
	"evm/bincode"
	"evm/opcode"
)

// argKind classifies how a literal opcode-table mnemonic (one that
// matches opcode.Code.String() exactly, e.g. "PUSH_8I", "CMP_I",
// "JMP") consumes its operand text. These are the forms the
// disassembler emits, so the assembler must accept them at face
// value with no narrowing or selection logic: that sugar lives only
// in the "nice" meta-mnemonics in nice.go.
type argKind int

const (
	argNone argKind = iota
	argU8           // BCALL id, RET_I depth: unsigned byte, stored raw
	argI8           // PUSH_8I: signed byte
	argI16          // PUSH_16I
	argI24          // PUSH_24I
	argI32          // PUSH_32I
	argF32          // PUSH_F: float bits
	argNibblePair   // REM_R hi lo, each 0..15
	argLabel2       // short jump: JMP, JLT, ...
	argLabel3Jump   // long jump: LJMP, LJLT, ...
	argLabel3Call   // CALL
	argLabel4Call   // LCALL
	argTableShort   // JTBL header, entries filled by .addr
	argTableLong    // LJTBL header
)

var directArg = map[opcode.Code]argKind{}

func init() {
	for b := 0; b < 256; b++ {
		c := opcode.Code(b)
		if c.Valid() {
			directArg[c] = argNone
		}
	}
	directArg[opcode.Bcall] = argU8
	directArg[opcode.RetI] = argU8
	directArg[opcode.Push8I] = argI8
	directArg[opcode.Push16I] = argI16
	directArg[opcode.Push24I] = argI24
	directArg[opcode.Push32I] = argI32
	directArg[opcode.PushF] = argF32
	directArg[opcode.RemR] = argNibblePair

	directArg[opcode.Jmp] = argLabel2
	directArg[opcode.Jlt] = argLabel2
	directArg[opcode.Jle] = argLabel2
	directArg[opcode.Jne] = argLabel2
	directArg[opcode.Jeq] = argLabel2
	directArg[opcode.Jge] = argLabel2
	directArg[opcode.Jgt] = argLabel2

	directArg[opcode.Ljmp] = argLabel3Jump
	directArg[opcode.Ljlt] = argLabel3Jump
	directArg[opcode.Ljle] = argLabel3Jump
	directArg[opcode.Ljne] = argLabel3Jump
	directArg[opcode.Ljeq] = argLabel3Jump
	directArg[opcode.Ljge] = argLabel3Jump
	directArg[opcode.Ljgt] = argLabel3Jump

	directArg[opcode.Call] = argLabel3Call
	directArg[opcode.Lcall] = argLabel4Call

	directArg[opcode.Jtbl] = argTableShort
	directArg[opcode.Ljtbl] = argTableLong
}

// finalize stamps rec as a complete, non-relocating instruction: op
// plus its already-encoded immediate bytes.
func finalize(rec *Record, op opcode.Code, imm []byte) {
	rec.Op = op
	rec.Bin[0] = byte(op)
	copy(rec.Bin[1:], imm)
	rec.Count = 1 + len(imm)
	rec.Size = op.Len()
	rec.Flags |= FlagFinalized
}

// unresolved stamps rec as a label-relative instruction whose final
// bytes are produced by Validate once every label is known.
func unresolved(rec *Record, op opcode.Code, target string, size int) {
	rec.Op = op
	rec.Bin[0] = byte(op)
	rec.Count = 1
	rec.Size = size
	rec.Target = target
	rec.Flags |= FlagUnresolved
}

// serializeDirect encodes a literal opcode-table mnemonic. op is
// already known to be valid; args is whatever followed it on the
// source line.
func serializeDirect(rec *Record, op opcode.Code, args []string) {
	switch directArg[op] {
	case argNone:
		if len(args) != 0 {
			rec.invalid("%s takes no operand", op.String())
			return
		}
		finalize(rec, op, nil)

	case argU8:
		if len(args) != 1 {
			rec.missing("%s requires one integer operand", op.String())
			return
		}
		v, err := parseInt(args[0])
		if err != nil || !fitsUnsigned(v, 8) {
			rec.invalid("%s operand out of range 0..255: %s", op.String(), args[0])
			return
		}
		finalize(rec, op, []byte{byte(v)})

	case argI8:
		if len(args) != 1 {
			rec.missing("%s requires one integer operand", op.String())
			return
		}
		v, err := parseInt(args[0])
		if err != nil || !fitsSigned(v, 8) {
			rec.invalid("%s operand out of range -128..127: %s", op.String(), args[0])
			return
		}
		buf := make([]byte, 1)
		bincode.StoreInt8(buf, int32(v))
		finalize(rec, op, buf)

	case argI16:
		if len(args) != 1 {
			rec.missing("%s requires one integer operand", op.String())
			return
		}
		v, err := parseInt(args[0])
		if err != nil || !fitsSigned(v, 16) {
			rec.invalid("%s operand out of range -32768..32767: %s", op.String(), args[0])
			return
		}
		buf := make([]byte, 2)
		bincode.StoreInt16(buf, int32(v))
		finalize(rec, op, buf)

	case argI24:
		if len(args) != 1 {
			rec.missing("%s requires one integer operand", op.String())
			return
		}
		v, err := parseInt(args[0])
		if err != nil || !fitsSigned(v, 24) {
			rec.invalid("%s operand out of range -8388608..8388607: %s", op.String(), args[0])
			return
		}
		buf := make([]byte, 3)
		bincode.StoreInt24(buf, int32(v))
		finalize(rec, op, buf)

	case argI32:
		if len(args) != 1 {
			rec.missing("%s requires one integer operand", op.String())
			return
		}
		v, err := parseInt(args[0])
		if err != nil || !fitsSigned(v, 32) {
			rec.invalid("%s operand out of range for 32 bits: %s", op.String(), args[0])
			return
		}
		buf := make([]byte, 4)
		bincode.StoreInt32(buf, int32(v))
		finalize(rec, op, buf)

	case argF32:
		if len(args) != 1 {
			rec.missing("%s requires one float operand", op.String())
			return
		}
		f, err := parseFloat(args[0])
		if err != nil {
			rec.invalid("%s operand is not a float: %s", op.String(), args[0])
			return
		}
		buf := make([]byte, 4)
		bincode.StoreUint32(buf, uint32(bincode.Float32ToInt32(f)))
		finalize(rec, op, buf)

	case argNibblePair:
		if len(args) != 2 {
			rec.missing("%s requires two nibble operands 0..15", op.String())
			return
		}
		hi, errHi := parseInt(args[0])
		lo, errLo := parseInt(args[1])
		if errHi != nil || errLo != nil || !fitsUnsigned(hi, 4) || !fitsUnsigned(lo, 4) {
			rec.invalid("%s operands must be 0..15: %s %s", op.String(), args[0], args[1])
			return
		}
		finalize(rec, op, []byte{byte(hi<<4 | lo)})

	case argLabel2:
		if len(args) != 1 {
			rec.missing("%s requires a label operand", op.String())
			return
		}
		unresolved(rec, op, args[0], 2)

	case argLabel3Jump:
		if len(args) != 1 {
			rec.missing("%s requires a label operand", op.String())
			return
		}
		unresolved(rec, op, args[0], 3)

	case argLabel3Call:
		if len(args) != 1 {
			rec.missing("%s requires a label operand", op.String())
			return
		}
		unresolved(rec, op, args[0], 3)

	case argLabel4Call:
		if len(args) != 1 {
			rec.missing("%s requires a label operand", op.String())
			return
		}
		unresolved(rec, op, args[0], 4)

	case argTableShort:
		if len(args) != 0 {
			rec.invalid("%s takes no operand", op.String())
			return
		}
		rec.Op = op
		rec.Bin[0] = byte(op)
		rec.Count = 1
		rec.Size = op.Len()
		rec.Flags |= FlagFinalized

	case argTableLong:
		if len(args) != 0 {
			rec.invalid("%s takes no operand", op.String())
			return
		}
		rec.Op = op
		rec.Bin[0] = byte(op)
		rec.Count = 1
		rec.Size = op.Len()
		rec.Flags |= FlagFinalized
	}
}
