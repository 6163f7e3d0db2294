package asm

import (
	"math"

	"evm/bincode"
	"evm/opcode"
)

// niceSerializer is a meta-mnemonic that performs encoding selection
// before delegating to finalize/unresolved, e.g. picking PUSH_I1 vs
// PUSH_8I for `PUSH 1` vs `PUSH 200`. Unlike serializeDirect's forms,
// these names are not themselves opcode-table mnemonics.
type niceSerializer func(rec *Record, args []string)

var niceMnemonics = map[string]niceSerializer{
	"PUSH":  nicePush,
	"PUSHF": nicePushF,
	"POP":   nicePop,
	"DUP":   niceDup,
	"RET":   niceRet,
	"REM":   niceRem,
	"CMP":   niceCmp,
	"CMPF":  niceCmpF,
	"CNVFI": niceCnvFI,
	"CNVIF": niceCnvIF,
}

func nicePush(rec *Record, args []string) {
	if len(args) != 1 {
		rec.missing("PUSH requires one integer operand")
		return
	}
	v, err := parseInt(args[0])
	if err != nil || v < math.MinInt32 || v > math.MaxInt32 {
		rec.invalid("PUSH operand out of 32-bit range: %s", args[0])
		return
	}
	switch v {
	case -1:
		finalize(rec, opcode.PushIn1, nil)
	case 0:
		finalize(rec, opcode.PushI0, nil)
	case 1:
		finalize(rec, opcode.PushI1, nil)
	default:
		n := int32(v)
		switch bincode.WidthOf(n) {
		case 1:
			buf := make([]byte, 1)
			bincode.StoreInt8(buf, n)
			finalize(rec, opcode.Push8I, buf)
		case 2:
			buf := make([]byte, 2)
			bincode.StoreInt16(buf, n)
			finalize(rec, opcode.Push16I, buf)
		case 3:
			buf := make([]byte, 3)
			bincode.StoreInt24(buf, n)
			finalize(rec, opcode.Push24I, buf)
		default:
			buf := make([]byte, 4)
			bincode.StoreInt32(buf, n)
			finalize(rec, opcode.Push32I, buf)
		}
	}
}

func nicePushF(rec *Record, args []string) {
	if len(args) != 1 {
		rec.missing("PUSHF requires one float operand")
		return
	}
	f, err := parseFloat(args[0])
	if err != nil {
		rec.invalid("PUSHF operand is not a float: %s", args[0])
		return
	}
	switch math.Float32bits(f) {
	case math.Float32bits(-1):
		finalize(rec, opcode.PushFn1, nil)
	case math.Float32bits(0):
		finalize(rec, opcode.PushF0, nil)
	case math.Float32bits(1):
		finalize(rec, opcode.PushF1, nil)
	default:
		buf := make([]byte, 4)
		bincode.StoreUint32(buf, math.Float32bits(f))
		finalize(rec, opcode.PushF, buf)
	}
}

func nicePop(rec *Record, args []string) {
	if len(args) != 1 {
		rec.missing("POP requires one integer operand in 1..8")
		return
	}
	v, err := parseInt(args[0])
	if err != nil || v < 1 || v > 8 {
		rec.invalid("POP operand out of range 1..8: %s", args[0])
		return
	}
	finalize(rec, opcode.FamPop|opcode.Code(v-1), nil)
}

func niceDup(rec *Record, args []string) {
	if len(args) != 1 {
		rec.missing("DUP requires one integer operand in 1..16")
		return
	}
	v, err := parseInt(args[0])
	if err != nil || v < 1 || v > 16 {
		rec.invalid("DUP operand out of range 1..16: %s", args[0])
		return
	}
	finalize(rec, opcode.FamDup|opcode.Code(v-1), nil)
}

func niceRet(rec *Record, args []string) {
	v := int64(0)
	if len(args) == 1 {
		var err error
		v, err = parseInt(args[0])
		if err != nil || v < 0 {
			rec.invalid("RET operand must be a non-negative integer: %s", args[0])
			return
		}
	} else if len(args) > 1 {
		rec.invalid("RET takes at most one operand")
		return
	}
	switch {
	case v == 0:
		finalize(rec, opcode.Ret, nil)
	case v <= 14:
		finalize(rec, opcode.FamRet|opcode.Code(v), nil)
	case v <= 255:
		finalize(rec, opcode.RetI, []byte{byte(v)})
	default:
		rec.invalid("RET depth too large: %s", args[0])
	}
}

func niceRem(rec *Record, args []string) {
	if len(args) != 2 {
		rec.missing("REM requires depth and count operands, both 1..16")
		return
	}
	d, errD := parseInt(args[0])
	c, errC := parseInt(args[1])
	if errD != nil || errC != nil || d < 1 || d > 16 || c < 1 || c > 16 {
		rec.invalid("REM operands must be 1..16: %s %s", args[0], args[1])
		return
	}
	if c == 1 && d < 8 {
		finalize(rec, opcode.FamPop|opcode.Code(0x07+d), nil)
		return
	}
	finalize(rec, opcode.RemR, []byte{byte((d-1)<<4 | (c - 1))})
}

func niceCmp(rec *Record, args []string) {
	if len(args) == 0 {
		finalize(rec, opcode.CmpI, nil)
		return
	}
	if len(args) != 1 {
		rec.invalid("CMP takes at most one operand")
		return
	}
	v, err := parseInt(args[0])
	if err != nil {
		rec.invalid("CMP operand is not an integer: %s", args[0])
		return
	}
	switch v {
	case -1:
		finalize(rec, opcode.CmpIn1, nil)
	case 0:
		finalize(rec, opcode.CmpI0, nil)
	case 1:
		finalize(rec, opcode.CmpI1, nil)
	default:
		rec.invalid("CMP operand must be -1, 0 or 1: %s", args[0])
	}
}

func niceCmpF(rec *Record, args []string) {
	if len(args) == 0 {
		finalize(rec, opcode.CmpF, nil)
		return
	}
	if len(args) != 1 {
		rec.invalid("CMPF takes at most one operand")
		return
	}
	f, err := parseFloat(args[0])
	if err != nil {
		rec.invalid("CMPF operand is not a float: %s", args[0])
		return
	}
	switch math.Float32bits(f) {
	case math.Float32bits(-1):
		finalize(rec, opcode.CmpFn1, nil)
	case math.Float32bits(0):
		finalize(rec, opcode.CmpF0, nil)
	case math.Float32bits(1):
		finalize(rec, opcode.CmpF1, nil)
	default:
		rec.invalid("CMPF operand must be -1.0, 0.0 or 1.0: %s", args[0])
	}
}

func niceCnvFI(rec *Record, args []string) {
	if len(args) != 1 {
		rec.missing("CNVFI requires one operand, 0 or 1")
		return
	}
	v, err := parseInt(args[0])
	if err != nil || (v != 0 && v != 1) {
		rec.invalid("CNVFI operand must be 0 or 1: %s", args[0])
		return
	}
	if v == 0 {
		finalize(rec, opcode.ConvFI, nil)
	} else {
		finalize(rec, opcode.ConvFI1, nil)
	}
}

func niceCnvIF(rec *Record, args []string) {
	if len(args) != 1 {
		rec.missing("CNVIF requires one operand, 0 or 1")
		return
	}
	v, err := parseInt(args[0])
	if err != nil || (v != 0 && v != 1) {
		rec.invalid("CNVIF operand must be 0 or 1: %s", args[0])
		return
	}
	if v == 0 {
		finalize(rec, opcode.ConvIF, nil)
	} else {
		finalize(rec, opcode.ConvIF1, nil)
	}
}
