// Package opcode defines the eVM instruction set: the 256-slot opcode
// space, per-opcode mnemonics, and the encoded length of each
// instruction. The interpreter, assembler, and disassembler all build
// on this single table so the three tools can never disagree about
// what a byte means.
package opcode

// Code identifies a single eVM opcode. The high nibble selects the
// instruction family; the low nibble selects the operation within
// that family.
type Code byte

// Instruction families. The high nibble of every opcode falls into
// one of these bands. 0x60-0xC0 is reserved for future expansion and
// currently decodes as illegal.
const (
	FamCall Code = 0x00
	FamPush Code = 0x10
	FamPop  Code = 0x20
	FamDup  Code = 0x30
	FamMath Code = 0x40
	FamBits Code = 0x50
	FamCmp  Code = 0xD0
	FamJmp  Code = 0xE0
	FamRet  Code = 0xF0
)

// Family returns the instruction family a code belongs to.
func (c Code) Family() Code {
	return c & 0xF0
}

const (
	Nop   Code = FamCall | 0x00
	Call  Code = FamCall | 0x01
	Lcall Code = FamCall | 0x02
	Bcall Code = FamCall | 0x03
	Yield Code = FamCall | 0x0E
	Halt  Code = FamCall | 0x0F

	PushI0  Code = FamPush | 0x00
	PushI1  Code = FamPush | 0x01
	PushIn1 Code = FamPush | 0x02
	Push8I  Code = FamPush | 0x03
	Push16I Code = FamPush | 0x04
	Push24I Code = FamPush | 0x05
	Push32I Code = FamPush | 0x06
	PushF0  Code = FamPush | 0x07
	PushF1  Code = FamPush | 0x08
	PushFn1 Code = FamPush | 0x09
	PushF   Code = FamPush | 0x0A
	Swap    Code = FamPush | 0x0F

	Pop1 Code = FamPop | 0x00
	Pop2 Code = FamPop | 0x01
	Pop3 Code = FamPop | 0x02
	Pop4 Code = FamPop | 0x03
	Pop5 Code = FamPop | 0x04
	Pop6 Code = FamPop | 0x05
	Pop7 Code = FamPop | 0x06
	Pop8 Code = FamPop | 0x07
	Rem1 Code = FamPop | 0x08
	Rem2 Code = FamPop | 0x09
	Rem3 Code = FamPop | 0x0A
	Rem4 Code = FamPop | 0x0B
	Rem5 Code = FamPop | 0x0C
	Rem6 Code = FamPop | 0x0D
	Rem7 Code = FamPop | 0x0E
	RemR Code = FamPop | 0x0F

	Dup0  Code = FamDup | 0x00
	Dup1  Code = FamDup | 0x01
	Dup2  Code = FamDup | 0x02
	Dup3  Code = FamDup | 0x03
	Dup4  Code = FamDup | 0x04
	Dup5  Code = FamDup | 0x05
	Dup6  Code = FamDup | 0x06
	Dup7  Code = FamDup | 0x07
	Dup8  Code = FamDup | 0x08
	Dup9  Code = FamDup | 0x09
	Dup10 Code = FamDup | 0x0A
	Dup11 Code = FamDup | 0x0B
	Dup12 Code = FamDup | 0x0C
	Dup13 Code = FamDup | 0x0D
	Dup14 Code = FamDup | 0x0E
	Dup15 Code = FamDup | 0x0F

	IncI Code = FamMath | 0x00
	DecI Code = FamMath | 0x01
	AbsI Code = FamMath | 0x02
	NegI Code = FamMath | 0x03
	AddI Code = FamMath | 0x04
	SubI Code = FamMath | 0x05
	MulI Code = FamMath | 0x06
	DivI Code = FamMath | 0x07
	IncF Code = FamMath | 0x08
	DecF Code = FamMath | 0x09
	AbsF Code = FamMath | 0x0A
	NegF Code = FamMath | 0x0B
	AddF Code = FamMath | 0x0C
	SubF Code = FamMath | 0x0D
	MulF Code = FamMath | 0x0E
	DivF Code = FamMath | 0x0F

	Lsh     Code = FamBits | 0x00
	Rsh     Code = FamBits | 0x01
	And     Code = FamBits | 0x02
	Or      Code = FamBits | 0x03
	Xor     Code = FamBits | 0x04
	Inv     Code = FamBits | 0x05
	Bool    Code = FamBits | 0x06
	Not     Code = FamBits | 0x07
	ConvFI  Code = FamBits | 0x08
	ConvFI1 Code = FamBits | 0x09
	ConvIF  Code = FamBits | 0x0A
	ConvIF1 Code = FamBits | 0x0B

	CmpI0  Code = FamCmp | 0x00
	CmpI1  Code = FamCmp | 0x01
	CmpIn1 Code = FamCmp | 0x02
	CmpI   Code = FamCmp | 0x03
	CmpF0  Code = FamCmp | 0x04
	CmpF1  Code = FamCmp | 0x05
	CmpFn1 Code = FamCmp | 0x06
	CmpF   Code = FamCmp | 0x07

	Jmp   Code = FamJmp | 0x00
	Jlt   Code = FamJmp | 0x01
	Jle   Code = FamJmp | 0x02
	Jne   Code = FamJmp | 0x03
	Jeq   Code = FamJmp | 0x04
	Jge   Code = FamJmp | 0x05
	Jgt   Code = FamJmp | 0x06
	Jtbl  Code = FamJmp | 0x07
	Ljmp  Code = FamJmp | 0x08
	Ljlt  Code = FamJmp | 0x09
	Ljle  Code = FamJmp | 0x0A
	Ljne  Code = FamJmp | 0x0B
	Ljeq  Code = FamJmp | 0x0C
	Ljge  Code = FamJmp | 0x0D
	Ljgt  Code = FamJmp | 0x0E
	Ljtbl Code = FamJmp | 0x0F

	Ret   Code = FamRet | 0x00
	Ret1  Code = FamRet | 0x01
	Ret2  Code = FamRet | 0x02
	Ret3  Code = FamRet | 0x03
	Ret4  Code = FamRet | 0x04
	Ret5  Code = FamRet | 0x05
	Ret6  Code = FamRet | 0x06
	Ret7  Code = FamRet | 0x07
	Ret8  Code = FamRet | 0x08
	Ret9  Code = FamRet | 0x09
	Ret10 Code = FamRet | 0x0A
	Ret11 Code = FamRet | 0x0B
	Ret12 Code = FamRet | 0x0C
	Ret13 Code = FamRet | 0x0D
	Ret14 Code = FamRet | 0x0E
	RetI  Code = FamRet | 0x0F
)

// mnemonic and length are indexed by opcode byte value; a zero length
// entry marks a byte that does not decode to a legal opcode.
var mnemonic [256]string
var length [256]int

func reg(c Code, name string, n int) {
	mnemonic[byte(c)] = name
	length[byte(c)] = n
}

func init() {
	reg(Nop, "NOP", 1)
	reg(Call, "CALL", 3)
	reg(Lcall, "LCALL", 4)
	reg(Bcall, "BCALL", 2)
	reg(Yield, "YIELD", 1)
	reg(Halt, "HALT", 1)

	reg(PushI0, "PUSH_I0", 1)
	reg(PushI1, "PUSH_I1", 1)
	reg(PushIn1, "PUSH_IN1", 1)
	reg(Push8I, "PUSH_8I", 2)
	reg(Push16I, "PUSH_16I", 3)
	reg(Push24I, "PUSH_24I", 4)
	reg(Push32I, "PUSH_32I", 5)
	reg(PushF0, "PUSH_F0", 1)
	reg(PushF1, "PUSH_F1", 1)
	reg(PushFn1, "PUSH_FN1", 1)
	reg(PushF, "PUSH_F", 5)
	reg(Swap, "SWAP", 1)

	reg(Pop1, "POP_1", 1)
	reg(Pop2, "POP_2", 1)
	reg(Pop3, "POP_3", 1)
	reg(Pop4, "POP_4", 1)
	reg(Pop5, "POP_5", 1)
	reg(Pop6, "POP_6", 1)
	reg(Pop7, "POP_7", 1)
	reg(Pop8, "POP_8", 1)
	reg(Rem1, "REM_1", 1)
	reg(Rem2, "REM_2", 1)
	reg(Rem3, "REM_3", 1)
	reg(Rem4, "REM_4", 1)
	reg(Rem5, "REM_5", 1)
	reg(Rem6, "REM_6", 1)
	reg(Rem7, "REM_7", 1)
	reg(RemR, "REM_R", 2)

	reg(Dup0, "DUP_0", 1)
	reg(Dup1, "DUP_1", 1)
	reg(Dup2, "DUP_2", 1)
	reg(Dup3, "DUP_3", 1)
	reg(Dup4, "DUP_4", 1)
	reg(Dup5, "DUP_5", 1)
	reg(Dup6, "DUP_6", 1)
	reg(Dup7, "DUP_7", 1)
	reg(Dup8, "DUP_8", 1)
	reg(Dup9, "DUP_9", 1)
	reg(Dup10, "DUP_10", 1)
	reg(Dup11, "DUP_11", 1)
	reg(Dup12, "DUP_12", 1)
	reg(Dup13, "DUP_13", 1)
	reg(Dup14, "DUP_14", 1)
	reg(Dup15, "DUP_15", 1)

	reg(IncI, "INC", 1)
	reg(DecI, "DEC", 1)
	reg(AbsI, "ABS", 1)
	reg(NegI, "NEG", 1)
	reg(AddI, "ADD", 1)
	reg(SubI, "SUB", 1)
	reg(MulI, "MUL", 1)
	reg(DivI, "DIV", 1)
	reg(IncF, "INCF", 1)
	reg(DecF, "DECF", 1)
	reg(AbsF, "ABSF", 1)
	reg(NegF, "NEGF", 1)
	reg(AddF, "ADDF", 1)
	reg(SubF, "SUBF", 1)
	reg(MulF, "MULF", 1)
	reg(DivF, "DIVF", 1)

	reg(Lsh, "LSH", 1)
	reg(Rsh, "RSH", 1)
	reg(And, "AND", 1)
	reg(Or, "OR", 1)
	reg(Xor, "XOR", 1)
	reg(Inv, "INV", 1)
	reg(Bool, "BOOL", 1)
	reg(Not, "NOT", 1)
	reg(ConvFI, "CONV_FI", 1)
	reg(ConvFI1, "CONV_FI_1", 1)
	reg(ConvIF, "CONV_IF", 1)
	reg(ConvIF1, "CONV_IF_1", 1)

	reg(CmpI0, "CMP_I0", 1)
	reg(CmpI1, "CMP_I1", 1)
	reg(CmpIn1, "CMP_IN1", 1)
	reg(CmpI, "CMP_I", 1)
	reg(CmpF0, "CMP_F0", 1)
	reg(CmpF1, "CMP_F1", 1)
	reg(CmpFn1, "CMP_FN1", 1)
	reg(CmpF, "CMP_F", 1)

	reg(Jmp, "JMP", 2)
	reg(Jlt, "JLT", 2)
	reg(Jle, "JLE", 2)
	reg(Jne, "JNE", 2)
	reg(Jeq, "JEQ", 2)
	reg(Jge, "JGE", 2)
	reg(Jgt, "JGT", 2)
	reg(Jtbl, "JTBL", 2)
	reg(Ljmp, "LJMP", 3)
	reg(Ljlt, "LJLT", 3)
	reg(Ljle, "LJLE", 3)
	reg(Ljne, "LJNE", 3)
	reg(Ljeq, "LJEQ", 3)
	reg(Ljge, "LJGE", 3)
	reg(Ljgt, "LJGT", 3)
	reg(Ljtbl, "LJTBL", 3)

	reg(Ret, "RET", 1)
	reg(Ret1, "RET_1", 1)
	reg(Ret2, "RET_2", 1)
	reg(Ret3, "RET_3", 1)
	reg(Ret4, "RET_4", 1)
	reg(Ret5, "RET_5", 1)
	reg(Ret6, "RET_6", 1)
	reg(Ret7, "RET_7", 1)
	reg(Ret8, "RET_8", 1)
	reg(Ret9, "RET_9", 1)
	reg(Ret10, "RET_10", 1)
	reg(Ret11, "RET_11", 1)
	reg(Ret12, "RET_12", 1)
	reg(Ret13, "RET_13", 1)
	reg(Ret14, "RET_14", 1)
	reg(RetI, "RET_I", 2)

	byMnemonic = make(map[string]Code, len(mnemonic))
	for b, name := range mnemonic {
		if name != "" {
			byMnemonic[name] = Code(b)
		}
	}
}

var byMnemonic map[string]Code

// String returns the assembly mnemonic for c, or "???" if c does not
// decode to a legal opcode.
func (c Code) String() string {
	if m := mnemonic[byte(c)]; m != "" {
		return m
	}
	return "???"
}

// Valid reports whether c names a real instruction.
func (c Code) Valid() bool {
	return mnemonic[byte(c)] != ""
}

// Len returns the total encoded length of an instruction with opcode
// c, including the opcode byte itself. Returns 0 for an invalid
// opcode.
func (c Code) Len() int {
	return length[byte(c)]
}

// Lookup resolves a mnemonic (e.g. "ADD") to its Code. The second
// return value is false when the mnemonic is unrecognized.
func Lookup(name string) (Code, bool) {
	c, ok := byMnemonic[name]
	return c, ok
}

// IsJump reports whether c is one of the short jump family members
// (JMP..JTBL); the plain branches among them take an 8-bit signed
// delta.
func (c Code) IsJump() bool {
	return c.Family() == FamJmp && c&0x08 == 0
}

// IsLongJump reports whether c is one of the long jump family members
// (LJMP..LJTBL); the plain branches among them take a 16-bit signed
// delta.
func (c Code) IsLongJump() bool {
	return c.Family() == FamJmp && c&0x08 != 0
}

// IsTable reports whether c is a jump-table dispatch opcode (JTBL or
// LJTBL), which is followed by a table of jump targets rather than a
// single delta.
func (c Code) IsTable() bool {
	return c == Jtbl || c == Ljtbl
}
