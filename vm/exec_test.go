package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"evm/opcode"
)

func newTestVM(t *testing.T, stack uint16) *VM {
	t.Helper()
	m, err := New(stack)
	require.NoError(t, err)
	return m
}

// TestArithmeticAndHalt exercises scenario S1: PUSH 2, PUSH 3, ADD, HALT.
func TestArithmeticAndHalt(t *testing.T) {
	m := newTestVM(t, 16)
	m.SetProgram([]byte{
		byte(opcode.Push8I), 2,
		byte(opcode.Push8I), 3,
		byte(opcode.AddI),
		byte(opcode.Halt),
	})

	halted, err := m.Run(100)
	require.NoError(t, err)
	require.True(t, halted)
	require.True(t, m.Halted())
	require.EqualValues(t, 1, m.Depth())

	top, err := m.TopInt(0)
	require.NoError(t, err)
	require.EqualValues(t, 5, top)
}

// TestBranch exercises scenario S2: CMP_I0 after PUSH_I0, conditional JEQ.
func TestBranch(t *testing.T) {
	m := newTestVM(t, 16)
	// PUSH_I0; CMP_I0; JEQ done(+4); PUSH_I1; HALT; done: PUSH_8I 7; HALT
	prog := []byte{
		byte(opcode.PushI0),
		byte(opcode.CmpI0),
		byte(opcode.Jeq), 4,
		byte(opcode.PushI1),
		byte(opcode.Halt),
		byte(opcode.Push8I), 7,
		byte(opcode.Halt),
	}
	m.SetProgram(prog)

	halted, err := m.Run(100)
	require.NoError(t, err)
	require.True(t, halted)
	// CMP_I0 does not pop, so PUSH_I0's 0 stays below the 7.
	require.EqualValues(t, 2, m.Depth())

	top, err := m.TopInt(0)
	require.NoError(t, err)
	require.EqualValues(t, 7, top)
}

// TestFunctionCall exercises scenario S3 with a far LCALL target,
// pinning the open question in §9 to PC-relative addressing.
func TestFunctionCall(t *testing.T) {
	m := newTestVM(t, 16)
	// NOP; LCALL f (delta computed below); HALT; HALT padding;
	// f: PUSH_8I 9; RET_1 (return address sits below the result).
	// The LCALL is not at offset 0, so reading its immediate as an
	// absolute offset would land on the padding and halt with the
	// return address, not 9, on top.
	prog := make([]byte, 0, 128)
	prog = append(prog, byte(opcode.Nop))
	callOffset := len(prog)
	prog = append(prog, byte(opcode.Lcall), 0, 0, 0) // placeholder delta
	prog = append(prog, byte(opcode.Halt))
	for i := 0; i < 40; i++ {
		prog = append(prog, byte(opcode.Halt))
	}
	fOffset := len(prog)
	prog = append(prog, byte(opcode.Push8I), 9, byte(opcode.Ret1))

	delta := fOffset - callOffset
	prog[callOffset+1] = byte(delta)
	prog[callOffset+2] = byte(delta >> 8)
	prog[callOffset+3] = byte(delta >> 16)

	m.SetProgram(prog)
	halted, err := m.Run(1000)
	require.NoError(t, err)
	require.True(t, halted)
	require.EqualValues(t, 1, m.Depth())

	top, err := m.TopInt(0)
	require.NoError(t, err)
	require.EqualValues(t, 9, top)
}

// TestJumpTable exercises scenario S5.
func TestJumpTable(t *testing.T) {
	m := newTestVM(t, 16)
	// PUSH_I1; JTBL count=2(entries=3); addr(a) addr(b) addr(c)
	// a: HALT
	// b: PUSH_8I 42; HALT
	// c: HALT
	header := []byte{byte(opcode.PushI1), byte(opcode.Jtbl), 2}
	tableIP := 1 // offset of JTBL opcode
	aOff := len(header) + 3
	bOff := aOff + 1
	cOff := bOff + 3

	prog := make([]byte, 0, 32)
	prog = append(prog, header...)
	prog = append(prog, byte(int8(aOff-tableIP)), byte(int8(bOff-tableIP)), byte(int8(cOff-tableIP)))
	prog = append(prog, byte(opcode.Halt))           // a
	prog = append(prog, byte(opcode.Push8I), 42, byte(opcode.Halt)) // b
	prog = append(prog, byte(opcode.Halt))           // c

	m.SetProgram(prog)
	halted, err := m.Run(1000)
	require.NoError(t, err)
	require.True(t, halted)

	top, err := m.TopInt(0)
	require.NoError(t, err)
	require.EqualValues(t, 42, top)
}

// TestStepBudgetResumes verifies invariant 7: a run() call that
// exhausts its budget without HALT/YIELD can be resumed by a
// subsequent call with identical semantics.
func TestStepBudgetResumes(t *testing.T) {
	m := newTestVM(t, 16)
	m.SetProgram([]byte{
		byte(opcode.Push8I), 2,
		byte(opcode.Push8I), 3,
		byte(opcode.AddI),
		byte(opcode.Halt),
	})

	halted, err := m.Run(2)
	require.NoError(t, err)
	require.False(t, halted)
	require.False(t, m.Halted())

	halted, err = m.Run(100)
	require.NoError(t, err)
	require.True(t, halted)

	top, err := m.TopInt(0)
	require.NoError(t, err)
	require.EqualValues(t, 5, top)
}

// TestHaltedIsSticky verifies invariant 1: HALTED persists across
// subsequent run calls until SetProgram.
func TestHaltedIsSticky(t *testing.T) {
	m := newTestVM(t, 16)
	m.SetProgram([]byte{byte(opcode.Halt)})

	halted, err := m.Run(10)
	require.NoError(t, err)
	require.True(t, halted)

	halted, err = m.Run(10)
	require.NoError(t, err)
	require.True(t, halted)
	require.True(t, m.Halted())

	m.SetProgram([]byte{byte(opcode.Halt)})
	require.False(t, m.Halted())
}

func TestStackUnderflowFaults(t *testing.T) {
	m := newTestVM(t, 16)
	m.SetProgram([]byte{byte(opcode.AddI)})

	halted, err := m.Run(10)
	require.Error(t, err)
	require.True(t, halted)
	require.True(t, m.Halted())
	require.True(t, IsStackUnderflow(err))
}

func TestStackOverflowFaults(t *testing.T) {
	m := newTestVM(t, 1)
	m.SetProgram([]byte{
		byte(opcode.PushI0),
		byte(opcode.PushI0),
	})

	halted, err := m.Run(10)
	require.Error(t, err)
	require.True(t, halted)
	require.True(t, IsStackOverflow(err))
}

func TestUnboundBuiltinReturnsZero(t *testing.T) {
	m := newTestVM(t, 16)
	m.SetProgram([]byte{byte(opcode.Bcall), 0, byte(opcode.Halt)})

	halted, err := m.Run(10)
	require.NoError(t, err)
	require.True(t, halted)

	top, err := m.TopInt(0)
	require.NoError(t, err)
	require.EqualValues(t, 0, top)
}

func TestBoundBuiltinInvoked(t *testing.T) {
	m := newTestVM(t, 16)
	require.NoError(t, m.BindBuiltin(0, func(vm *VM) int32 { return 7 }))
	m.SetProgram([]byte{byte(opcode.Bcall), 0, byte(opcode.Halt)})

	halted, err := m.Run(10)
	require.NoError(t, err)
	require.True(t, halted)

	top, err := m.TopInt(0)
	require.NoError(t, err)
	require.EqualValues(t, 7, top)
}
