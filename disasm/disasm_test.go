package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"evm/opcode"
)

func TestDecodeImmediateForms(t *testing.T) {
	prog := []byte{
		byte(opcode.Push8I), 0xFE, // -2
		byte(opcode.Push16I), 0x00, 0x01, // 256
		byte(opcode.RemR), 0x12, // hi=1 lo=2
		byte(opcode.Halt),
	}
	insts, err := Decode(prog)
	require.NoError(t, err)
	require.Len(t, insts, 4)

	require.True(t, insts[0].HasInt)
	require.EqualValues(t, -2, insts[0].IntVal)

	require.True(t, insts[1].HasInt)
	require.EqualValues(t, 256, insts[1].IntVal)

	require.True(t, insts[2].HasNibblePair)
	require.EqualValues(t, 1, insts[2].NibbleHi)
	require.EqualValues(t, 2, insts[2].NibbleLo)

	require.Equal(t, opcode.Halt, insts[3].Op)
}

func TestDecodeResolvesBranchTargetAndLabel(t *testing.T) {
	prog := []byte{
		byte(opcode.Jmp), 2, // offset 0, targets offset 2
		byte(opcode.Halt), // offset 2
	}
	insts, err := Decode(prog)
	require.NoError(t, err)
	require.Len(t, insts, 2)

	require.Equal(t, []uint32{2}, insts[0].Targets)
	require.False(t, insts[0].Label)
	require.True(t, insts[1].Label)
}

func TestDecodeBranchToEndOfProgramIsLegal(t *testing.T) {
	prog := []byte{byte(opcode.Jmp), 2}
	insts, err := Decode(prog)
	require.NoError(t, err)
	require.Len(t, insts, 1)
	require.Equal(t, []uint32{2}, insts[0].Targets)
}

func TestDecodeBranchOffBoundaryFails(t *testing.T) {
	prog := []byte{
		byte(opcode.Jmp), 1, // targets offset 1, mid-instruction
		byte(opcode.Halt),
	}
	_, err := Decode(prog)
	require.Error(t, err)
}

func TestDecodeUnknownOpcodeFails(t *testing.T) {
	_, err := Decode([]byte{0x61})
	require.Error(t, err)
}

func TestDecodeTruncatedInstructionFails(t *testing.T) {
	_, err := Decode([]byte{byte(opcode.Push32I), 1, 2})
	require.Error(t, err)
}

// TestDecodeJumpTable exercises scenario S5's decode side: a JTBL
// with a 1-byte count header and three 1-byte entries.
func TestDecodeJumpTable(t *testing.T) {
	prog := []byte{
		byte(opcode.PushI1),
		byte(opcode.Jtbl), 2, // entries = 3
		5, 6, 7, // deltas from the JTBL opcode's own offset (1) to the HALTs
		byte(opcode.Halt),
		byte(opcode.Halt),
		byte(opcode.Halt),
	}
	insts, err := Decode(prog)
	require.NoError(t, err)

	var tbl *Instruction
	for _, inst := range insts {
		if inst.Op == opcode.Jtbl {
			tbl = inst
		}
	}
	require.NotNil(t, tbl)
	require.Equal(t, []uint32{6, 7, 8}, tbl.Targets)
}

func TestDecodeTruncatedJumpTableFails(t *testing.T) {
	prog := []byte{byte(opcode.Jtbl), 2, 1}
	_, err := Decode(prog)
	require.Error(t, err)
}
