package asm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"evm/opcode"
)

func assembleSource(t *testing.T, lines ...string) *Assembler {
	t.Helper()
	a := New()
	for i, line := range lines {
		err := a.ParseLine("test.s", i+1, line)
		require.NoError(t, err)
	}
	return a
}

// TestEndToEndAssembly exercises scenario S1: a minimal program with
// one section assembles to the expected flat bytes.
func TestEndToEndAssembly(t *testing.T) {
	a := assembleSource(t,
		".name MAIN",
		".offset 0",
		"PUSH 2",
		"PUSH 3",
		"ADD",
		"HALT",
	)
	require.NoError(t, a.Validate())

	buf, err := a.ToBuffer()
	require.NoError(t, err)
	require.Equal(t, []byte{
		byte(opcode.Push8I), 2,
		byte(opcode.Push8I), 3,
		byte(opcode.AddI),
		byte(opcode.Halt),
	}, buf)
}

// TestPushWidthSelection exercises the PUSH meta-mnemonic's minimal-
// width encoding selection (§4.D), mirroring bincode.WidthOf.
func TestPushWidthSelection(t *testing.T) {
	cases := []struct {
		text    string
		wantOp  opcode.Code
		wantLen int
	}{
		{"PUSH -1", opcode.PushIn1, 1},
		{"PUSH 0", opcode.PushI0, 1},
		{"PUSH 1", opcode.PushI1, 1},
		{"PUSH 100", opcode.Push8I, 2},
		{"PUSH 1000", opcode.Push16I, 3},
		{"PUSH 100000", opcode.Push24I, 4},
		{"PUSH 100000000", opcode.Push32I, 5},
	}
	for _, c := range cases {
		a := assembleSource(t, ".name MAIN", ".offset 0", c.text, "HALT")
		require.NoError(t, a.Validate(), c.text)
		rec := a.Records()[2]
		require.Equal(t, c.wantOp, rec.Op, c.text)
		require.Equal(t, c.wantLen, rec.Size, c.text)
	}
}

// TestJumpEncodingSelection confirms the assembler picks the short
// jump form (2 bytes) for a nearby label.
func TestJumpEncodingSelection(t *testing.T) {
	a := assembleSource(t,
		".name MAIN",
		".offset 0",
		"JMP done",
		"done:",
		"HALT",
	)
	require.NoError(t, a.Validate())
	buf, err := a.ToBuffer()
	require.NoError(t, err)
	require.Equal(t, byte(opcode.Jmp), buf[0])
}

// TestShortJumpOutOfRange exercises scenario S4: a JMP target more
// than 127 bytes away must fail validation with ErrJumpOutOfRange.
func TestShortJumpOutOfRange(t *testing.T) {
	lines := []string{".name MAIN", ".offset 0", "JMP far"}
	for i := 0; i < 200; i++ {
		lines = append(lines, "NOP")
	}
	lines = append(lines, "far:", "HALT")

	a := assembleSource(t, lines...)
	err := a.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.True(t, ve.Has(ErrJumpOutOfRange))
}

func TestDuplicateLabelRejected(t *testing.T) {
	a := assembleSource(t,
		".name MAIN",
		".offset 0",
		"here:",
		"NOP",
		"here:",
		"HALT",
	)
	err := a.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.True(t, ve.Has(ErrDuplicateLabel))
}

func TestUnresolvedLabelRejected(t *testing.T) {
	a := assembleSource(t,
		".name MAIN",
		".offset 0",
		"JMP nowhere",
		"HALT",
	)
	err := a.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.True(t, ve.Has(ErrUnresolvedLabel))
}

func TestEmptyJumpTableRejected(t *testing.T) {
	a := assembleSource(t,
		".name MAIN",
		".offset 0",
		"PUSH_I0",
		"JTBL",
		"HALT",
	)
	err := a.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.True(t, ve.Has(ErrEmptyJumpTable))
}

// TestJumpTableAssembly exercises scenario S5: a populated JTBL
// with .addr entries assembles cleanly and each entry encodes a
// correct PC-relative delta.
func TestJumpTableAssembly(t *testing.T) {
	a := assembleSource(t,
		".name MAIN",
		".offset 0",
		"PUSH_I1",
		"JTBL",
		".addr a",
		".addr b",
		"a:",
		"HALT",
		"b:",
		"PUSH_8I 42",
		"HALT",
	)
	require.NoError(t, a.Validate())
	buf, err := a.ToBuffer()
	require.NoError(t, err)
	require.Equal(t, byte(opcode.Jtbl), buf[1])
	require.EqualValues(t, 1, buf[2]) // entries - 1
	// a: is at offset 5 and b: at offset 6; deltas are from JTBL at 1.
	require.Equal(t, []byte{4, 5}, buf[3:5])
}

func TestSectionOverlapRejected(t *testing.T) {
	a := assembleSource(t,
		".name A",
		".offset 0",
		"NOP",
		"NOP",
		"HALT",
		".name B",
		".offset 1",
		"HALT",
	)
	err := a.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.True(t, ve.Has(ErrSectionOverlap))
}

func TestProgramMustStartWithInstruction(t *testing.T) {
	a := assembleSource(t,
		".name MAIN",
		".offset 0",
		".db 1",
		"HALT",
	)
	err := a.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.True(t, ve.Has(ErrProgramStartsWithData))
}

func TestInstructionBeforeSectionRejected(t *testing.T) {
	a := assembleSource(t, "HALT")
	err := a.Validate()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.True(t, ve.Has(ErrInstrBeforeSection))
}

func TestToBufferBeforeValidateFails(t *testing.T) {
	a := New()
	_, err := a.ToBuffer()
	require.Error(t, err)
}

func TestUnknownMnemonicIsParseFailure(t *testing.T) {
	a := New()
	err := a.ParseLine("test.s", 1, "FROBNICATE 1 2 3")
	require.Error(t, err)
}

func TestCommentAndBlankLinesProduceNoRecord(t *testing.T) {
	a := New()
	require.NoError(t, a.ParseLine("test.s", 1, "   "))
	require.NoError(t, a.ParseLine("test.s", 2, "; just a comment"))
	require.Empty(t, a.Records())
}
