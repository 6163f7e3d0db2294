package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"evm/asm"
)

func assembleLines(t *testing.T, lines ...string) []byte {
	t.Helper()
	a := asm.New()
	for i, line := range lines {
		require.NoError(t, a.ParseLine("rt.s", i+1, line))
	}
	require.NoError(t, a.Validate())
	buf, err := a.ToBuffer()
	require.NoError(t, err)
	return buf
}

// TestDisassembleThenReassemble exercises the round-trip property from
// §8: disassembling a program and reassembling the result must
// reproduce the original bytes exactly.
func TestDisassembleThenReassemble(t *testing.T) {
	original := assembleLines(t,
		".name MAIN",
		".offset 0",
		"PUSH_I0",
		"CMP_I0",
		"JEQ done",
		"PUSH_I1",
		"HALT",
		"done:",
		"PUSH_8I 7",
		"HALT",
	)

	insts, err := Decode(original)
	require.NoError(t, err)
	source := ToFile(insts)

	a := asm.New()
	lineNum := 0
	for _, line := range splitLines(source) {
		lineNum++
		require.NoError(t, a.ParseLine("reassembled.s", lineNum, line))
	}
	require.NoError(t, a.Validate())
	reassembled, err := a.ToBuffer()
	require.NoError(t, err)

	require.Equal(t, original, reassembled)
}

// TestReassembleIsIdempotent exercises the assembler-idempotence
// property from §8: assembling the disassembly of an already-
// assembled program a second time yields byte-identical output.
func TestReassembleIsIdempotent(t *testing.T) {
	original := assembleLines(t,
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

	insts, err := Decode(original)
	require.NoError(t, err)
	firstPass := assembleFromSource(t, ToFile(insts))

	insts2, err := Decode(firstPass)
	require.NoError(t, err)
	secondPass := assembleFromSource(t, ToFile(insts2))

	require.Equal(t, firstPass, secondPass)
}

func assembleFromSource(t *testing.T, source []byte) []byte {
	t.Helper()
	a := asm.New()
	lineNum := 0
	for _, line := range splitLines(source) {
		lineNum++
		require.NoError(t, a.ParseLine("pass.s", lineNum, line))
	}
	require.NoError(t, a.Validate())
	buf, err := a.ToBuffer()
	require.NoError(t, err)
	return buf
}

func splitLines(buf []byte) []string {
	var lines []string
	start := 0
	for i, b := range buf {
		if b == '\n' {
			lines = append(lines, string(buf[start:i]))
			start = i + 1
		}
	}
	if start < len(buf) {
		lines = append(lines, string(buf[start:]))
	}
	return lines
}
