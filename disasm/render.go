package disasm

import (
	"fmt"
	"strings"

	"evm/opcode"
)

// labelName formats an absolute byte offset as the disassembler's
// canonical label name.
func labelName(offset uint32) string {
	return fmt.Sprintf("LAB_%06X", offset)
}

// ToBuffer renders a decoded instruction list as eVM assembly source,
// per §4.F: a single MAIN section header, then one block per
// instruction — a label line when targeted, the mnemonic line, and
// (for jump tables) one `.addr` line per table entry. Every mnemonic
// emitted is a direct, literal opcode-table name with no
// encoding-selection sugar, so the result round-trips byte-for-byte
// through the assembler, except that PUSH_F operands are printed with
// %f (six decimal places) and reassemble to the same bits only when
// that text still names the same float32.
func ToBuffer(insts []*Instruction) []byte {
	var b strings.Builder
	b.WriteString(".name MAIN\n.offset 0\n\n")
	for _, inst := range insts {
		if inst.Label {
			fmt.Fprintf(&b, "\n%s:\n", labelName(inst.Offset))
		}
		switch {
		case inst.Op == opcode.Jtbl, inst.Op == opcode.Ljtbl:
			fmt.Fprintf(&b, "    %s\n", inst.Op.String())
			for _, target := range inst.Targets {
				fmt.Fprintf(&b, "    .addr %s\n", labelName(target))
			}

		case len(inst.Targets) == 1:
			fmt.Fprintf(&b, "    %s %s\n", inst.Op.String(), labelName(inst.Targets[0]))

		case inst.HasInt:
			fmt.Fprintf(&b, "    %s %d\n", inst.Op.String(), inst.IntVal)

		case inst.HasFloat:
			fmt.Fprintf(&b, "    %s %f\n", inst.Op.String(), inst.FloatVal)

		case inst.HasNibblePair:
			fmt.Fprintf(&b, "    %s %d %d\n", inst.Op.String(), inst.NibbleHi, inst.NibbleLo)

		default:
			fmt.Fprintf(&b, "    %s\n", inst.Op.String())
		}
	}
	return []byte(b.String())
}

// ToFile is ToBuffer with a trailing newline, matching the line-
// oriented source format a file on disk is expected to end with.
func ToFile(insts []*Instruction) []byte {
	buf := ToBuffer(insts)
	if len(buf) == 0 || buf[len(buf)-1] != '\n' {
		buf = append(buf, '\n')
	}
	return buf
}
