// Package disasm implements the eVM disassembler: a linear decoder
// that lifts a flat bytecode buffer back into an instruction list
// with resolved branch targets, plus a stringifier that renders that
// list as assembly source a reader (and the assembler) can consume.
package disasm

import (
	"fmt"

	"evm/bincode"
	"evm/opcode"
)

// Instruction is one decoded bytecode instruction: its offset in the
// source buffer, its opcode, a decoded operand, and (for branches and
// jump tables) the absolute offsets it may transfer control to.
type Instruction struct {
	Offset uint32
	Op     opcode.Code

	HasInt   bool
	IntVal   int32
	HasFloat bool
	FloatVal float32

	HasNibblePair bool
	NibbleHi      byte
	NibbleLo      byte

	// Targets holds the absolute byte offsets this instruction may
	// transfer control to: one entry for a plain branch or CALL/LCALL,
	// or one per jump-table entry for JTBL/LJTBL.
	Targets []uint32

	// Label is set during label reconstruction when some other
	// instruction's target equals this instruction's Offset.
	Label bool
}

// Decode performs fromBuffer: a single linear pass over program,
// producing one Instruction per opcode encountered and resolving
// every branch delta to an absolute offset. It fails on an unknown
// opcode byte or a truncated immediate/table.
func Decode(program []byte) ([]*Instruction, error) {
	var out []*Instruction
	offset := uint32(0)
	for int(offset) < len(program) {
		b := program[offset]
		op := opcode.Code(b)
		if !op.Valid() {
			return nil, fmt.Errorf("disasm: unknown opcode 0x%02X at offset %d", b, offset)
		}
		hlen := op.Len()
		if int(offset)+hlen > len(program) {
			return nil, fmt.Errorf("disasm: truncated instruction at offset %d", offset)
		}
		inst := &Instruction{Offset: offset, Op: op}
		body := program[offset+1 : offset+uint32(hlen)]
		consumed := hlen

		switch {
		case op == opcode.Bcall || op == opcode.RetI:
			inst.HasInt = true
			inst.IntVal = int32(body[0])

		case op == opcode.Push8I:
			inst.HasInt = true
			inst.IntVal = bincode.LoadInt8(body)

		case op == opcode.Push16I:
			inst.HasInt = true
			inst.IntVal = bincode.LoadInt16(body)

		case op == opcode.Push24I:
			inst.HasInt = true
			inst.IntVal = bincode.LoadInt24(body)

		case op == opcode.Push32I:
			inst.HasInt = true
			inst.IntVal = bincode.LoadInt32(body)

		case op == opcode.PushF:
			inst.HasFloat = true
			inst.FloatVal = bincode.Int32ToFloat32(int32(bincode.LoadUint32(body)))

		case op == opcode.RemR:
			inst.HasNibblePair = true
			inst.NibbleHi = body[0] >> 4
			inst.NibbleLo = body[0] & 0x0F

		case op == opcode.Call:
			delta := bincode.LoadInt16(body)
			inst.Targets = []uint32{uint32(int64(offset) + int64(delta))}

		case op == opcode.Lcall:
			delta := bincode.LoadInt24(body)
			inst.Targets = []uint32{uint32(int64(offset) + int64(delta))}

		case op.IsJump() && !op.IsTable():
			delta := bincode.LoadInt8(body)
			inst.Targets = []uint32{uint32(int64(offset) + int64(delta))}

		case op.IsLongJump() && !op.IsTable():
			delta := bincode.LoadInt16(body)
			inst.Targets = []uint32{uint32(int64(offset) + int64(delta))}

		case op == opcode.Jtbl:
			count := int(body[0]) + 1
			entriesStart := int(offset) + hlen
			if entriesStart+count > len(program) {
				return nil, fmt.Errorf("disasm: truncated jump table at offset %d", offset)
			}
			inst.Targets = make([]uint32, count)
			for i := 0; i < count; i++ {
				d := bincode.LoadInt8(program[entriesStart+i : entriesStart+i+1])
				inst.Targets[i] = uint32(int64(offset) + int64(d))
			}
			consumed += count

		case op == opcode.Ljtbl:
			count := int(bincode.LoadUint16(body)) + 1
			entriesStart := int(offset) + hlen
			need := count * 2
			if entriesStart+need > len(program) {
				return nil, fmt.Errorf("disasm: truncated jump table at offset %d", offset)
			}
			inst.Targets = make([]uint32, count)
			for i := 0; i < count; i++ {
				pos := entriesStart + i*2
				d := bincode.LoadInt16(program[pos : pos+2])
				inst.Targets[i] = uint32(int64(offset) + int64(d))
			}
			consumed += need
		}

		out = append(out, inst)
		offset += uint32(consumed)
	}
	if err := resolveLabels(out, len(program)); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveLabels implements label reconstruction: every target named
// by any instruction must land exactly on another instruction's
// offset, which is then marked as a label.
func resolveLabels(insts []*Instruction, programLen int) error {
	byOffset := make(map[uint32]*Instruction, len(insts))
	for _, inst := range insts {
		byOffset[inst.Offset] = inst
	}
	for _, inst := range insts {
		for _, target := range inst.Targets {
			if int(target) == programLen {
				// A branch to one past the end of the program is
				// legal (e.g. falling off the implicit HALT
				// terminator) but has nothing to label.
				continue
			}
			dest, ok := byOffset[target]
			if !ok {
				return fmt.Errorf("disasm: instruction at offset %d targets %d, which is not an instruction boundary", inst.Offset, target)
			}
			dest.Label = true
		}
	}
	return nil
}
