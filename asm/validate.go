package asm

import (
	"fmt"

	"evm/bincode"
	"evm/opcode"
)

// Validate runs the seven back-end passes described in §4.E: section
// assignment, duplicate-label detection, label resolution, section
// sorting, encoding, overlap/first-byte checks, and program-length
// computation. It accumulates every structural error it finds rather
// than stopping at the first one, and returns a non-nil
// *ValidationError iff any pass failed.
func (a *Assembler) Validate() error {
	acc := &errAccumulator{}

	for _, rec := range a.records {
		if rec.err != nil {
			acc.add(ErrParseFailure, "%s: %s", rec.Location(), rec.err)
		}
	}

	a.assignSections(acc)
	a.checkDuplicateLabels(acc)
	a.resolveLabels(acc)
	a.sortSections()
	a.encodeSections(acc)
	a.checkLayout(acc)
	a.computeProgramLength()

	a.validated = acc.err() == nil
	return acc.err()
}

// assignSections is back-end pass 1: walk the parsed records in
// order, switching the current section on `.name`, updating its base
// on `.offset`, and appending every label/instruction/data directive
// to the current section with a tentative size.
func (a *Assembler) assignSections(acc *errAccumulator) {
	var cur *Section
	sectionLen := map[*Section]uint32{}
	tableMode := map[*Section]byte{}
	a.labelCounts = map[string]int{}

	for _, rec := range a.records {
		switch rec.Kind {
		case KindDirective:
			switch rec.Directive {
			case "name":
				if rec.DirArg == "" {
					continue
				}
				sec, ok := a.byName[rec.DirArg]
				if !ok {
					sec = &Section{Name: rec.DirArg, Labels: map[string]uint32{}}
					a.byName[rec.DirArg] = sec
					a.sections = append(a.sections, sec)
				}
				cur = sec
			case "offset":
				if cur == nil {
					acc.add(ErrInstrBeforeSection, "%s: .offset before .name", rec.Location())
					continue
				}
				if sectionLen[cur] > 0 || len(cur.Labels) > 0 {
					acc.add(ErrInstrBeforeSection, "%s: .offset after labels or instructions in section %q", rec.Location(), cur.Name)
					continue
				}
				if v, err := parseInt(rec.DirArg); err == nil {
					cur.Base = uint32(v)
				}
			case "db", "dh", "dw", "df":
				if cur == nil {
					acc.add(ErrInstrBeforeSection, "%s: data directive before .name", rec.Location())
					continue
				}
				rec.Section = cur
				rec.Offset = sectionLen[cur]
				cur.Refs = append(cur.Refs, rec)
				sectionLen[cur] += uint32(rec.Size)
				tableMode[cur] = 0
			case "addr":
				if cur == nil {
					acc.add(ErrInstrBeforeSection, "%s: .addr before .name", rec.Location())
					continue
				}
				switch tableMode[cur] {
				case 0:
					acc.add(ErrAddrOutsideTable, "%s: .addr outside a jump table", rec.Location())
					rec.Size = 0
				case 1:
					rec.Size = 1
				default:
					rec.Size = 2
				}
				rec.Section = cur
				rec.Offset = sectionLen[cur]
				cur.Refs = append(cur.Refs, rec)
				sectionLen[cur] += uint32(rec.Size)
			}

		case KindLabel:
			if cur == nil {
				acc.add(ErrInstrBeforeSection, "%s: label %q before .name", rec.Location(), rec.LabelName)
				continue
			}
			a.labelCounts[rec.LabelName]++
			cur.Labels[rec.LabelName] = sectionLen[cur]

		case KindInstruction:
			if cur == nil {
				acc.add(ErrInstrBeforeSection, "%s: instruction before .name", rec.Location())
				continue
			}
			rec.Section = cur
			rec.Offset = sectionLen[cur]
			cur.Refs = append(cur.Refs, rec)
			sectionLen[cur] += uint32(rec.Size)
			switch rec.Op {
			case opcode.Jtbl:
				tableMode[cur] = 1
			case opcode.Ljtbl:
				tableMode[cur] = 2
			default:
				tableMode[cur] = 0
			}
		}
	}

	for sec, length := range sectionLen {
		sec.Length = length
	}
}

// checkDuplicateLabels is pass 2: label names must be globally unique,
// including repeats within a single section. Counting is done against
// every label record seen during assignSections rather than the final
// per-section Labels map, since two same-named labels in one section
// would otherwise collapse into a single map entry and hide the
// duplicate.
func (a *Assembler) checkDuplicateLabels(acc *errAccumulator) {
	for name, n := range a.labelCounts {
		if n > 1 {
			acc.add(ErrDuplicateLabel, "duplicate label %q", name)
		}
	}
}

// resolveLabels is pass 3: bind every unresolved jump/call/.addr
// reference to the section and offset its target label names.
func (a *Assembler) resolveLabels(acc *errAccumulator) {
	for _, sec := range a.sections {
		for _, ref := range sec.Refs {
			if ref.Flags&FlagUnresolved == 0 {
				continue
			}
			found := false
			for _, s2 := range a.sections {
				if off, ok := s2.Labels[ref.Target]; ok {
					ref.TargetSection = s2
					ref.TargetOffset = off
					found = true
					break
				}
			}
			if !found {
				acc.add(ErrUnresolvedLabel, "%s: undefined label %q", ref.Location(), ref.Target)
				continue
			}
			ref.Flags &^= FlagUnresolved
			ref.Flags |= FlagFinalized
		}
	}
}

// sortSections is pass 4: an in-place selection sort of the section
// list by base address, matching the reference implementation's
// choice of sort algorithm.
func (a *Assembler) sortSections() {
	n := len(a.sections)
	for i := 0; i < n-1; i++ {
		min := i
		for j := i + 1; j < n; j++ {
			if a.sections[j].Base < a.sections[min].Base {
				min = j
			}
		}
		if min != i {
			a.sections[i], a.sections[min] = a.sections[min], a.sections[i]
		}
	}
}

// encodeSections is pass 5: emit every section's final byte content,
// choosing jump encodings, filling jump-table headers and entries,
// and flagging out-of-range deltas and empty tables.
func (a *Assembler) encodeSections(acc *errAccumulator) {
	for _, sec := range a.sections {
		contents := make([]byte, sec.Length)
		var pos uint32
		var mode byte // 0 none, 1 short table, 2 long table
		var tableHeaderOff, tableCountPos uint32
		var entries int

		closeTable := func() {
			if mode != 0 && entries == 0 {
				acc.add(ErrEmptyJumpTable, "section %q: empty jump table", sec.Name)
			}
			mode = 0
		}

		for _, ref := range sec.Refs {
			if ref.Target != "" && ref.TargetSection == nil {
				// Unresolved label, already reported by resolveLabels.
				pos += uint32(ref.Size)
				continue
			}
			switch {
			case ref.Kind == KindDirective && ref.Directive == "addr":
				if mode == 0 {
					continue
				}
				targetAbs := int64(ref.TargetSection.Base) + int64(ref.TargetOffset)
				headerAbs := int64(sec.Base) + int64(tableHeaderOff)
				delta := targetAbs - headerAbs
				if mode == 1 {
					if delta < -128 || delta > 127 {
						acc.add(ErrJumpOutOfRange, "%s: jump-table entry out of range", ref.Location())
					} else {
						bincode.StoreInt8(contents[pos:pos+1], int32(delta))
					}
					contents[tableCountPos]++
					pos++
				} else {
					if delta < -32768 || delta > 32767 {
						acc.add(ErrJumpOutOfRange, "%s: jump-table entry out of range", ref.Location())
					} else {
						bincode.StoreInt16(contents[pos:pos+2], int32(delta))
					}
					cnt := bincode.LoadUint16(contents[tableCountPos : tableCountPos+2])
					bincode.StoreUint16(contents[tableCountPos:tableCountPos+2], cnt+1)
					pos += 2
				}
				entries++

			case ref.Kind == KindDirective:
				copy(contents[pos:pos+uint32(ref.Size)], ref.Bin[:ref.Count])
				pos += uint32(ref.Size)
				closeTable()

			case ref.Op == opcode.Jtbl:
				contents[pos] = byte(opcode.Jtbl)
				contents[pos+1] = 0xFF
				mode, tableHeaderOff, tableCountPos, entries = 1, ref.Offset, pos+1, 0
				pos += 2

			case ref.Op == opcode.Ljtbl:
				contents[pos] = byte(opcode.Ljtbl)
				bincode.StoreUint16(contents[pos+1:pos+3], 0xFFFF)
				mode, tableHeaderOff, tableCountPos, entries = 2, ref.Offset, pos+1, 0
				pos += 3

			case ref.Op.IsJump() && !ref.Op.IsTable():
				delta := refDelta(ref, sec)
				if delta < -128 || delta > 127 {
					acc.add(ErrJumpOutOfRange, "%s: jump too far (%d)", ref.Location(), delta)
				} else {
					contents[pos] = byte(ref.Op)
					bincode.StoreInt8(contents[pos+1:pos+2], int32(delta))
				}
				pos += 2
				closeTable()

			case (ref.Op.IsLongJump() && !ref.Op.IsTable()) || ref.Op == opcode.Call:
				delta := refDelta(ref, sec)
				if delta < -32768 || delta > 32767 {
					acc.add(ErrJumpOutOfRange, "%s: jump too far (%d)", ref.Location(), delta)
				} else {
					contents[pos] = byte(ref.Op)
					bincode.StoreInt16(contents[pos+1:pos+3], int32(delta))
				}
				pos += 3
				closeTable()

			case ref.Op == opcode.Lcall:
				delta := refDelta(ref, sec)
				if delta < -8388608 || delta > 8388607 {
					acc.add(ErrJumpOutOfRange, "%s: call too far (%d)", ref.Location(), delta)
				} else {
					contents[pos] = byte(ref.Op)
					bincode.StoreInt24(contents[pos+1:pos+4], int32(delta))
				}
				pos += 4
				closeTable()

			default:
				copy(contents[pos:pos+uint32(ref.Size)], ref.Bin[:ref.Count])
				pos += uint32(ref.Size)
				closeTable()
			}
		}
		closeTable()
		sec.Contents = contents
	}
}

// refDelta computes a branch's signed PC-relative delta: target
// absolute offset minus the absolute position of the branch opcode
// itself, matching the interpreter's addressing in vm/exec.go.
func refDelta(ref *Record, sec *Section) int64 {
	targetAbs := int64(ref.TargetSection.Base) + int64(ref.TargetOffset)
	return targetAbs - (int64(sec.Base) + int64(ref.Offset))
}

// checkLayout is pass 6: section overlap, emptiness, and the
// first-instruction-must-be-executable rule.
func (a *Assembler) checkLayout(acc *errAccumulator) {
	for i, sec := range a.sections {
		if sec.Length == 0 {
			acc.add(ErrEmptySection, "section %q is empty", sec.Name)
		}
		if i+1 < len(a.sections) {
			next := a.sections[i+1]
			if sec.Base+sec.Length > next.Base {
				acc.add(ErrSectionOverlap, "section %q overlaps %q", sec.Name, next.Name)
			}
		}
	}
	if len(a.sections) > 0 {
		first := a.sections[0]
		if len(first.Refs) == 0 || first.Refs[0].Kind != KindInstruction {
			acc.add(ErrProgramStartsWithData, "program must start with an executable instruction")
		}
	}
}

// computeProgramLength is pass 7.
func (a *Assembler) computeProgramLength() {
	if len(a.sections) == 0 {
		a.programSz = 0
		return
	}
	last := a.sections[len(a.sections)-1]
	a.programSz = last.Base + last.Length
}

// ToBuffer emits the flat program built by a successful Validate
// call: a zeroed buffer with every section's contents copied to its
// base offset, leaving the gaps between sections zero.
func (a *Assembler) ToBuffer() ([]byte, error) {
	if !a.validated {
		return nil, fmt.Errorf("asm: ToBuffer called without a successful Validate")
	}
	buf := make([]byte, a.programSz)
	for _, sec := range a.sections {
		copy(buf[sec.Base:], sec.Contents)
	}
	return buf, nil
}
