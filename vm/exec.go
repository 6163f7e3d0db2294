package vm

import (
	"evm/bincode"
	"evm/opcode"
)

// local is the snapshot-and-writeback working set used by Run: the
// scalar VM fields are copied in, mutated directly during dispatch
// (bypassing the public push/pop API, which would re-touch vm.sp on
// every operation), then written back on exit. This mirrors the
// reference interpreter's practice of operating on a local copy of
// VM state for the duration of a run and copying it back once,
// rather than dereferencing the VM on every instruction.
type local struct {
	ip    uint32
	sp    uint16
	flags uint8
}

func (vm *VM) snapshot() local {
	return local{ip: vm.ip, sp: vm.sp, flags: vm.flags}
}

func (vm *VM) writeback(l local) {
	vm.ip, vm.sp, vm.flags = l.ip, l.sp, l.flags
}

// faultLocal latches HALTED on l before writing it back, so that the
// deferred writeback in Run (which otherwise overwrites vm.flags from
// l.flags) can't clear the HALTED bit that fault sets directly on vm.
// Every fault raised mid-dispatch must go through this rather than
// vm.fault directly.
func (vm *VM) faultLocal(l *local, err error) error {
	l.flags |= FlagHalted
	vm.writeback(*l)
	return vm.fault(err)
}

// Run executes up to maxOps instructions starting from the current
// ip. It returns true iff HALTED is set when it returns, which
// happens either because the program halted or because a runtime
// fault occurred. If the caller's budget runs out first, Run returns
// false and a later call resumes exactly where this one left off.
// YIELD also stops execution early without setting HALTED.
func (vm *VM) Run(maxOps int) (halted bool, err error) {
	if vm.flags&FlagHalted != 0 {
		return true, nil
	}
	l := vm.snapshot()
	defer func() {
		vm.writeback(l)
		halted = vm.flags&FlagHalted != 0
	}()

	vm.flags &^= FlagYield

	for ops := 0; ops < maxOps; ops++ {
		if l.ip > vm.maxProgram || int(l.ip) >= len(vm.program) {
			return true, vm.faultLocal(&l, errIllegalState)
		}
		op := opcode.Code(vm.program[l.ip])
		if !op.Valid() {
			return true, vm.faultLocal(&l, errIllegalOperation)
		}
		if int(l.ip)+op.Len() > len(vm.program) {
			// Immediate runs past the end of the program.
			return true, vm.faultLocal(&l, errIllegalOperation)
		}

		vm.Log.V(2).Info("dispatch", "ip", l.ip, "op", op.String(), "sp", l.sp)

		switch op {
		case opcode.Nop:
			l.ip++

		case opcode.Call:
			vm.writeback(l)
			if err := vm.pushLocal(&l, int32(l.ip+3)); err != nil {
				return true, err
			}
			delta := bincode.LoadInt16(vm.program[l.ip+1 : l.ip+3])
			l.ip = uint32(int64(l.ip) + int64(delta))

		case opcode.Lcall:
			vm.writeback(l)
			if err := vm.pushLocal(&l, int32(l.ip+4)); err != nil {
				return true, err
			}
			// PC-relative, matching CALL/JMP; see design notes on the
			// LCALL absolute-vs-relative discrepancy in the reference.
			delta := bincode.LoadInt24(vm.program[l.ip+1 : l.ip+4])
			l.ip = uint32(int64(l.ip) + int64(delta))

		case opcode.Bcall:
			id := vm.program[l.ip+1]
			l.ip += 2
			vm.writeback(l)
			result := vm.invokeBuiltin(id)
			l = vm.snapshot()
			if err := vm.pushLocal(&l, result); err != nil {
				return true, err
			}

		case opcode.Yield:
			l.ip++
			l.flags |= FlagYield
			vm.writeback(l)
			return false, nil

		case opcode.Halt:
			l.ip++
			l.flags |= FlagHalted
			vm.writeback(l)
			return true, nil

		case opcode.PushI0:
			if err := vm.pushLocal(&l, 0); err != nil {
				return true, err
			}
			l.ip++
		case opcode.PushI1:
			if err := vm.pushLocal(&l, 1); err != nil {
				return true, err
			}
			l.ip++
		case opcode.PushIn1:
			if err := vm.pushLocal(&l, -1); err != nil {
				return true, err
			}
			l.ip++
		case opcode.Push8I:
			v := bincode.LoadInt8(vm.program[l.ip+1 : l.ip+2])
			if err := vm.pushLocal(&l, v); err != nil {
				return true, err
			}
			l.ip += 2
		case opcode.Push16I:
			v := bincode.LoadInt16(vm.program[l.ip+1 : l.ip+3])
			if err := vm.pushLocal(&l, v); err != nil {
				return true, err
			}
			l.ip += 3
		case opcode.Push24I:
			v := bincode.LoadInt24(vm.program[l.ip+1 : l.ip+4])
			if err := vm.pushLocal(&l, v); err != nil {
				return true, err
			}
			l.ip += 4
		case opcode.Push32I:
			v := bincode.LoadInt32(vm.program[l.ip+1 : l.ip+5])
			if err := vm.pushLocal(&l, v); err != nil {
				return true, err
			}
			l.ip += 5
		case opcode.PushF0:
			if err := vm.pushLocal(&l, bincode.Float32ToInt32(0)); err != nil {
				return true, err
			}
			l.ip++
		case opcode.PushF1:
			if err := vm.pushLocal(&l, bincode.Float32ToInt32(1)); err != nil {
				return true, err
			}
			l.ip++
		case opcode.PushFn1:
			if err := vm.pushLocal(&l, bincode.Float32ToInt32(-1)); err != nil {
				return true, err
			}
			l.ip++
		case opcode.PushF:
			bits := bincode.LoadUint32(vm.program[l.ip+1 : l.ip+5])
			if err := vm.pushLocal(&l, int32(bits)); err != nil {
				return true, err
			}
			l.ip += 5
		case opcode.Swap:
			if l.sp < 2 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			vm.stack[l.sp-1], vm.stack[l.sp-2] = vm.stack[l.sp-2], vm.stack[l.sp-1]
			l.ip++

		case opcode.Pop1, opcode.Pop2, opcode.Pop3, opcode.Pop4,
			opcode.Pop5, opcode.Pop6, opcode.Pop7, opcode.Pop8:
			n := uint16(op-opcode.Pop1) + 1
			if l.sp < n {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			l.sp -= n
			l.ip++

		case opcode.Rem1, opcode.Rem2, opcode.Rem3, opcode.Rem4,
			opcode.Rem5, opcode.Rem6, opcode.Rem7:
			depth := uint16(op-opcode.Rem1) + 1
			if _, err := vm.removeAt(&l, depth); err != nil {
				return true, err
			}
			l.ip++

		case opcode.RemR:
			nib := vm.program[l.ip+1]
			d, c := uint16(nib>>4), uint16(nib&0x0F)
			if _, err := vm.removeRange(&l, d+1, c+1); err != nil {
				return true, err
			}
			l.ip += 2

		case opcode.Dup0, opcode.Dup1, opcode.Dup2, opcode.Dup3,
			opcode.Dup4, opcode.Dup5, opcode.Dup6, opcode.Dup7,
			opcode.Dup8, opcode.Dup9, opcode.Dup10, opcode.Dup11,
			opcode.Dup12, opcode.Dup13, opcode.Dup14, opcode.Dup15:
			depth := uint16(op - opcode.Dup0)
			if depth >= l.sp {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			v := vm.stack[l.sp-1-depth]
			if err := vm.pushLocal(&l, v); err != nil {
				return true, err
			}
			l.ip++

		case opcode.IncI, opcode.DecI, opcode.AbsI, opcode.NegI:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			top := l.sp - 1
			switch op {
			case opcode.IncI:
				vm.stack[top]++
			case opcode.DecI:
				vm.stack[top]--
			case opcode.AbsI:
				if vm.stack[top] < 0 {
					vm.stack[top] = -vm.stack[top]
				}
			case opcode.NegI:
				vm.stack[top] = -vm.stack[top]
			}
			l.ip++

		case opcode.AddI, opcode.SubI, opcode.MulI, opcode.DivI:
			if l.sp < 2 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			a, b := vm.stack[l.sp-1], vm.stack[l.sp-2]
			var result int32
			switch op {
			case opcode.AddI:
				result = a + b
			case opcode.SubI:
				result = a - b
			case opcode.MulI:
				result = a * b
			case opcode.DivI:
				if b == 0 {
					result = 0
				} else {
					result = a / b
				}
			}
			vm.stack[l.sp-2] = result
			l.sp--
			l.ip++

		case opcode.IncF, opcode.DecF, opcode.AbsF, opcode.NegF:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			top := l.sp - 1
			f := bincode.Int32ToFloat32(vm.stack[top])
			switch op {
			case opcode.IncF:
				f++
			case opcode.DecF:
				f--
			case opcode.AbsF:
				if f < 0 {
					f = -f
				}
			case opcode.NegF:
				f = -f
			}
			vm.stack[top] = bincode.Float32ToInt32(f)
			l.ip++

		case opcode.AddF, opcode.SubF, opcode.MulF, opcode.DivF:
			if l.sp < 2 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			a := bincode.Int32ToFloat32(vm.stack[l.sp-1])
			b := bincode.Int32ToFloat32(vm.stack[l.sp-2])
			var result float32
			switch op {
			case opcode.AddF:
				result = a + b
			case opcode.SubF:
				result = a - b
			case opcode.MulF:
				result = a * b
			case opcode.DivF:
				result = a / b
			}
			vm.stack[l.sp-2] = bincode.Float32ToInt32(result)
			l.sp--
			l.ip++

		case opcode.Lsh, opcode.Rsh, opcode.And, opcode.Or, opcode.Xor:
			if l.sp < 2 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			a, b := vm.stack[l.sp-1], vm.stack[l.sp-2]
			var result int32
			switch op {
			case opcode.Lsh:
				result = a << (uint32(b) & 31)
			case opcode.Rsh:
				result = a >> (uint32(b) & 31)
			case opcode.And:
				result = a & b
			case opcode.Or:
				result = a | b
			case opcode.Xor:
				result = a ^ b
			}
			vm.stack[l.sp-2] = result
			l.sp--
			l.ip++

		case opcode.Inv:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			vm.stack[l.sp-1] = ^vm.stack[l.sp-1]
			l.ip++
		case opcode.Bool:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			if vm.stack[l.sp-1] != 0 {
				vm.stack[l.sp-1] = 1
			}
			l.ip++
		case opcode.Not:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			if vm.stack[l.sp-1] == 0 {
				vm.stack[l.sp-1] = 1
			} else {
				vm.stack[l.sp-1] = 0
			}
			l.ip++

		case opcode.ConvFI:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			vm.stack[l.sp-1] = int32(bincode.Int32ToFloat32(vm.stack[l.sp-1]))
			l.ip++
		case opcode.ConvFI1:
			if l.sp < 2 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			vm.stack[l.sp-2] = int32(bincode.Int32ToFloat32(vm.stack[l.sp-2]))
			l.ip++
		case opcode.ConvIF:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			vm.stack[l.sp-1] = bincode.Float32ToInt32(float32(vm.stack[l.sp-1]))
			l.ip++
		case opcode.ConvIF1:
			if l.sp < 2 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			vm.stack[l.sp-2] = bincode.Float32ToInt32(float32(vm.stack[l.sp-2]))
			l.ip++

		case opcode.CmpI0, opcode.CmpI1, opcode.CmpIn1:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			var rhs int32
			switch op {
			case opcode.CmpI1:
				rhs = 1
			case opcode.CmpIn1:
				rhs = -1
			}
			setCompareFlags(&l, compareInt(vm.stack[l.sp-1], rhs))
			l.ip++
		case opcode.CmpI:
			if l.sp < 2 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			setCompareFlags(&l, compareInt(vm.stack[l.sp-1], vm.stack[l.sp-2]))
			l.ip++
		case opcode.CmpF0, opcode.CmpF1, opcode.CmpFn1:
			if l.sp < 1 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			var rhs float32
			switch op {
			case opcode.CmpF1:
				rhs = 1
			case opcode.CmpFn1:
				rhs = -1
			}
			setCompareFlags(&l, compareFloat(bincode.Int32ToFloat32(vm.stack[l.sp-1]), rhs))
			l.ip++
		case opcode.CmpF:
			if l.sp < 2 {
				return true, vm.faultLocal(&l, errStackUnderflow)
			}
			setCompareFlags(&l, compareFloat(bincode.Int32ToFloat32(vm.stack[l.sp-1]), bincode.Int32ToFloat32(vm.stack[l.sp-2])))
			l.ip++

		case opcode.Jmp, opcode.Jlt, opcode.Jle, opcode.Jne, opcode.Jeq, opcode.Jge, opcode.Jgt:
			if jumpTaken(op, l.flags) {
				delta := bincode.LoadInt8(vm.program[l.ip+1 : l.ip+2])
				l.ip = uint32(int64(l.ip) + int64(delta))
			} else {
				l.ip += 2
			}

		case opcode.Ljmp, opcode.Ljlt, opcode.Ljle, opcode.Ljne, opcode.Ljeq, opcode.Ljge, opcode.Ljgt:
			if jumpTaken(op, l.flags) {
				delta := bincode.LoadInt16(vm.program[l.ip+1 : l.ip+3])
				l.ip = uint32(int64(l.ip) + int64(delta))
			} else {
				l.ip += 3
			}

		case opcode.Jtbl:
			target, err := vm.jumpTable(&l, false)
			if err != nil {
				return true, err
			}
			l.ip = target

		case opcode.Ljtbl:
			target, err := vm.jumpTable(&l, true)
			if err != nil {
				return true, err
			}
			l.ip = target

		case opcode.Ret:
			v, err := vm.popLocal(&l)
			if err != nil {
				return true, err
			}
			l.ip = uint32(v)

		case opcode.Ret1, opcode.Ret2, opcode.Ret3, opcode.Ret4,
			opcode.Ret5, opcode.Ret6, opcode.Ret7, opcode.Ret8,
			opcode.Ret9, opcode.Ret10, opcode.Ret11, opcode.Ret12,
			opcode.Ret13, opcode.Ret14:
			depth := uint16(op-opcode.Ret1) + 1
			v, err := vm.removeAt(&l, depth)
			if err != nil {
				return true, err
			}
			l.ip = uint32(v)

		case opcode.RetI:
			depth := uint16(vm.program[l.ip+1])
			v, err := vm.removeAt(&l, depth)
			if err != nil {
				return true, err
			}
			l.ip = uint32(v)

		default:
			return true, vm.faultLocal(&l, errIllegalOperation)
		}
	}

	vm.writeback(l)
	return false, nil
}

func (vm *VM) pushLocal(l *local, v int32) error {
	if l.sp >= vm.maxStack {
		return vm.faultLocal(l, errStackOverflow)
	}
	vm.stack[l.sp] = v
	l.sp++
	return nil
}

func (vm *VM) popLocal(l *local) (int32, error) {
	if l.sp == 0 {
		return 0, vm.faultLocal(l, errStackUnderflow)
	}
	l.sp--
	return vm.stack[l.sp], nil
}

// removeAt deletes the single value at stack depth d (0 = top),
// shifting shallower values down by one slot, and returns the
// removed value.
func (vm *VM) removeAt(l *local, d uint16) (int32, error) {
	return vm.removeRange(l, d, 1)
}

// removeRange deletes count contiguous values starting at depth
// startDepth (0 = top), shifting shallower values down by count
// slots. It returns the deepest removed value.
func (vm *VM) removeRange(l *local, startDepth, count uint16) (int32, error) {
	if uint32(startDepth)+uint32(count) > uint32(l.sp) {
		return 0, vm.faultLocal(l, errStackUnderflow)
	}
	idxHigh := l.sp - 1 - startDepth
	idxLow := idxHigh - count + 1
	removed := vm.stack[idxLow]
	copy(vm.stack[idxLow:l.sp-count], vm.stack[idxHigh+1:l.sp])
	l.sp -= count
	return removed, nil
}

func compareInt(lhs, rhs int32) int {
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

func compareFloat(lhs, rhs float32) int {
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

func setCompareFlags(l *local, cmp int) {
	l.flags &^= FlagLess | FlagEqual | FlagGreater
	switch {
	case cmp < 0:
		l.flags |= FlagLess
	case cmp > 0:
		l.flags |= FlagGreater
	default:
		l.flags |= FlagEqual
	}
}

func jumpTaken(op opcode.Code, flags uint8) bool {
	switch op {
	case opcode.Jmp, opcode.Ljmp:
		return true
	case opcode.Jlt, opcode.Ljlt:
		return flags&FlagLess != 0
	case opcode.Jle, opcode.Ljle:
		return flags&(FlagLess|FlagEqual) != 0
	case opcode.Jne, opcode.Ljne:
		return flags&(FlagLess|FlagGreater) != 0
	case opcode.Jeq, opcode.Ljeq:
		return flags&FlagEqual != 0
	case opcode.Jge, opcode.Ljge:
		return flags&(FlagGreater|FlagEqual) != 0
	case opcode.Jgt, opcode.Ljgt:
		return flags&FlagGreater != 0
	}
	return false
}

// jumpTable implements JTBL/LJTBL: pop an index, locate the entries-1
// header and the table of deltas that follows the fixed-length
// instruction header, and resolve the absolute target. Short tables
// (JTBL) carry a 1-byte entry count and 1-byte deltas; long tables
// (LJTBL) carry a little-endian 2-byte entry count and 2-byte deltas,
// matching the assembler's and disassembler's .addr emission for
// each mode.
func (vm *VM) jumpTable(l *local, long bool) (uint32, error) {
	opIP := l.ip
	idx, err := vm.popLocal(l)
	if err != nil {
		return 0, err
	}
	var entries uint32
	var tableBase uint32
	var width uint32
	if long {
		entries = uint32(bincode.LoadUint16(vm.program[opIP+1:opIP+3])) + 1
		tableBase = opIP + 3
		width = 2
	} else {
		entries = uint32(vm.program[opIP+1]) + 1
		tableBase = opIP + 2
		width = 1
	}
	if idx < 0 || uint32(idx) >= entries {
		return 0, vm.faultLocal(l, errIllegalOperation)
	}
	entryOff := tableBase + uint32(idx)*width
	if int(entryOff)+int(width) > len(vm.program) {
		return 0, vm.faultLocal(l, errIllegalOperation)
	}
	var delta int32
	if long {
		delta = bincode.LoadInt16(vm.program[entryOff : entryOff+2])
	} else {
		delta = bincode.LoadInt8(vm.program[entryOff : entryOff+1])
	}
	return uint32(int64(opIP) + int64(delta)), nil
}

func (vm *VM) invokeBuiltin(id byte) int32 {
	fn := vm.builtins[id]
	if fn == nil {
		vm.Log.V(1).Info("unbound builtin", "id", id)
		return 0
	}
	return fn(vm)
}
