// Package vm implements the eVM interpreter: a fetch-decode-execute
// loop over a 32-bit operand stack with comparison flags, cooperative
// yield/halt, and a per-instance builtin dispatch table.
package vm

import (
	"fmt"

	"github.com/go-logr/logr"

	"evm/bincode"
	"evm/opcode"
)

// Flag bits packed into VM.flags. LESS, EQUAL and GREATER are
// mutually exclusive and are rewritten on every CMP. YIELD and HALTED
// are sticky until explicitly cleared by SetProgram.
const (
	FlagLess    uint8 = 1 << 0
	FlagEqual   uint8 = 1 << 1
	FlagGreater uint8 = 1 << 2
	FlagYield   uint8 = 1 << 3
	FlagHalted  uint8 = 1 << 4
)

// MaxBuiltins bounds the builtin dispatch vector, matching the
// compile-time MAX_BUILTINS constant described in the external
// interface: BCALL addresses a single immediate byte, so the table
// can never exceed 256 entries.
const MaxBuiltins = 256

// MaxStackCapacity is the largest stack depth SetStackCapacity will
// accept; sp is a 16-bit depth counter.
const MaxStackCapacity = 65535

// Builtin is a host-provided routine invoked by BCALL. It receives
// the VM so it may read, push or pop the stack via the published
// operations, and returns the i32 result of the call.
type Builtin func(vm *VM) int32

// VM is a single eVM instance. It is not safe for concurrent use: per
// the single-threaded cooperative model, an embedder may own many
// VMs but must operate on any one of them from a single goroutine at
// a time.
type VM struct {
	ip         uint32
	sp         uint16
	maxStack   uint16
	stack      []int32
	program    []byte
	maxProgram uint32
	flags      uint8

	env      any
	builtins [MaxBuiltins]Builtin

	// Log receives structured trace/error output mirroring the
	// reference interpreter's EVM_TRACE/EVM_ERRORF instrumentation.
	// Discarded by default.
	Log logr.Logger
}

// New allocates a VM with the given stack capacity. stackCapacity
// must not exceed MaxStackCapacity.
func New(stackCapacity uint16) (*VM, error) {
	if int(stackCapacity) > MaxStackCapacity {
		return nil, fmt.Errorf("vm: stack capacity %d exceeds max %d", stackCapacity, MaxStackCapacity)
	}
	return &VM{
		maxStack: stackCapacity,
		stack:    make([]int32, stackCapacity),
		Log:      logr.Discard(),
	}, nil
}

// SetStackCapacity resizes the operand stack. It rejects a capacity
// smaller than the current stack depth, and any value above
// MaxStackCapacity.
func (vm *VM) SetStackCapacity(capacity uint16) error {
	if int(capacity) > MaxStackCapacity {
		return fmt.Errorf("vm: stack capacity %d exceeds max %d", capacity, MaxStackCapacity)
	}
	if capacity < vm.sp {
		return fmt.Errorf("vm: stack capacity %d smaller than current depth %d", capacity, vm.sp)
	}
	newStack := make([]int32, capacity)
	copy(newStack, vm.stack[:vm.sp])
	vm.stack = newStack
	vm.maxStack = capacity
	return nil
}

// SetEnv stores an opaque host value, retrievable via Env. The
// interpreter never inspects it; it exists purely so builtins can
// recover host-side state through the VM handle.
func (vm *VM) SetEnv(env any) { vm.env = env }

// Env returns the opaque host value set by SetEnv.
func (vm *VM) Env() any { return vm.env }

// BindBuiltin registers fn at builtin index id. id must be in
// [0, MaxBuiltins).
func (vm *VM) BindBuiltin(id byte, fn Builtin) error {
	if int(id) >= MaxBuiltins {
		return fmt.Errorf("vm: builtin id %d out of range", id)
	}
	vm.builtins[id] = fn
	return nil
}

// SetProgram installs a new bytecode image. It copies the bytes,
// resets the instruction pointer and HALTED flag, and appends an
// implicit terminator so that reading program[maxProgram] always
// decodes as HALT.
func (vm *VM) SetProgram(program []byte) {
	vm.program = make([]byte, len(program)+1)
	copy(vm.program, program)
	vm.program[len(program)] = byte(opcode.Halt)
	vm.maxProgram = uint32(len(program))
	vm.ip = 0
	vm.flags &^= FlagHalted | FlagYield
}

// IP returns the current program counter.
func (vm *VM) IP() uint32 { return vm.ip }

// Halted reports whether the HALTED flag is set.
func (vm *VM) Halted() bool { return vm.flags&FlagHalted != 0 }

// Yielded reports whether the YIELD flag is set.
func (vm *VM) Yielded() bool { return vm.flags&FlagYield != 0 }

// Flags returns the raw flag bitfield.
func (vm *VM) Flags() uint8 { return vm.flags }

// Depth returns the current stack depth.
func (vm *VM) Depth() uint16 { return vm.sp }

// PushInt pushes an integer cell. It reports a stack-overflow error
// and sets HALTED without modifying the stack if there is no room.
func (vm *VM) PushInt(v int32) error {
	if vm.sp >= vm.maxStack {
		return vm.fault(errStackOverflow)
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

// PushFloat pushes a float cell via bit reinterpretation.
func (vm *VM) PushFloat(f float32) error {
	return vm.PushInt(bincode.Float32ToInt32(f))
}

// PopInt removes and returns the top cell as an integer.
func (vm *VM) PopInt() (int32, error) {
	if vm.sp == 0 {
		return 0, vm.fault(errStackUnderflow)
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

// PopFloat removes and returns the top cell as a float.
func (vm *VM) PopFloat() (float32, error) {
	v, err := vm.PopInt()
	if err != nil {
		return 0, err
	}
	return bincode.Int32ToFloat32(v), nil
}

// TopInt returns the value at stack depth d (0 = top) without
// popping it.
func (vm *VM) TopInt(d uint16) (int32, error) {
	if d >= vm.sp {
		return 0, vm.fault(errStackUnderflow)
	}
	return vm.stack[vm.sp-1-d], nil
}

// TopFloat is TopInt with a bit-reinterpreted result.
func (vm *VM) TopFloat(d uint16) (float32, error) {
	v, err := vm.TopInt(d)
	if err != nil {
		return 0, err
	}
	return bincode.Int32ToFloat32(v), nil
}
