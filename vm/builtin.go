package vm

// UnbindBuiltin clears any callable registered at id, restoring the
// unbound-handler behavior (log and return 0) for that slot.
func (vm *VM) UnbindBuiltin(id byte) {
	vm.builtins[id] = nil
}

// BuiltinBound reports whether a callable is registered at id.
func (vm *VM) BuiltinBound(id byte) bool {
	return vm.builtins[id] != nil
}
