package detour

import (
	"fmt"
)

// trampoline is an executable block holding the overwritten prologue of a
// target followed by a jump back to the rest of it.
type trampoline struct {
	addr uintptr
	// size of the block
	size int
	// bytes in use, the rest is INT3
	used int
}

// buildTrampoline places original in a new block allocated near cont and
// appends a jump to cont.
func buildTrampoline(mem Memory, arch Arch, original []byte, cont uintptr) (*trampoline, error) {
	size := len(original) + arch.AbsoluteJumpSize()
	addr, err := mem.Alloc(cont, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes near %#x: %w", ErrAllocation, size, cont, err)
	}
	t := &trampoline{addr: addr, size: size}
	tail, err := JumpStub(arch, JumpAuto, addr+uintptr(len(original)), cont)
	if err != nil {
		_ = t.free(mem)
		return nil, err
	}
	block := makeSlice(addr, size)
	t.used = copy(block, original)
	t.used += copy(block[t.used:], tail)
	for i := t.used; i < size; i++ {
		block[i] = int3
	}
	if err := mem.Protect(addr, size, ProtRead|ProtExec); err != nil {
		_ = t.free(mem)
		return nil, fmt.Errorf("%w: trampoline %#x: %w", ErrProtection, addr, err)
	}
	if err := mem.FlushInstructionCache(addr, size); err != nil {
		_ = t.free(mem)
		return nil, fmt.Errorf("%w: flush %#x: %w", ErrProtection, addr, err)
	}
	return t, nil
}

func (t *trampoline) free(mem Memory) error {
	return mem.Free(t.addr, t.size)
}
