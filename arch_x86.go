package detour

import (
	"encoding/binary"
	"fmt"
	"math"
)

// IA32Arch generates 32-bit x86 jump stubs.
type IA32Arch struct{}

func (IA32Arch) Mode() int {
	return 32
}

func (IA32Arch) Decoder() Decoder {
	return x86Decoder{mode: 32}
}

func (IA32Arch) RelativeJumpSize() int {
	return jmpRel32Len
}

func (IA32Arch) AbsoluteJumpSize() int {
	return 7
}

// RelativeJump encodes JMP rel32. The displacement wraps around the 32-bit
// address space, so every 32-bit destination is reachable.
func (IA32Arch) RelativeJump(site, dest uintptr) ([]byte, error) {
	if uint64(site) > math.MaxUint32 || uint64(dest) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %#x -> %#x", ErrOutOfRange, site, dest)
	}
	seq := make([]byte, jmpRel32Len)
	seq[0] = 0xe9 // JMP rel32
	binary.LittleEndian.PutUint32(seq[1:], uint32(dest)-uint32(site)-jmpRel32Len)
	return seq, nil
}

// AbsoluteJump encodes MOV EAX, imm32; JMP EAX.
func (IA32Arch) AbsoluteJump(dest uintptr) []byte {
	seq := []byte{
		0xb8, 0, 0, 0, 0, // MOV EAX, imm32
		0xff, 0xe0, // JMP EAX
	}
	binary.LittleEndian.PutUint32(seq[1:], uint32(dest))
	return seq
}
