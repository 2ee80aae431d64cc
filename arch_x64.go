package detour

import (
	"encoding/binary"
	"fmt"
)

// Reg is the scratch register an absolute x86-64 jump loads the
// destination into.
type Reg int

const (
	// R11 gives the 13 byte MOV R11, imm64; JMP R11 sequence. R11 is
	// volatile in both C calling conventions and carries no argument in
	// Go's register ABI.
	R11 Reg = iota
	// RAX gives the 12 byte MOV RAX, imm64; JMP RAX sequence. RAX is
	// volatile in the C calling conventions at function entry, but carries
	// the first argument of Go's register ABI, so it only suits C targets.
	RAX
)

func (r Reg) String() string {
	switch r {
	case RAX:
		return "RAX"
	case R11:
		return "R11"
	}
	return fmt.Sprintf("Reg(%d)", int(r))
}

// AMD64Arch generates x86-64 jump stubs.
type AMD64Arch struct {
	Scratch Reg
}

func (AMD64Arch) Mode() int {
	return 64
}

func (AMD64Arch) Decoder() Decoder {
	return x86Decoder{mode: 64}
}

func (AMD64Arch) RelativeJumpSize() int {
	return jmpRel32Len
}

func (a AMD64Arch) AbsoluteJumpSize() int {
	if a.Scratch == RAX {
		return 12
	}
	return 13
}

// RelativeJump encodes JMP rel32.
func (AMD64Arch) RelativeJump(site, dest uintptr) ([]byte, error) {
	disp, err := rel32(site, dest)
	if err != nil {
		return nil, err
	}
	seq := make([]byte, jmpRel32Len)
	seq[0] = 0xe9 // JMP rel32
	binary.LittleEndian.PutUint32(seq[1:], uint32(disp))
	return seq, nil
}

// AbsoluteJump encodes MOV reg, imm64; JMP reg.
func (a AMD64Arch) AbsoluteJump(dest uintptr) []byte {
	if a.Scratch == RAX {
		seq := []byte{
			0x48, 0xb8, // MOV RAX, imm64
			0, 0, 0, 0, 0, 0, 0, 0,
			0xff, 0xe0, // JMP RAX
		}
		binary.LittleEndian.PutUint64(seq[2:], uint64(dest))
		return seq
	}
	seq := []byte{
		0x49, 0xbb, // MOV R11, imm64
		0, 0, 0, 0, 0, 0, 0, 0,
		0x41, 0xff, 0xe3, // JMP R11
	}
	binary.LittleEndian.PutUint64(seq[2:], uint64(dest))
	return seq
}
