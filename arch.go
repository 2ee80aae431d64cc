package detour

import (
	"errors"
	"fmt"
	"math"

	"github.com/fengyoulin/detour/internal/lde"
)

// Instruction is what the scanner needs to know about one machine
// instruction.
type Instruction struct {
	// Len is the encoded length in bytes.
	Len int
	// Relative is set when the encoding embeds an offset relative to the
	// instruction's own address, so it cannot be copied elsewhere verbatim.
	Relative bool
	// Terminal is set for unconditional transfers: RET, JMP and friends.
	Terminal bool
}

// Decoder decodes the single instruction at the start of code.
type Decoder interface {
	Decode(code []byte) (Instruction, error)
}

// Arch generates the jump stubs of one instruction set and knows how to
// decode it.
type Arch interface {
	// Mode is the processor mode in bits, 32 or 64.
	Mode() int
	Decoder() Decoder
	// RelativeJump encodes a jump placed at site landing on dest.
	RelativeJump(site, dest uintptr) ([]byte, error)
	// AbsoluteJump encodes a position independent jump to dest.
	AbsoluteJump(dest uintptr) []byte
	RelativeJumpSize() int
	AbsoluteJumpSize() int
}

// JumpKind selects the stub written over a target.
type JumpKind int

const (
	// JumpAuto uses a rel32 jump when the destination is reachable and an
	// absolute one otherwise.
	JumpAuto JumpKind = iota
	// JumpRelative always uses a rel32 jump and fails with ErrOutOfRange
	// when the destination is too far.
	JumpRelative
	// JumpAbsolute always uses the register based absolute jump.
	JumpAbsolute
)

func (k JumpKind) String() string {
	switch k {
	case JumpAuto:
		return "auto"
	case JumpRelative:
		return "relative"
	case JumpAbsolute:
		return "absolute"
	}
	return fmt.Sprintf("JumpKind(%d)", int(k))
}

// JumpStub returns the stub of the given kind that, placed at site,
// transfers control to dest.
func JumpStub(a Arch, kind JumpKind, site, dest uintptr) ([]byte, error) {
	switch kind {
	case JumpAbsolute:
		return a.AbsoluteJump(dest), nil
	case JumpRelative:
		return a.RelativeJump(site, dest)
	}
	stub, err := a.RelativeJump(site, dest)
	if errors.Is(err, ErrOutOfRange) {
		return a.AbsoluteJump(dest), nil
	}
	return stub, err
}

// x86Decoder adapts the length disassembler to Decoder.
type x86Decoder struct {
	mode int
}

func (d x86Decoder) Decode(code []byte) (Instruction, error) {
	i, err := lde.Decode(code, d.mode)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Len: i.Len, Relative: i.Relative, Terminal: i.Terminal}, nil
}

const jmpRel32Len = 5

// rel32 returns the displacement of a rel32 jump at site landing on dest.
func rel32(site, dest uintptr) (int32, error) {
	disp := int64(dest) - int64(site) - jmpRel32Len
	if disp < math.MinInt32 || disp > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %#x -> %#x", ErrOutOfRange, site, dest)
	}
	return int32(disp), nil
}
