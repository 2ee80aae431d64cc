// Package lde is a length disassembler for x86 and x86-64 code.
//
// It reports how many bytes one machine instruction occupies together with the
// two properties an inline patcher cares about: whether the encoding embeds a
// displacement relative to its own location, and whether the instruction
// unconditionally leaves the current straight-line code.
package lde

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// MaxInstLen is the architectural limit for one x86 instruction.
const MaxInstLen = 15

// Inst describes one decoded instruction.
type Inst struct {
	Len      int
	Op       x86asm.Op
	Relative bool
	Terminal bool
	Text     string
}

// Decode decodes the instruction at the start of code. Mode is 32 or 64.
func Decode(code []byte, mode int) (Inst, error) {
	if len(code) > MaxInstLen {
		code = code[:MaxInstLen]
	}
	i, err := x86asm.Decode(code, mode)
	if err != nil {
		return Inst{}, fmt.Errorf("decode % x: %w", code, err)
	}
	// x86asm reports an instruction cut short by the end of code as a one
	// byte instruction without an opcode.
	if i.Op == 0 {
		if len(code) < MaxInstLen {
			err = x86asm.ErrTruncated
		} else {
			err = x86asm.ErrUnrecognized
		}
		return Inst{}, fmt.Errorf("decode % x: %w", code, err)
	}
	return Inst{
		Len:      i.Len,
		Op:       i.Op,
		Relative: isRelative(&i),
		Terminal: isTerminal(i.Op),
		Text:     i.String(),
	}, nil
}

// isRelative reports whether the instruction cannot be moved verbatim:
// relative branches and calls, and RIP/EIP based memory operands.
func isRelative(i *x86asm.Inst) bool {
	if i.PCRel > 0 {
		return true
	}
	for _, a := range i.Args {
		if a == nil {
			break
		}
		switch arg := a.(type) {
		case x86asm.Rel:
			return true
		case x86asm.Mem:
			if arg.Base == x86asm.RIP || arg.Base == x86asm.EIP {
				return true
			}
		}
	}
	return false
}

func isTerminal(op x86asm.Op) bool {
	switch op {
	case x86asm.RET, x86asm.LRET, x86asm.JMP, x86asm.LJMP, x86asm.UD2:
		return true
	}
	return false
}

// Length sums whole instruction lengths from the start of code until at least
// min bytes are covered.
func Length(code []byte, mode, min int) (int, error) {
	n := 0
	for n < min {
		if n >= len(code) {
			return n, fmt.Errorf("need %d bytes, only %d available: %w", min, len(code), x86asm.ErrTruncated)
		}
		i, err := Decode(code[n:], mode)
		if err != nil {
			return n, err
		}
		n += i.Len
	}
	return n, nil
}
