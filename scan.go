package detour

import (
	"errors"
	"fmt"

	"github.com/fengyoulin/detour/internal/osmem"
)

// int3 pads the gap between functions in compiler output.
const int3 = 0xcc

// Boundary is the result of a scan: the shortest run of whole instructions
// covering the requested number of bytes.
type Boundary struct {
	// Length is the byte count, always at an instruction boundary.
	Length int
	// Relocatable is false when one of the instructions is position
	// dependent.
	Relocatable bool
	// Instructions holds the length of every instruction covered.
	Instructions []int
	// Code is a copy of the Length bytes scanned.
	Code []byte
}

// Scanner finds instruction boundaries in live code.
type Scanner struct {
	mem    Memory
	dec    Decoder
	window int
}

// NewScanner returns a Scanner for the running CPU, or the Arch given with
// WithArch.
func NewScanner(opts ...Option) (*Scanner, error) {
	c := newConfig(opts)
	if c.arch == nil {
		return nil, ErrUnsupported
	}
	return &Scanner{mem: c.mem, dec: c.arch.Decoder(), window: c.window}, nil
}

// Scan decodes instructions at addr until at least minBytes are covered.
// Pages of the window without read access are made readable for the
// duration of the scan and the window stops at the first unmapped page.
func (s *Scanner) Scan(addr uintptr, minBytes int) (b Boundary, err error) {
	if minBytes > s.window {
		return Boundary{}, fmt.Errorf("%w: %d bytes wanted, scan window is %d", ErrDecode, minBytes, s.window)
	}
	n, changed, err := s.makeReadable(addr, s.window)
	defer func() {
		if rerr := restorePages(s.mem, changed); rerr != nil && err == nil {
			b, err = Boundary{}, rerr
		}
	}()
	if err != nil {
		return Boundary{}, err
	}
	b, err = scanCode(s.dec, makeSlice(addr, n), minBytes)
	if err != nil {
		return Boundary{}, fmt.Errorf("scan %#x: %w", addr, err)
	}
	return b, nil
}

// makeReadable returns how many bytes of [addr, addr+size) are mapped and
// the pages it had to make readable, with their old protection.
func (s *Scanner) makeReadable(addr uintptr, size int) (int, []pageProt, error) {
	var changed []pageProt
	pageSize := uintptr(s.mem.PageSize())
	end := addr + uintptr(size)
	for page := addr &^ (pageSize - 1); page < end; page += pageSize {
		prot, err := s.mem.Query(page)
		if errors.Is(err, osmem.ErrUnmapped) {
			if page <= addr {
				return 0, changed, fmt.Errorf("%w: %#x is not mapped", ErrDecode, addr)
			}
			return int(page - addr), changed, nil
		}
		if err != nil {
			return 0, changed, fmt.Errorf("%w: query %#x: %w", ErrProtection, page, err)
		}
		if prot&ProtRead != 0 {
			continue
		}
		if err := s.mem.Protect(page, int(pageSize), prot|ProtRead|ProtExec); err != nil {
			return 0, changed, fmt.Errorf("%w: make %#x readable: %w", ErrProtection, page, err)
		}
		changed = append(changed, pageProt{addr: page, size: int(pageSize), prot: prot})
	}
	return size, changed, nil
}

// scanCode sums whole instruction lengths at the start of code until
// minBytes are covered. A function ending before minBytes is accepted only
// when the rest of the region is INT3 padding.
func scanCode(dec Decoder, code []byte, minBytes int) (Boundary, error) {
	b := Boundary{Relocatable: true}
	for b.Length < minBytes {
		if b.Length >= len(code) {
			return Boundary{}, fmt.Errorf("%w: window of %d bytes exhausted", ErrDecode, len(code))
		}
		inst, err := dec.Decode(code[b.Length:])
		if err != nil {
			return Boundary{}, fmt.Errorf("%w: offset %d: %w", ErrDecode, b.Length, err)
		}
		b.Length += inst.Len
		b.Instructions = append(b.Instructions, inst.Len)
		if inst.Relative {
			b.Relocatable = false
		}
		if !inst.Terminal || b.Length >= minBytes {
			continue
		}
		if len(code) < minBytes {
			return Boundary{}, fmt.Errorf("%w: function shorter than patch", ErrDecode)
		}
		for _, c := range code[b.Length:minBytes] {
			if c != int3 {
				return Boundary{}, fmt.Errorf("%w: function shorter than patch", ErrDecode)
			}
			b.Instructions = append(b.Instructions, 1)
		}
		b.Length = minBytes
	}
	b.Code = append([]byte(nil), code[:b.Length]...)
	return b, nil
}
