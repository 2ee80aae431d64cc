// Package osmem isolates the operating system primitives an inline patcher
// needs: executable memory allocation close to a given address, page
// protection query and change, and instruction cache flushing.
package osmem

import (
	"errors"
	"os"
	"strings"
	"unsafe"
)

// Prot is a page protection set.
type Prot int

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
)

const (
	ProtNone Prot = 0
	ProtRX        = ProtRead | ProtExec
	ProtRW        = ProtRead | ProtWrite
	ProtRWX       = ProtRead | ProtWrite | ProtExec
)

func (p Prot) String() string {
	var b strings.Builder
	for _, f := range []struct {
		bit Prot
		c   byte
	}{{ProtRead, 'r'}, {ProtWrite, 'w'}, {ProtExec, 'x'}} {
		if p&f.bit != 0 {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ErrUnmapped is returned by Query for addresses outside any mapping.
var ErrUnmapped = errors.New("address not mapped")

// NearRange is the largest distance Alloc accepts for a near allocation, a
// megabyte short of what a rel32 displacement can reach.
const NearRange = 1<<31 - 1<<20

// hintStep is the distance between two allocation hints.
const hintStep = 1 << 20

// maxHints bounds the hints tried on each side of the wanted address.
const maxHints = 512

// System is the memory primitive set of the running process.
type System struct{}

// PageSize returns the protection granularity.
func (System) PageSize() int {
	return os.Getpagesize()
}

func calcBoundaries(addr uintptr, size int) (uintptr, uintptr) {
	pageSize := uintptr(os.Getpagesize())
	areaStart := addr &^ (pageSize - 1)
	areaSize := (addr + uintptr(size)) - areaStart

	return areaStart, areaSize
}

func roundUp(size int) uintptr {
	pageSize := uintptr(os.Getpagesize())
	return (uintptr(size) + pageSize - 1) &^ (pageSize - 1)
}

// Near reports whether a and b are close enough for a rel32 jump between them.
func Near(a, b uintptr) bool {
	if a > b {
		return a-b < NearRange
	}
	return b-a < NearRange
}

// searchHints calls try with hints alternating above and below near until try
// reports success.
func searchHints(near uintptr, try func(hint uintptr) bool) bool {
	base := near &^ (hintStep - 1)
	for i := uintptr(1); i <= maxHints; i++ {
		off := i * hintStep
		if base+off > base && try(base+off) {
			return true
		}
		if base > off && try(base-off) {
			return true
		}
	}
	return false
}

func makeSlice(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}
