//go:build unix

package osmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Protect sets the protection of every page overlapping [addr, addr+size).
func (System) Protect(addr uintptr, size int, prot Prot) error {
	start, length := calcBoundaries(addr, size)
	return unix.Mprotect(makeSlice(start, length), unixProt(prot))
}

// Alloc maps size bytes of read-write memory, preferably within NearRange of
// near. A zero near means anywhere.
func (System) Alloc(near uintptr, size int) (uintptr, error) {
	length := roundUp(size)
	var found uintptr
	if near != 0 {
		searchHints(near, func(hint uintptr) bool {
			p, err := mmap(hint, length)
			if err != nil {
				return false
			}
			if Near(uintptr(p), near) && Near(uintptr(p)+length, near) {
				found = uintptr(p)
				return true
			}
			_ = unix.MunmapPtr(p, length)
			return false
		})
	}
	if found != 0 {
		return found, nil
	}
	p, err := mmap(0, length)
	if err != nil {
		return 0, err
	}
	return uintptr(p), nil
}

// Free unmaps a block returned by Alloc.
func (System) Free(addr uintptr, size int) error {
	return unix.MunmapPtr(unsafe.Pointer(addr), roundUp(size))
}

// FlushInstructionCache is a no-op on unix: x86 keeps the instruction cache
// coherent with stores and the jump into patched code serialises fetch.
func (System) FlushInstructionCache(addr uintptr, size int) error {
	return nil
}

func mmap(hint, length uintptr) (unsafe.Pointer, error) {
	return unix.MmapPtr(-1, 0, unsafe.Pointer(hint), length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func unixProt(p Prot) int {
	prot := unix.PROT_NONE
	if p&ProtRead != 0 {
		prot |= unix.PROT_READ
	}
	if p&ProtWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	if p&ProtExec != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}
