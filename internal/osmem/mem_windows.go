package osmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procFlushInstructionCache = windows.NewLazySystemDLL("kernel32.dll").NewProc("FlushInstructionCache")

// allocGranularity is the VirtualAlloc placement granularity.
const allocGranularity = 64 << 10

// Protect sets the protection of every page overlapping [addr, addr+size).
func (System) Protect(addr uintptr, size int, prot Prot) error {
	var old uint32
	return windows.VirtualProtect(addr, uintptr(size), winProt(prot), &old)
}

// Query returns the protection of the page holding addr.
func (System) Query(addr uintptr) (Prot, error) {
	var mbi windows.MemoryBasicInformation
	err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi))
	if err != nil {
		return ProtNone, err
	}
	if mbi.State != windows.MEM_COMMIT {
		return ProtNone, fmt.Errorf("%#x: %w", addr, ErrUnmapped)
	}
	return fromWinProt(mbi.Protect), nil
}

// Alloc commits size bytes of read-write memory, preferably within NearRange
// of near. A zero near means anywhere.
func (System) Alloc(near uintptr, size int) (uintptr, error) {
	length := roundUp(size)
	var found uintptr
	if near != 0 {
		searchHints(near, func(hint uintptr) bool {
			hint &^= allocGranularity - 1
			p, err := windows.VirtualAlloc(hint, length, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
			if err != nil || p == 0 {
				return false
			}
			if Near(p, near) && Near(p+length, near) {
				found = p
				return true
			}
			_ = windows.VirtualFree(p, 0, windows.MEM_RELEASE)
			return false
		})
	}
	if found != 0 {
		return found, nil
	}
	p, err := windows.VirtualAlloc(0, length, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, err
	}
	return p, nil
}

// Free releases a block returned by Alloc.
func (System) Free(addr uintptr, size int) error {
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}

// FlushInstructionCache discards stale decoded instructions for the range.
func (System) FlushInstructionCache(addr uintptr, size int) error {
	r, _, err := procFlushInstructionCache.Call(uintptr(windows.CurrentProcess()), addr, uintptr(size))
	if r == 0 {
		return err
	}
	return nil
}

func winProt(p Prot) uint32 {
	switch p {
	case ProtNone:
		return windows.PAGE_NOACCESS
	case ProtRead:
		return windows.PAGE_READONLY
	case ProtRW:
		return windows.PAGE_READWRITE
	case ProtExec:
		return windows.PAGE_EXECUTE
	case ProtRX:
		return windows.PAGE_EXECUTE_READ
	default:
		if p&ProtExec != 0 {
			return windows.PAGE_EXECUTE_READWRITE
		}
		return windows.PAGE_READWRITE
	}
}

func fromWinProt(w uint32) Prot {
	switch w &^ (windows.PAGE_GUARD | windows.PAGE_NOCACHE | windows.PAGE_WRITECOMBINE) {
	case windows.PAGE_READONLY:
		return ProtRead
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return ProtRW
	case windows.PAGE_EXECUTE:
		return ProtExec
	case windows.PAGE_EXECUTE_READ:
		return ProtRX
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return ProtRWX
	}
	return ProtNone
}
