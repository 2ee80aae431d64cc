package detour

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fengyoulin/detour/internal/objsym"
)

var (
	// ErrDecode means no instruction boundary could be established at the
	// target within the scan window.
	ErrDecode = errors.New("cannot find instruction boundary")
	// ErrAllocation means executable memory for the trampoline could not be
	// reserved.
	ErrAllocation = errors.New("cannot allocate executable memory")
	// ErrProtection means the protection of a code page could not be changed
	// or the code written there could not be made visible.
	ErrProtection = errors.New("cannot change memory protection")
	// ErrState means the call does not fit the patch state: a second pair on
	// one Patch, or Uninstall without Install.
	ErrState = errors.New("invalid hook state")
	// ErrRelativeAddr means the overwritten prologue holds position
	// dependent instructions and cannot be moved to a trampoline.
	ErrRelativeAddr = errors.New("relative address in instruction")
	// ErrOutOfRange means a rel32 jump cannot reach its destination.
	ErrOutOfRange = errors.New("jump destination out of rel32 range")
	// ErrDoubleHook means the target overlaps a site already patched.
	ErrDoubleHook = errors.New("double hook")
	// ErrHookNotFound means no hook is registered under the name.
	ErrHookNotFound = errors.New("hook not found")
	// ErrDifferentType means target and hook are of different types.
	ErrDifferentType = errors.New("inputs are of different type")
	// ErrInputType means inputs are not func type.
	ErrInputType = errors.New("inputs are not func type")
	// ErrSymbolNotFound means the executable has no such symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrNoSymbols means the executable was linked without a symbol table,
	// as with -ldflags=-s.
	ErrNoSymbols = objsym.ErrNoSymbols
	// ErrUnsupported means there is no jump stub generator for this CPU.
	ErrUnsupported = errors.New("unsupported architecture")
)

// site is a patched byte range.
type site struct {
	start, end uintptr
}

var (
	// sites patched by this package, keyed by start address
	sites = make(map[uintptr]site)
	// protect the sites map
	lock sync.Mutex
)

// checkSite fails when [start, start+size) overlaps a patched site.
func checkSite(start uintptr, size int) error {
	lock.Lock()
	defer lock.Unlock()
	return overlap(start, size)
}

// reserveSite claims [start, start+size).
func reserveSite(start uintptr, size int) error {
	lock.Lock()
	defer lock.Unlock()
	if err := overlap(start, size); err != nil {
		return err
	}
	sites[start] = site{start: start, end: start + uintptr(size)}
	return nil
}

func overlap(start uintptr, size int) error {
	end := start + uintptr(size)
	for _, s := range sites {
		if start < s.end && s.start < end {
			return fmt.Errorf("%w: [%#x, %#x) overlaps [%#x, %#x)", ErrDoubleHook, start, end, s.start, s.end)
		}
	}
	return nil
}

func releaseSite(start uintptr) {
	lock.Lock()
	defer lock.Unlock()
	delete(sites, start)
}

// InstalledSites returns the number of sites currently patched by this package.
func InstalledSites() int {
	lock.Lock()
	defer lock.Unlock()
	return len(sites)
}
