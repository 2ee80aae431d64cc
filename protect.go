package detour

import (
	"bytes"
	"errors"
	"fmt"
	"unsafe"
)

type pageProt struct {
	addr uintptr
	size int
	prot Prot
}

func makeSlice(addr uintptr, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// queryPages records the protection of every page overlapping
// [addr, addr+size).
func queryPages(mem Memory, addr uintptr, size int) ([]pageProt, error) {
	pageSize := uintptr(mem.PageSize())
	var pages []pageProt
	for page := addr &^ (pageSize - 1); page < addr+uintptr(size); page += pageSize {
		prot, err := mem.Query(page)
		if err != nil {
			return nil, fmt.Errorf("%w: query %#x: %w", ErrProtection, page, err)
		}
		pages = append(pages, pageProt{addr: page, size: int(pageSize), prot: prot})
	}
	return pages, nil
}

func restorePages(mem Memory, pages []pageProt) error {
	var errs []error
	for _, p := range pages {
		if err := mem.Protect(p.addr, p.size, p.prot); err != nil {
			errs = append(errs, fmt.Errorf("%w: restore %#x to %v: %w", ErrProtection, p.addr, p.prot, err))
		}
	}
	return errors.Join(errs...)
}

// writeCode copies data over live code at addr. The pages are writable only
// for the copy and get their old protection back afterwards. On error the
// bytes at addr are what they were before the call, unless the pages could
// not even be made writable again for the rollback.
func writeCode(mem Memory, addr uintptr, data []byte) error {
	pages, err := queryPages(mem, addr, len(data))
	if err != nil {
		return err
	}
	if err := mem.Protect(addr, len(data), ProtRead|ProtWrite|ProtExec); err != nil {
		return fmt.Errorf("%w: unprotect %#x: %w", ErrProtection, addr, err)
	}
	code := makeSlice(addr, len(data))
	old := bytes.Clone(code)
	copy(code, data)
	if err := restorePages(mem, pages); err != nil {
		return errors.Join(err, rollback(mem, addr, old, pages))
	}
	if err := mem.FlushInstructionCache(addr, len(data)); err != nil {
		return fmt.Errorf("%w: flush %#x: %w", ErrProtection, addr, err)
	}
	return nil
}

// rollback puts old back at addr after a partial restore left some of the
// pages read-only.
func rollback(mem Memory, addr uintptr, old []byte, pages []pageProt) error {
	if err := mem.Protect(addr, len(old), ProtRead|ProtWrite|ProtExec); err != nil {
		return fmt.Errorf("%w: code at %#x left modified: %w", ErrProtection, addr, err)
	}
	copy(makeSlice(addr, len(old)), old)
	_ = restorePages(mem, pages)
	_ = mem.FlushInstructionCache(addr, len(old))
	return nil
}
