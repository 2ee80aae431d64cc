//go:build unix && !linux

package osmem

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Query reports whether the page holding addr is mapped. There is no portable
// way to read a page's protection here, so a mapped page is taken to be
// read+exec, which is what the linker maps text with. msync fails with ENOMEM
// on pages outside any mapping.
func (System) Query(addr uintptr) (Prot, error) {
	page, _ := calcBoundaries(addr, 1)
	err := unix.Msync(makeSlice(page, uintptr(os.Getpagesize())), unix.MS_ASYNC)
	if errors.Is(err, unix.ENOMEM) {
		return ProtNone, fmt.Errorf("%#x: %w", addr, ErrUnmapped)
	}
	if err != nil {
		return ProtNone, fmt.Errorf("query %#x: %w", addr, err)
	}
	return ProtRX, nil
}
