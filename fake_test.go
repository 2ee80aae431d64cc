package detour

import (
	"errors"
	"os"
	"testing"
	"unsafe"

	"github.com/fengyoulin/detour/internal/osmem"
)

var errInjected = errors.New("injected")

// fakeMemory serves code held in Go buffers. Pages outside [lo, hi) are
// unmapped, protection changes are recorded but not applied.
type fakeMemory struct {
	lo, hi   uintptr
	prot     map[uintptr]Prot
	protects []pageProt
	frees    int

	blocks    [][]byte
	failAlloc bool
	failQuery bool
	failProt  func(addr uintptr, prot Prot) bool
}

func newFakeMemory(t *testing.T, pages int) (*fakeMemory, []byte) {
	t.Helper()
	ps := os.Getpagesize()
	raw := make([]byte, (pages+1)*ps)
	base := uintptr(unsafe.Pointer(&raw[0]))
	off := int((base+uintptr(ps)-1)&^uintptr(ps-1) - base)
	buf := raw[off : off+pages*ps]
	lo := uintptr(unsafe.Pointer(&buf[0]))
	m := &fakeMemory{
		lo:   lo,
		hi:   lo + uintptr(len(buf)),
		prot: make(map[uintptr]Prot),
	}
	for p := m.lo; p < m.hi; p += uintptr(ps) {
		m.prot[p] = ProtRead | ProtExec
	}
	return m, buf
}

func (m *fakeMemory) PageSize() int {
	return os.Getpagesize()
}

func (m *fakeMemory) Query(addr uintptr) (Prot, error) {
	if m.failQuery {
		return 0, errInjected
	}
	if addr < m.lo || addr >= m.hi {
		return 0, osmem.ErrUnmapped
	}
	return m.prot[addr&^uintptr(m.PageSize()-1)], nil
}

func (m *fakeMemory) Protect(addr uintptr, size int, prot Prot) error {
	if m.failProt != nil && m.failProt(addr, prot) {
		return errInjected
	}
	m.protects = append(m.protects, pageProt{addr: addr, size: size, prot: prot})
	return nil
}

func (m *fakeMemory) Alloc(near uintptr, size int) (uintptr, error) {
	if m.failAlloc {
		return 0, errInjected
	}
	b := make([]byte, size)
	m.blocks = append(m.blocks, b)
	return addrOf(b), nil
}

func (m *fakeMemory) Free(addr uintptr, size int) error {
	m.frees++
	return nil
}

func (m *fakeMemory) FlushInstructionCache(addr uintptr, size int) error {
	return nil
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}
