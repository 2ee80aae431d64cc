package osmem

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// Query returns the protection of the page holding addr, as listed in
// /proc/self/maps.
func (System) Query(addr uintptr) (Prot, error) {
	self, err := procfs.Self()
	if err != nil {
		return ProtNone, fmt.Errorf("open /proc/self: %w", err)
	}
	maps, err := self.ProcMaps()
	if err != nil {
		return ProtNone, fmt.Errorf("read memory map: %w", err)
	}
	for _, m := range maps {
		if addr < m.StartAddr || addr >= m.EndAddr {
			continue
		}
		var p Prot
		if m.Perms.Read {
			p |= ProtRead
		}
		if m.Perms.Write {
			p |= ProtWrite
		}
		if m.Perms.Execute {
			p |= ProtExec
		}
		return p, nil
	}
	return ProtNone, fmt.Errorf("%#x: %w", addr, ErrUnmapped)
}
