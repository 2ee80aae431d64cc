//go:build !unix && !windows

package osmem

import "errors"

func (System) Protect(addr uintptr, size int, prot Prot) error { return errors.ErrUnsupported }

func (System) Query(addr uintptr) (Prot, error) { return ProtNone, errors.ErrUnsupported }

func (System) Alloc(near uintptr, size int) (uintptr, error) { return 0, errors.ErrUnsupported }

func (System) Free(addr uintptr, size int) error { return errors.ErrUnsupported }

func (System) FlushInstructionCache(addr uintptr, size int) error { return errors.ErrUnsupported }
