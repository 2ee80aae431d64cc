package detour

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

// ProcHook redirects an exported function of a system DLL to a Go callback.
type ProcHook struct {
	proc  *windows.LazyProc
	patch *Patch
}

// HookProc patches the export proc of dll to call hook, a func accepted by
// windows.NewCallback.
func HookProc(dll, proc string, hook any, opts ...Option) (*ProcHook, error) {
	p := windows.NewLazySystemDLL(dll).NewProc(proc)
	if err := p.Find(); err != nil {
		return nil, fmt.Errorf("%w: %s!%s: %w", ErrSymbolNotFound, dll, proc, err)
	}
	patch := NewPatch(opts...)
	if err := patch.Install(p.Addr(), windows.NewCallback(hook)); err != nil {
		return nil, fmt.Errorf("hook %s!%s: %w", dll, proc, err)
	}
	return &ProcHook{proc: p, patch: patch}, nil
}

// CallOriginal calls the unhooked export.
func (h *ProcHook) CallOriginal(args ...uintptr) (uintptr, error) {
	t := h.patch.Trampoline()
	if t == 0 {
		return 0, fmt.Errorf("%w: %s is not hooked", ErrState, h.proc.Name)
	}
	r, _, errno := syscall.SyscallN(t, args...)
	if errno != 0 {
		return r, errno
	}
	return r, nil
}

func (h *ProcHook) Patch() *Patch {
	return h.patch
}

func (h *ProcHook) Close() error {
	return h.patch.Close()
}
