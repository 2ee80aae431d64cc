package detour

import (
	"fmt"
	"reflect"
	"unsafe"
)

// funcval is the runtime layout of a Go func value.
type funcval struct {
	fn uintptr
	// variable-size, fn-specific data here
}

// FuncAddr returns the entry address of the code behind a func value.
func FuncAddr(fn any) (uintptr, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return 0, ErrInputType
	}
	if v.IsNil() {
		return 0, fmt.Errorf("%w: nil func", ErrInputType)
	}
	return v.Pointer(), nil
}

// InstallFuncs installs a patch from target to hook, both func values of the
// same type. The hook must be a top-level function: the jump into it does
// not carry a closure context.
func (p *Patch) InstallFuncs(target, hook any) error {
	vt := reflect.ValueOf(target)
	vh := reflect.ValueOf(hook)
	if vt.Kind() != reflect.Func || vh.Kind() != reflect.Func {
		return ErrInputType
	}
	if vt.Type() != vh.Type() {
		return ErrDifferentType
	}
	from, err := FuncAddr(target)
	if err != nil {
		return err
	}
	to, err := FuncAddr(hook)
	if err != nil {
		return err
	}
	return p.Install(from, to)
}

// InstallFunc is the typed form of InstallFuncs.
func InstallFunc[T any](p *Patch, target, hook T) error {
	return p.InstallFuncs(target, hook)
}

// TrampolineFunc returns the original code of the patched target as a
// callable of its own type.
func TrampolineFunc[T any](p *Patch) (T, error) {
	var fn T
	if reflect.TypeFor[T]().Kind() != reflect.Func {
		return fn, ErrInputType
	}
	addr := p.Trampoline()
	if addr == 0 {
		return fn, fmt.Errorf("%w: no trampoline", ErrState)
	}
	return makeFunc[T](addr), nil
}

// makeFunc turns a code address into a func value of type T.
func makeFunc[T any](addr uintptr) T {
	var fn T
	*(*unsafe.Pointer)(unsafe.Pointer(&fn)) = unsafe.Pointer(&funcval{fn: addr})
	return fn
}
