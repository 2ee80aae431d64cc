package detour

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Hook binds a Patch to one typed pair of functions.
type Hook[T any] struct {
	patch      *Patch
	target     T
	targetAddr uintptr
	hookAddr   uintptr
}

// NewHook returns an uninstalled Hook redirecting target to hook.
func NewHook[T any](target, hook T, opts ...Option) (*Hook[T], error) {
	ta, err := FuncAddr(target)
	if err != nil {
		return nil, err
	}
	ha, err := FuncAddr(hook)
	if err != nil {
		return nil, err
	}
	return &Hook[T]{
		patch:      NewPatch(opts...),
		target:     target,
		targetAddr: ta,
		hookAddr:   ha,
	}, nil
}

func (h *Hook[T]) Install() error {
	return h.patch.Install(h.targetAddr, h.hookAddr)
}

func (h *Hook[T]) Uninstall() error {
	return h.patch.Uninstall()
}

// Original returns a callable running the unhooked target. Before Install
// and after the last Uninstall that is the target itself.
func (h *Hook[T]) Original() T {
	fn, err := TrampolineFunc[T](h.patch)
	if err != nil {
		return h.target
	}
	return fn
}

func (h *Hook[T]) Patch() *Patch {
	return h.patch
}

func (h *Hook[T]) Close() error {
	return h.patch.Close()
}

type binding struct {
	name  string
	patch *Patch
	// *Hook[T] of typed bindings
	typed any
}

// Registry keeps named patches for the lifetime of a host component and
// tears them all down on Close.
type Registry struct {
	mu       sync.Mutex
	opts     []Option
	bindings []*binding
}

// NewRegistry returns an empty Registry. The options apply to every patch
// it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts}
}

// Register installs target -> hook under name. Registering the same pair
// under the same name again counts one more reference on the existing Hook.
func Register[T any](r *Registry, name string, target, hook T) (*Hook[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b := r.find(name); b != nil {
		h, ok := b.typed.(*Hook[T])
		if !ok {
			return nil, fmt.Errorf("%w: %q is bound to another type", ErrState, name)
		}
		ta, err := FuncAddr(target)
		if err != nil {
			return nil, err
		}
		ha, err := FuncAddr(hook)
		if err != nil {
			return nil, err
		}
		if ta != h.targetAddr || ha != h.hookAddr {
			return nil, fmt.Errorf("%w: %q is bound to another pair", ErrState, name)
		}
		return h, h.Install()
	}
	h, err := NewHook(target, hook, r.opts...)
	if err != nil {
		return nil, err
	}
	if err := h.Install(); err != nil {
		return nil, fmt.Errorf("register %q: %w", name, err)
	}
	r.bindings = append(r.bindings, &binding{name: name, patch: h.patch, typed: h})
	return h, nil
}

// InstallAddr installs target -> hook under name.
func (r *Registry) InstallAddr(name string, target, hook uintptr) (*Patch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b := r.find(name); b != nil {
		if err := b.patch.Install(target, hook); err != nil {
			return nil, fmt.Errorf("install %q: %w", name, err)
		}
		return b.patch, nil
	}
	p := NewPatch(r.opts...)
	if err := p.Install(target, hook); err != nil {
		return nil, fmt.Errorf("install %q: %w", name, err)
	}
	r.bindings = append(r.bindings, &binding{name: name, patch: p})
	return p, nil
}

// InstallSymbol installs a patch from the function of the running
// executable called symbol to hook.
func (r *Registry) InstallSymbol(name, symbol string, hook uintptr) (*Patch, error) {
	target, err := LookupSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return r.InstallAddr(name, target, hook)
}

// Uninstall undoes one install under name and forgets the binding once the
// target is restored.
func (r *Registry) Uninstall(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.find(name)
	if b == nil {
		return fmt.Errorf("%w: %q", ErrHookNotFound, name)
	}
	if err := b.patch.Uninstall(); err != nil {
		return fmt.Errorf("uninstall %q: %w", name, err)
	}
	if b.patch.State() == Uninstalled {
		r.remove(b)
	}
	return nil
}

// Lookup returns the patch bound to name.
func (r *Registry) Lookup(name string) (*Patch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b := r.find(name); b != nil {
		return b.patch, true
	}
	return nil, false
}

// Names lists the bindings in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		names = append(names, b.name)
	}
	return names
}

// Close restores every target, most recent binding first. Bindings that
// fail to close stay registered.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for i := len(r.bindings) - 1; i >= 0; i-- {
		b := r.bindings[i]
		if err := b.patch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", b.name, err))
			continue
		}
		r.bindings = slices.Delete(r.bindings, i, i+1)
	}
	return errors.Join(errs...)
}

func (r *Registry) find(name string) *binding {
	for _, b := range r.bindings {
		if b.name == name {
			return b
		}
	}
	return nil
}

func (r *Registry) remove(b *binding) {
	r.bindings = slices.DeleteFunc(r.bindings, func(x *binding) bool {
		return x == b
	})
}
