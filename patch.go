package detour

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/apex/log"
)

// State is the lifecycle state of a Patch.
type State int

const (
	Uninstalled State = iota
	Installing
	Installed
	Uninstalling
)

func (s State) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Uninstalling:
		return "uninstalling"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Patch redirects one target function to one hook function. The
// overwritten prologue of the target lives on in a trampoline, so the hook
// can still call the original code.
//
// Install and Uninstall of the same pair nest: the target is restored when
// the last Install is undone. A Patch is made with NewPatch and must not be
// copied.
type Patch struct {
	mu  sync.Mutex
	cfg config

	state  State
	refs   int
	target uintptr
	hook   uintptr
	// overwritten length at target
	length   int
	original []byte
	stub     []byte
	tramp    *trampoline
}

// NewPatch returns an uninstalled Patch.
func NewPatch(opts ...Option) *Patch {
	return &Patch{cfg: newConfig(opts)}
}

// Install makes calls to target land on hook. Installing the pair already
// installed only counts one more reference. On error nothing at target has
// changed and the Patch is still uninstalled.
func (p *Patch) Install(target, hook uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Installed:
		if p.target == target && p.hook == hook {
			p.refs++
			p.entry().Debug("install reference")
			return nil
		}
		return fmt.Errorf("%w: patch holds %#x -> %#x", ErrState, p.target, p.hook)
	case Uninstalled:
	default:
		return fmt.Errorf("%w: %v", ErrState, p.state)
	}
	if target == 0 || hook == 0 {
		return fmt.Errorf("%w: nil code address", ErrInputType)
	}
	if p.cfg.arch == nil {
		return ErrUnsupported
	}
	p.state = Installing
	if err := p.install(target, hook); err != nil {
		p.state = Uninstalled
		p.cfg.log().WithFields(log.Fields{
			"target": fmt.Sprintf("%#x", target),
			"hook":   fmt.Sprintf("%#x", hook),
		}).WithError(err).Warn("install failed")
		return err
	}
	p.state = Installed
	p.entry().Info("installed")
	return nil
}

func (p *Patch) install(target, hook uintptr) (err error) {
	mem, arch := p.cfg.mem, p.cfg.arch
	stub, err := JumpStub(arch, p.cfg.kind, target, hook)
	if err != nil {
		return err
	}
	if err := checkSite(target, len(stub)); err != nil {
		return err
	}
	scanner := &Scanner{mem: mem, dec: arch.Decoder(), window: p.cfg.window}
	b, err := scanner.Scan(target, len(stub))
	if err != nil {
		return err
	}
	if !b.Relocatable {
		return fmt.Errorf("%w: prologue of %#x", ErrRelativeAddr, target)
	}
	if err := reserveSite(target, b.Length); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			releaseSite(target)
		}
	}()
	tramp, err := buildTrampoline(mem, arch, b.Code, target+uintptr(b.Length))
	if err != nil {
		return err
	}
	if err := writeCode(mem, target, stub); err != nil {
		_ = tramp.free(mem)
		return err
	}
	p.target, p.hook = target, hook
	p.length = b.Length
	p.original = b.Code
	p.stub = stub
	p.tramp = tramp
	p.refs = 1
	return nil
}

// Uninstall undoes one Install. The target gets its original code back when
// no reference is left.
func (p *Patch) Uninstall() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uninstall(false)
}

// Close restores the target regardless of how many times the pair was
// installed. Closing an uninstalled Patch does nothing.
func (p *Patch) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Installed {
		return nil
	}
	return p.uninstall(true)
}

func (p *Patch) uninstall(force bool) error {
	if p.state != Installed {
		return fmt.Errorf("%w: uninstall while %v", ErrState, p.state)
	}
	if p.refs > 1 && !force {
		p.refs--
		p.entry().Debug("uninstall reference")
		return nil
	}
	refs := p.refs
	p.state = Uninstalling
	if err := writeCode(p.cfg.mem, p.target, p.original); err != nil {
		p.state = Installed
		p.refs = refs
		p.entry().WithError(err).Warn("uninstall failed")
		return err
	}
	if err := p.tramp.free(p.cfg.mem); err != nil {
		p.entry().WithError(err).Warn("trampoline leaked")
	}
	releaseSite(p.target)
	p.entry().Info("uninstalled")
	p.state = Uninstalled
	p.refs = 0
	p.target, p.hook = 0, 0
	p.length = 0
	p.original, p.stub = nil, nil
	p.tramp = nil
	return nil
}

func (p *Patch) entry() *log.Entry {
	l := p.cfg.log()
	f := log.Fields{
		"target": fmt.Sprintf("%#x", p.target),
		"hook":   fmt.Sprintf("%#x", p.hook),
		"length": p.length,
		"refs":   p.refs,
	}
	if p.tramp != nil {
		f["trampoline"] = fmt.Sprintf("%#x", p.tramp.addr)
	}
	return l.WithFields(f)
}

// State returns the lifecycle state.
func (p *Patch) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// RefCount returns how many Installs are not yet undone.
func (p *Patch) RefCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs
}

func (p *Patch) Target() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *Patch) Hook() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hook
}

// Trampoline returns the address calling the original target code, or 0
// when not installed.
func (p *Patch) Trampoline() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tramp == nil {
		return 0
	}
	return p.tramp.addr
}

// Length returns the number of prologue bytes moved to the trampoline.
func (p *Patch) Length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.length
}

// OriginalBytes returns a copy of the overwritten prologue.
func (p *Patch) OriginalBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.original)
}

// StubBytes returns a copy of the jump written over the target.
func (p *Patch) StubBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.stub)
}
