package detour

import (
	"github.com/apex/log"

	"github.com/fengyoulin/detour/internal/osmem"
)

// Prot is a page protection set.
type Prot = osmem.Prot

const (
	ProtRead  = osmem.ProtRead
	ProtWrite = osmem.ProtWrite
	ProtExec  = osmem.ProtExec
)

// Memory is the set of operating system primitives a Patch works with.
type Memory interface {
	// PageSize returns the protection granularity.
	PageSize() int
	// Query returns the protection of the page holding addr.
	Query(addr uintptr) (Prot, error)
	// Protect sets the protection of every page overlapping [addr, addr+size).
	Protect(addr uintptr, size int, prot Prot) error
	// Alloc returns size bytes of writable memory, preferably within rel32
	// reach of near.
	Alloc(near uintptr, size int) (uintptr, error)
	Free(addr uintptr, size int) error
	FlushInstructionCache(addr uintptr, size int) error
}

// DefaultScanWindow bounds how far past a target the scanner decodes.
const DefaultScanWindow = 64

type config struct {
	mem     Memory
	arch    Arch
	kind    JumpKind
	window  int
	logger  log.Interface
	scratch *Reg
}

// Option configures a Patch, Hook or Registry.
type Option func(*config)

// WithMemory replaces the operating system primitives.
func WithMemory(mem Memory) Option {
	return func(c *config) {
		c.mem = mem
	}
}

// WithArch replaces the jump stub generator of the running CPU.
func WithArch(arch Arch) Option {
	return func(c *config) {
		c.arch = arch
	}
}

// WithJumpKind selects the stub written over targets. Default is JumpAuto.
func WithJumpKind(kind JumpKind) Option {
	return func(c *config) {
		c.kind = kind
	}
}

// WithScratch selects the register clobbered by absolute x86-64 jumps.
// Default is R11; RAX only suits targets following a C calling convention.
func WithScratch(r Reg) Option {
	return func(c *config) {
		c.scratch = &r
	}
}

// WithScanWindow bounds how many bytes past a target may be decoded.
func WithScanWindow(n int) Option {
	return func(c *config) {
		c.window = n
	}
}

// WithLogger routes log entries of a Patch to l instead of the package
// logger.
func WithLogger(l log.Interface) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) config {
	c := config{
		mem:    osmem.System{},
		arch:   nativeArch(),
		kind:   JumpAuto,
		window: DefaultScanWindow,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if a, ok := c.arch.(AMD64Arch); ok && c.scratch != nil {
		a.Scratch = *c.scratch
		c.arch = a
	}
	if c.window <= 0 {
		c.window = DefaultScanWindow
	}
	return c
}

// log returns the configured logger, falling back to the package one.
func (c *config) log() log.Interface {
	if c.logger != nil {
		return c.logger
	}
	return packageLogger()
}
