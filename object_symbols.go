package detour

import (
	"fmt"
	"os"
	"reflect"
	"runtime"
	"sync"

	"github.com/fengyoulin/detour/internal/objsym"
)

// Symbols returns the function symbols of the object file at path with
// their link time addresses.
func Symbols(path string) (map[string]uintptr, error) {
	return objsym.ReadSymbols(path)
}

var executable struct {
	once  sync.Once
	syms  map[string]uintptr
	slide uintptr
	err   error
}

// LookupSymbol returns the runtime address of a function of the running
// executable, by its symbol name.
func LookupSymbol(name string) (uintptr, error) {
	executable.once.Do(loadSelf)
	if executable.err != nil {
		return 0, executable.err
	}
	addr, ok := executable.syms[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return addr + executable.slide, nil
}

// loadSelf reads the symbols of the executable and works out how far it was
// moved at load time from where one known function runs.
func loadSelf() {
	path, err := os.Executable()
	if err != nil {
		executable.err = err
		return
	}
	syms, err := objsym.ReadSymbols(path)
	if err != nil {
		executable.err = err
		return
	}
	anchor := reflect.ValueOf(LookupSymbol).Pointer()
	name := runtime.FuncForPC(anchor).Name()
	link, ok := syms[name]
	if !ok {
		executable.err = fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
		return
	}
	executable.syms = syms
	executable.slide = anchor - link
}
