package objsym

import (
	"debug/macho"
	"fmt"
	"io"
	"strings"
)

type machoFile struct {
	macho *macho.File
}

func openMacho(r io.ReaderAt) (rawFile, error) {
	f, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &machoFile{f}, nil
}

func (f *machoFile) Symbols() (map[string]uintptr, error) {
	if f.macho.Symtab == nil {
		return nil, fmt.Errorf("macho: %w", ErrNoSymbols)
	}
	out := make(map[string]uintptr)
	for _, s := range f.macho.Symtab.Syms {
		if s.Value == 0 || s.Sect == 0 {
			continue
		}
		// The Mach-O symbol table prefixes every name with an underscore.
		out[strings.TrimPrefix(s.Name, "_")] = uintptr(s.Value)
	}
	return out, nil
}
