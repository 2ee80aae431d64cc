package objsym

import (
	"debug/pe"
	"fmt"
	"io"
)

type peFile struct {
	pe *pe.File
}

func openPE(r io.ReaderAt) (rawFile, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &peFile{f}, nil
}

// Symbols resolves COFF symbol values, which are section relative, to
// virtual addresses at the preferred image base.
func (f *peFile) Symbols() (map[string]uintptr, error) {
	if len(f.pe.Symbols) == 0 {
		return nil, fmt.Errorf("pe: %w", ErrNoSymbols)
	}
	out := make(map[string]uintptr, len(f.pe.Symbols))
	base := f.imageBase()
	for _, s := range f.pe.Symbols {
		if s.SectionNumber <= 0 || int(s.SectionNumber) > len(f.pe.Sections) {
			continue
		}
		sect := f.pe.Sections[s.SectionNumber-1]
		out[s.Name] = uintptr(base + uint64(sect.VirtualAddress) + uint64(s.Value))
	}
	return out, nil
}

func (f *peFile) imageBase() uint64 {
	switch oh := f.pe.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		return oh.ImageBase
	case *pe.OptionalHeader32:
		return uint64(oh.ImageBase)
	}
	return 0
}
