// Package objsym reads function symbol tables out of executable images.
package objsym

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoSymbols means the image was linked without a symbol table.
var ErrNoSymbols = errors.New("no symbol table")

// rawFile is one object format.
type rawFile interface {
	// Symbols maps names to link-time virtual addresses.
	Symbols() (map[string]uintptr, error)
}

var objType = []func(io.ReaderAt) (rawFile, error){
	openElf,
	openMacho,
	openPE,
}

// ReadSymbols returns the symbol table of the executable image at name.
func ReadSymbols(name string) (map[string]uintptr, error) {
	r, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return Read(r)
}

// Read tries every known object format on r.
func Read(r io.ReaderAt) (map[string]uintptr, error) {
	var errs error
	for _, try := range objType {
		raw, err := try(r)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		return raw.Symbols()
	}
	return nil, fmt.Errorf("unrecognized object file: %w", errs)
}
