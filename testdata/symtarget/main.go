// Command symtarget hooks one of its own functions by symbol name and prints
// what the hooked and restored function return.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fengyoulin/detour"
)

var orig func(a, b int) int

//go:noinline
func answer(a, b int) int {
	return a + b
}

//go:noinline
func hook(a, b int) int {
	return orig(a, b) * 10
}

func main() {
	to, err := detour.FuncAddr(hook)
	if err != nil {
		fail(err)
	}
	r := detour.NewRegistry()
	p, err := r.InstallSymbol("answer", "main.answer", to)
	if errors.Is(err, detour.ErrRelativeAddr) || errors.Is(err, detour.ErrDecode) {
		fmt.Println("unmovable")
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
	if orig, err = detour.TrampolineFunc[func(a, b int) int](p); err != nil {
		fail(err)
	}
	fmt.Println(answer(2, 3))
	if err = r.Close(); err != nil {
		fail(err)
	}
	fmt.Println(answer(2, 3))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
