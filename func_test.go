package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:noinline
func addInts(a, b int) int {
	return a + b
}

//go:noinline
func subInts(a, b int) int {
	return a - b
}

func TestFuncAddr(t *testing.T) {
	addr, err := FuncAddr(addInts)
	require.NoError(t, err)
	assert.NotZero(t, addr)

	_, err = FuncAddr(42)
	assert.ErrorIs(t, err, ErrInputType)

	var nilFunc func()
	_, err = FuncAddr(nilFunc)
	assert.ErrorIs(t, err, ErrInputType)
}

func TestInstallFuncsTypes(t *testing.T) {
	p := NewPatch(WithArch(AMD64Arch{}))
	assert.ErrorIs(t, p.InstallFuncs(addInts, 1), ErrInputType)
	assert.ErrorIs(t, p.InstallFuncs(addInts, func(int) int { return 0 }), ErrDifferentType)
	assert.Equal(t, Uninstalled, p.State())
}

func TestTrampolineFuncErrors(t *testing.T) {
	p := NewPatch(WithArch(AMD64Arch{}))
	_, err := TrampolineFunc[func() int](p)
	assert.ErrorIs(t, err, ErrState)

	_, err = TrampolineFunc[int](p)
	assert.ErrorIs(t, err, ErrInputType)
}

func TestMakeFunc(t *testing.T) {
	addr, err := FuncAddr(subInts)
	require.NoError(t, err)
	sub := makeFunc[func(a, b int) int](addr)
	assert.Equal(t, 4, sub(7, 3))
}

func TestHookOriginalBeforeInstall(t *testing.T) {
	h, err := NewHook(addInts, subInts)
	require.NoError(t, err)
	assert.Equal(t, 5, h.Original()(2, 3))
	assert.Equal(t, Uninstalled, h.Patch().State())
	assert.ErrorIs(t, h.Uninstall(), ErrState)
	assert.NoError(t, h.Close())

	_, err = NewHook[any](1, 2)
	assert.ErrorIs(t, err, ErrInputType)
}
