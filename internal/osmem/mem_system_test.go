//go:build linux || windows

package osmem

import (
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocNear(t *testing.T) {
	var sys System
	near := reflect.ValueOf(TestAllocNear).Pointer()

	addr, err := sys.Alloc(near, 64)
	require.NoError(t, err)
	defer func() { assert.NoError(t, sys.Free(addr, 64)) }()

	assert.True(t, Near(addr, near), "block %#x not near %#x", addr, near)
	assert.Zero(t, addr%uintptr(os.Getpagesize()))

	buf := makeSlice(addr, 64)
	buf[0], buf[63] = 0xAA, 0x55
	assert.Equal(t, byte(0xAA), buf[0])
}

func TestAllocAnywhere(t *testing.T) {
	var sys System
	addr, err := sys.Alloc(0, 1)
	require.NoError(t, err)
	assert.NotZero(t, addr)
	assert.NoError(t, sys.Free(addr, 1))
}

func TestProtectQuery(t *testing.T) {
	var sys System
	addr, err := sys.Alloc(0, 16)
	require.NoError(t, err)
	defer sys.Free(addr, 16)

	p, err := sys.Query(addr)
	require.NoError(t, err)
	assert.Equal(t, ProtRW, p)

	require.NoError(t, sys.Protect(addr, 16, ProtRX))
	p, err = sys.Query(addr + 8)
	require.NoError(t, err)
	assert.Equal(t, ProtRX, p)

	require.NoError(t, sys.FlushInstructionCache(addr, 16))
}

func TestQueryText(t *testing.T) {
	var sys System
	p, err := sys.Query(reflect.ValueOf(TestQueryText).Pointer())
	require.NoError(t, err)
	assert.NotZero(t, p&ProtExec)
	assert.NotZero(t, p&ProtRead)
}

func TestQueryUnmapped(t *testing.T) {
	var sys System
	_, err := sys.Query(8)
	assert.ErrorIs(t, err, ErrUnmapped)
}
