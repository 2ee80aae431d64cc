//go:build unix && !linux

package osmem

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryMapped(t *testing.T) {
	var sys System
	p, err := sys.Query(reflect.ValueOf(TestQueryMapped).Pointer())
	require.NoError(t, err)
	assert.Equal(t, ProtRX, p)
}

func TestQueryFreed(t *testing.T) {
	var sys System
	addr, err := sys.Alloc(0, 1)
	require.NoError(t, err)
	_, err = sys.Query(addr)
	require.NoError(t, err)

	require.NoError(t, sys.Free(addr, 1))
	_, err = sys.Query(addr)
	assert.ErrorIs(t, err, ErrUnmapped)
}
