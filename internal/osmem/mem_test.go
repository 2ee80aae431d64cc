package osmem

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestSinglePage(t *testing.T) {
	ptr, size := calcBoundaries(0x10, 0x10)
	assert.Equal(t, uintptr(0), ptr, "incorrect page start")
	assert.Equal(t, uintptr(0x20), size)
}

func TestEndOfPage(t *testing.T) {
	pageSize := uintptr(os.Getpagesize())

	ptr, size := calcBoundaries(pageSize-0x10, 0x10)
	assert.Equal(t, uintptr(0), ptr, "incorrect page start")
	assert.Equal(t, pageSize, size)
}

func TestTwoPages(t *testing.T) {
	pageSize := uintptr(os.Getpagesize())

	ptr, size := calcBoundaries(pageSize-0x4, 0x10)
	assert.Equal(t, uintptr(0), ptr, "incorrect page start")
	assert.Equal(t, pageSize+0x10-0x4, size)
}

func TestRoundUp(t *testing.T) {
	pageSize := uintptr(os.Getpagesize())
	assert.Equal(t, pageSize, roundUp(1))
	assert.Equal(t, pageSize, roundUp(int(pageSize)))
	assert.Equal(t, 2*pageSize, roundUp(int(pageSize)+1))
}

func TestNear(t *testing.T) {
	assert.True(t, Near(0x400000, 0x400000+NearRange-1))
	assert.True(t, Near(0x400000+NearRange-1, 0x400000))
	assert.False(t, Near(0x400000, 0x400000+NearRange))
	if unsafe.Sizeof(uintptr(0)) == 8 {
		high := uint64(0x7f0000000000)
		assert.False(t, Near(uintptr(high), 0x400000))
	}
}

func TestHintOrder(t *testing.T) {
	var hints []uintptr
	searchHints(100*hintStep+5, func(hint uintptr) bool {
		hints = append(hints, hint)
		return len(hints) == 4
	})
	assert.Equal(t, []uintptr{101 * hintStep, 99 * hintStep, 102 * hintStep, 98 * hintStep}, hints)
}

func TestHintsStopAtZero(t *testing.T) {
	var hints []uintptr
	searchHints(2*hintStep, func(hint uintptr) bool {
		hints = append(hints, hint)
		return false
	})
	for _, h := range hints {
		assert.NotZero(t, h)
	}
	assert.Len(t, hints, maxHints+1)
}

func TestProtString(t *testing.T) {
	assert.Equal(t, "r-x", ProtRX.String())
	assert.Equal(t, "rw-", ProtRW.String())
	assert.Equal(t, "---", ProtNone.String())
}
