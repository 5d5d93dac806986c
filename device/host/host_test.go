package host

import (
	"math/rand/v2"
	"testing"
	"unsafe"

	"github.com/gomlx/devmem/device"
	"github.com/stretchr/testify/require"
)

func isAligned(data []byte, alignment int) bool {
	if len(data) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&data[0]))%uintptr(alignment) == 0
}

func TestAlignedAlloc(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	for range 1_000 {
		size := rng.IntN(1_000)
		data := AlignedAlloc(size, DefaultAlignment)
		require.Len(t, data, size)
		require.Equal(t, size, cap(data))
		require.True(t, isAligned(data, DefaultAlignment))
		for _, b := range data {
			require.Zero(t, b)
		}
	}
	require.Panics(t, func() { _ = AlignedAlloc(10, 12) })
	require.Panics(t, func() { _ = AlignedAlloc(-1, 8) })
}

func TestDescriptor(t *testing.T) {
	d := New()
	require.Equal(t, device.Host, d.Type())
	require.Nil(t, d.Data())
	require.NoError(t, d.CreateAllocation(16, true))
	require.Len(t, d.Data(), 16)
	require.True(t, isAligned(d.Data(), Alignment()))

	src := []byte{1, 2, 3, 4}
	require.NoError(t, d.FromHost(src))
	dst := make([]byte, 4)
	require.NoError(t, d.ToHost(dst))
	require.Equal(t, src, dst)

	err := d.FromHost(make([]byte, 17))
	require.True(t, device.IsTransferError(err))

	require.True(t, d.Equal(New()))
	require.True(t, d.Equal(d.Clone()))
	require.Nil(t, d.Clone().Data())
	require.NoError(t, d.Free())
	require.NoError(t, d.Free())
	require.Nil(t, d.Data())
}

func TestAttach(t *testing.T) {
	storage := AlignedAlloc(8, Alignment())
	storage[0] = 7
	d := New()
	d.Attach(storage)
	require.NoError(t, d.CreateAllocation(8, false))
	require.Equal(t, byte(7), d.Data()[0], "attached storage must be reused")

	// Aliased transfers are no-ops.
	require.NoError(t, d.FromHost(storage))
	require.NoError(t, d.ToHost(storage))
	require.Equal(t, byte(7), storage[0])

	require.NoError(t, d.CreateAllocation(8, true))
	require.Zero(t, storage[0])
}
