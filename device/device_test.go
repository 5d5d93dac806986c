package device

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestAllocationType(t *testing.T) {
	require.Len(t, AllocationTypeValues(), NumAllocationTypes)
	require.Equal(t, 5, int(Host))
	require.Equal(t, "GPUCUDA", GPUCUDA.String())
	require.Equal(t, "AllocationType(10)", AllocationType(NumAllocationTypes).String())

	for _, name := range []string{"GPUCUDA", "gpucuda"} {
		at, err := AllocationTypeString(name)
		require.NoError(t, err)
		require.Equal(t, GPUCUDA, at)
	}
	_, err := AllocationTypeString("tpu")
	require.Error(t, err)

	require.True(t, OneAPI.IsAAllocationType())
	require.False(t, AllocationType(-1).IsAAllocationType())
}

func TestRange(t *testing.T) {
	var nilRange *Range
	r := NewRange(1, 3, 0, 2)
	require.Equal(t, Range{RowStart: 1, ColStart: 0, RowLen: 2, ColLen: 2}, *r)
	require.Equal(t, 4, r.NumItems())

	require.True(t, nilRange.Equal(nil))
	require.False(t, nilRange.Equal(r))
	require.False(t, r.Equal(nil))
	require.True(t, r.Equal(&Range{RowStart: 1, RowLen: 2, ColLen: 2}))

	c := r.Clone()
	require.Empty(t, cmp.Diff(r, c))
	c.RowLen = 1
	require.Equal(t, 2, r.RowLen, "Clone must be independent")
	require.Nil(t, nilRange.Clone())

	require.True(t, r.Contains(3, 2))
	require.False(t, r.Contains(2, 2))
	require.False(t, (&Range{RowStart: -1, RowLen: 1, ColLen: 1}).Contains(3, 3))
	require.True(t, nilRange.Contains(0, 0))

	require.True(t, nilRange.Covers(3, 3))
	require.True(t, NewRange(0, 3, 0, 3).Covers(3, 3))
	require.False(t, r.Covers(3, 2))

	require.Equal(t, "[1:3, 0:2]", r.String())
	require.Equal(t, "[all]", nilRange.String())
}

func TestErrors(t *testing.T) {
	cause := errors.New("out of memory")
	var err error = &AllocationError{Type: GPUCUDA, Device: 1, Size: 2048, Err: cause}
	wrapped := errors.WithMessagef(err, "obtaining matrix")
	require.True(t, IsAllocationError(wrapped))
	require.False(t, IsTransferError(wrapped))
	require.ErrorIs(t, wrapped, cause)
	require.Contains(t, err.Error(), "GPUCUDA:1")
	require.Contains(t, err.Error(), "2.0 kB")

	err = &TransferError{Type: FPGAIntel, Direction: ToHost, Size: 8, Err: cause}
	require.True(t, IsTransferError(fmt.Errorf("wrapped: %w", err)))
	require.False(t, IsAllocationError(err))
	require.Contains(t, err.Error(), "to_host")
}
